// Package cli provides the interactive authkeeper command-line client.
//
// It wires configuration, the HTTP API client and a read–eval–print loop.
// A background watcher probes the server and switches the prompt between
// online and offline.
//
// Commands: register, login, refresh, me, users <me|admin|public>, logout,
// help, exit.
package cli
