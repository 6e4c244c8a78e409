package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeClient struct {
	mu sync.Mutex

	regEmail string
	regPass  []byte
	regErr   error

	loginEmail string
	loginPass  []byte
	loginErr   error
	loggedIn   bool

	refreshErr error
	greetErr   error
	pingErr    error
	scopes     []client.Scope
}

func (f *fakeClient) Register(_ context.Context, email string, pw []byte) (*client.User, error) {
	f.regEmail, f.regPass = email, append([]byte(nil), pw...)
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &client.User{ID: "u1", Email: email, Role: "USER"}, nil
}

func (f *fakeClient) Login(_ context.Context, email string, pw []byte) error {
	f.loginEmail, f.loginPass = email, append([]byte(nil), pw...)
	if f.loginErr == nil {
		f.loggedIn = true
	}
	return f.loginErr
}

func (f *fakeClient) Refresh(context.Context) error { return f.refreshErr }

func (f *fakeClient) Me(context.Context) (string, error) {
	if f.greetErr != nil {
		return "", f.greetErr
	}
	return "Hi, id=u1, email=a@example.com", nil
}

func (f *fakeClient) Greeting(_ context.Context, s client.Scope) (string, error) {
	f.scopes = append(f.scopes, s)
	if f.greetErr != nil {
		return "", f.greetErr
	}
	return "greeting " + string(s), nil
}

func (f *fakeClient) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeClient) LoggedIn() bool { return f.loggedIn }
func (f *fakeClient) Logout()        { f.loggedIn = false }

func newTestApp(f *fakeClient, input string) (*App, *syncBuffer) {
	out := &syncBuffer{}
	return &App{
		client: f,
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    out,
	}, out
}

// stubInputs replaces the interactive prompts; the returned slice is the
// password buffer handed to the command.
func stubInputs(t *testing.T, email string, password string) []byte {
	t.Helper()
	pw := []byte(password)
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return email, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return pw, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
	return pw
}
