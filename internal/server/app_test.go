package server

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = config.MemoryDSN
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.BcryptCost = bcrypt.MinCost
	return c
}

func TestNewApp_MemoryStore(t *testing.T) {
	var buf bytes.Buffer
	app, err := NewApp(context.Background(), memoryConfig(), &buf)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.db)
	assert.NotNil(t, app.factory)
	assert.NotNil(t, app.server)
	assert.Contains(t, buf.String(), "in-memory user store")
}

func TestNewApp_BadLogBackend(t *testing.T) {
	c := memoryConfig()
	c.LogBackend = "syslog"

	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.Error(t, err)
}

func TestNewApp_BadBcryptCost(t *testing.T) {
	c := memoryConfig()
	c.BcryptCost = 99

	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.Error(t, err)
}

func TestNewApp_BadDSN(t *testing.T) {
	c := memoryConfig()
	c.DatabaseDSN = "postgres://%zz"

	_, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	app, err := NewApp(context.Background(), memoryConfig(), &buf)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Contains(t, buf.String(), "App stopped")
}

func TestApp_RunFailsOnBadAddress(t *testing.T) {
	c := memoryConfig()
	c.EndpointAddrHTTP = "bad-address"

	app, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.NoError(t, err)
	require.Error(t, app.Run(context.Background()))
}

func TestMain_ConfigErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, 2, Main(context.Background(), []string{"-t", "soon"}))
	assert.Equal(t, 2, Main(context.Background(), []string{"-d", config.MemoryDSN, "-b", "99"}))
}

func TestRegisterDBStats_ExportsPoolGauges(t *testing.T) {
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory")
	require.NoError(t, err)
	defer db.Close()

	m := metrics.New()
	require.NoError(t, registerDBStats(m, db))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `go_sql_open_connections{db_name="authkeeper"}`)

	assert.Error(t, registerDBStats(m, db), "the pool collector registers once per registry")
}
