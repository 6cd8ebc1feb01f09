package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIndexerDSN(t *testing.T) {
	require.Equal(t, filepath.Join("/data", "events.db"), indexerDSN("/data", "events.db"))
	require.Equal(t, "/abs/events.db", indexerDSN("/data", "/abs/events.db"))
	require.Equal(t, "postgres://u@h/db", indexerDSN("/data", "postgres://u@h/db"))
	require.Equal(t, "file:x?mode=memory", indexerDSN("/data", "file:x?mode=memory"))
	require.Empty(t, indexerDSN("/data", " "))
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, loadEnvFile(""))
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEND_TEST_A=fromfile\nLEND_TEST_B=fromfile\n"), 0o600))
	t.Setenv("LEND_TEST_A", "preset")
	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "preset", os.Getenv("LEND_TEST_A"))
	require.Equal(t, "fromfile", os.Getenv("LEND_TEST_B"))
	_ = os.Unsetenv("LEND_TEST_B")
}

func TestRunServesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf("DataDir = %q\n\n[RPC]\nListen = \"127.0.0.1:0\"\n\n[Log]\nLevel = \"error\"\n", filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(contents), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfgPath, func(addr string) { addrCh <- addr }) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for listener")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop")
	}
	_, err := os.Stat(filepath.Join(dir, "data", "events.db"))
	require.NoError(t, err)
}
