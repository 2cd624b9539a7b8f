package testkit

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFreePort(t *testing.T) {
	port, err := GetFreePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.LessOrEqual(t, port, 65535)
}

func TestStartServer(t *testing.T) {
	baseURL := StartServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	}))

	resp, err := http.Get(baseURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
}

func TestWaitForServerReady(t *testing.T) {
	baseURL := StartServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// StartServer already waited; a second wait must return immediately.
	start := time.Now()
	require.NoError(t, WaitForServerReady(baseURL, 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForServerReadyReportsLastError(t *testing.T) {
	port, err := GetFreePort()
	require.NoError(t, err)

	// Nothing listens on the port, so every poll fails.
	err = WaitForServerReady(fmt.Sprintf("http://localhost:%d", port), 300*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready within")
}

func TestHeadlessShellLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}
	// Host networking pins the debug endpoint to the container's 9222.
	debugPort := 9222
	if runtime.GOOS != "linux" {
		var err error
		debugPort, err = GetFreePort()
		require.NoError(t, err)
	}

	cmd, chromeURL := StartDockerChrome(t, debugPort) // skips without docker
	defer StopDockerChrome(t, cmd, debugPort)

	resp, err := http.Get(chromeURL + "/json/version")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
