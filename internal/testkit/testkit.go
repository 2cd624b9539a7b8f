// Package testkit provisions servers and browsers for end-to-end tests.
package testkit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"
)

const dockerImage = "chromedp/headless-shell:latest"

// GetFreePort asks the kernel for a free open port that is ready to use
func GetFreePort() (port int, err error) {
	var a *net.TCPAddr
	if a, err = net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		var l *net.TCPListener
		if l, err = net.ListenTCP("tcp", a); err == nil {
			defer l.Close()
			return l.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return
}

// BrowserHostURL returns the URL a containerized browser uses to reach a
// server on the host. On Linux with host networking that is localhost;
// on macOS/Windows it is host.docker.internal.
func BrowserHostURL(port int) string {
	if runtime.GOOS == "linux" {
		return fmt.Sprintf("http://localhost:%d", port)
	}
	return fmt.Sprintf("http://host.docker.internal:%d", port)
}

// ChromeAvailable reports whether a local Chrome binary is on PATH.
func ChromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// DockerAvailable reports whether the docker CLI answers.
func DockerAvailable() bool {
	return exec.Command("docker", "version").Run() == nil
}

// RequireChrome skips the test unless a Chrome binary or a remote browser
// endpoint is available.
func RequireChrome(t *testing.T) {
	t.Helper()
	if os.Getenv("E2E_CHROME_URL") != "" || os.Getenv("CHROME_BIN") != "" {
		return
	}
	if ChromeAvailable() {
		return
	}
	t.Skip("Chrome not available, skipping browser test")
}

// StartServer serves the handler on a free port for the duration of the
// test and returns its base URL. Shutdown is registered on t.Cleanup.
func StartServer(t *testing.T, handler http.Handler) string {
	t.Helper()

	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	WaitForServer(t, baseURL, 5*time.Second)
	return baseURL
}

// WaitForServer waits for the server to be ready and responding
func WaitForServer(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	if err := WaitForServerReady(url, timeout); err != nil {
		t.Fatalf("❌ %v", err)
	}
}

// WaitForServerReady polls the URL until it answers 200 or the timeout
// elapses.
func WaitForServerReady(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	lastErr := fmt.Errorf("no response")

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready within %v: %w", timeout, lastErr)
}

// StartHeadlessShell starts the chromedp headless-shell Docker container,
// pulling the image first when it is missing, and waits for the remote
// debugging endpoint. The returned URL is what E2E_CHROME_URL (or the
// config's RemoteChromeURL) should point at. On Linux the container uses
// host networking, so debugPort must be 9222 there.
func StartHeadlessShell(debugPort int) (*exec.Cmd, string, error) {
	if err := exec.Command("docker", "image", "inspect", dockerImage).Run(); err != nil {
		if err := pullHeadlessShell(); err != nil {
			return nil, "", err
		}
	}

	containerName := fmt.Sprintf("e2ekit-chrome-%d", debugPort)
	var cmd *exec.Cmd
	if runtime.GOOS == "linux" {
		// Host networking so the container can reach localhost servers.
		cmd = exec.Command("docker", "run", "--rm",
			"--network", "host",
			"--name", containerName,
			dockerImage,
		)
	} else {
		portMapping := fmt.Sprintf("%d:9222", debugPort)
		cmd = exec.Command("docker", "run", "--rm",
			"-p", portMapping,
			"--name", containerName,
			"--add-host", "host.docker.internal:host-gateway",
			dockerImage,
		)
	}

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("failed to start browser container: %w", err)
	}

	chromeURL := fmt.Sprintf("http://localhost:%d", debugPort)
	if err := WaitForServerReady(chromeURL+"/json/version", 30*time.Second); err != nil {
		cmd.Process.Kill()
		return nil, "", fmt.Errorf("browser container did not become ready: %w", err)
	}
	return cmd, chromeURL, nil
}

func pullHeadlessShell() error {
	pullCmd := exec.Command("docker", "pull", dockerImage)
	if err := pullCmd.Start(); err != nil {
		return fmt.Errorf("failed to start docker pull: %w", err)
	}

	pullDone := make(chan error, 1)
	go func() {
		pullDone <- pullCmd.Wait()
	}()

	select {
	case err := <-pullDone:
		if err != nil {
			return fmt.Errorf("failed to pull %s: %w", dockerImage, err)
		}
		return nil
	case <-time.After(60 * time.Second):
		pullCmd.Process.Kill()
		return fmt.Errorf("docker pull of %s timed out after 60 seconds", dockerImage)
	}
}

// StopHeadlessShell stops the container started by StartHeadlessShell and
// reaps the docker run process.
func StopHeadlessShell(cmd *exec.Cmd, debugPort int) error {
	containerName := fmt.Sprintf("e2ekit-chrome-%d", debugPort)

	output, _ := exec.Command("docker", "ps", "-a", "-q", "-f", "name="+containerName).Output()

	var stopErr error
	if len(output) > 0 {
		stopDone := make(chan error, 1)
		go func() {
			stopDone <- exec.Command("docker", "stop", "-t", "2", containerName).Run()
		}()

		select {
		case err := <-stopDone:
			if err != nil {
				stopErr = fmt.Errorf("failed to stop browser container: %w", err)
			}
		case <-time.After(5 * time.Second):
			exec.Command("docker", "kill", containerName).Run()
			stopErr = fmt.Errorf("docker stop timed out, container was killed")
		}
	}

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
	return stopErr
}

// StartDockerChrome is StartHeadlessShell for tests: it skips when Docker
// is unavailable and fails the test when the container cannot start.
func StartDockerChrome(t *testing.T, debugPort int) (*exec.Cmd, string) {
	t.Helper()

	if !DockerAvailable() {
		t.Skip("Docker not available, skipping E2E test")
	}

	t.Log("Starting Chrome headless Docker container...")
	cmd, chromeURL, err := StartHeadlessShell(debugPort)
	if err != nil {
		t.Fatalf("Failed to start Chrome Docker container: %v", err)
	}
	t.Log("✅ Chrome headless Docker container ready")
	return cmd, chromeURL
}

// StopDockerChrome stops the Chrome Docker container
func StopDockerChrome(t *testing.T, cmd *exec.Cmd, debugPort int) {
	t.Helper()
	t.Log("Stopping Chrome Docker container...")
	if err := StopHeadlessShell(cmd, debugPort); err != nil {
		t.Logf("Warning: %v", err)
	}
}
