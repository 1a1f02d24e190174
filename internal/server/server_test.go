package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/cardserve/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "A1.html"), []byte("<h1>A1</h1>"), 0o644))

	return &config.Config{
		Port:            port,
		Env:             "test",
		ShutdownTimeout: 2 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     5 * time.Second,
		Root:            root,
		LandingPage:     config.LandingPage,
		Title:           config.Title,
		OpenBrowser:     true,
		LogLevel:        "debug",
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestServer(cfg *config.Config, out, access *safeBuffer, open func(string) error) *Server {
	nop := zerolog.Nop()
	return New(cfg,
		WithOutput(out),
		WithAccessLog(access),
		WithLogger(&nop),
		WithBrowserOpener(open),
	)
}

func TestBanner(t *testing.T) {
	var out, access safeBuffer
	s := newTestServer(testConfig(t, config.Port), &out, &access, nil)

	s.Banner()

	banner := out.String()
	assert.Contains(t, banner, "German A1 Vocabulary Flashcards - Local Server")
	assert.Contains(t, banner, "Server address: http://localhost:8000\n")
	assert.Contains(t, banner, "http://localhost:8000/A1.html")
	assert.Contains(t, banner, "Press Ctrl+C to stop the server")
}

func TestURLs(t *testing.T) {
	var out, access safeBuffer
	s := newTestServer(testConfig(t, 8123), &out, &access, nil)

	assert.Equal(t, "http://localhost:8123", s.URL())
	assert.Equal(t, "http://localhost:8123/A1.html", s.LandingURL())
}

func TestHandlerHeaders(t *testing.T) {
	var out, access safeBuffer
	s := newTestServer(testConfig(t, config.Port), &out, &access, nil)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/A1.html", http.StatusOK},
		{http.MethodHead, "/A1.html", http.StatusOK},
		{http.MethodGet, "/missing.html", http.StatusNotFound},
		{http.MethodPost, "/A1.html", http.StatusNotImplemented},
		{http.MethodOptions, "/A1.html", http.StatusNotImplemented},
		{"PROPFIND", "/A1.html", http.StatusNotImplemented},
		{"FOO", "/A1.html", http.StatusNotImplemented},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp, err := s.App().Test(httptest.NewRequest(tc.method, tc.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
			assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
			assert.Equal(t, "cardserve", resp.Header.Get("Server"))
		})
	}

	assert.Contains(t, access.String(), `"GET /A1.html HTTP/1.1" 200`)
	assert.Contains(t, access.String(), "code 404, message File not found")
	assert.Contains(t, access.String(), "code 501, message Unsupported method ('PROPFIND')")
	assert.Contains(t, access.String(), `"FOO /A1.html HTTP/1.1" 501`)
}

func TestHandlerErrorsUseInjectedLogger(t *testing.T) {
	var out, access, diag safeBuffer
	l := zerolog.New(&diag)
	s := New(testConfig(t, config.Port),
		WithOutput(&out),
		WithAccessLog(&access),
		WithLogger(&l),
	)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := s.App().Test(httptest.NewRequest(method, "/missing.html", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	logs := diag.String()
	assert.Contains(t, logs, `"status":404`)
	assert.Contains(t, logs, `"status":501`)
	assert.Contains(t, logs, `"message":"HTTP error"`)
	assert.NotContains(t, logs, `"level":"error"`)
}

func TestRunPortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	var out, access safeBuffer
	opened := false
	s := newTestServer(testConfig(t, port), &out, &access, func(string) error {
		opened = true
		return nil
	})

	err = s.Run(context.Background())

	var inUse *PortInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, port, inUse.Port)
	assert.Contains(t, err.Error(), fmt.Sprintf("port %d", port))
	assert.False(t, opened)
	assert.NotContains(t, out.String(), "Server started")
}

func TestRunServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	cfg := testConfig(t, port)

	var out, access safeBuffer
	bound := make(chan string, 1)
	s := newTestServer(cfg, &out, &access, func(url string) error {
		bound <- url
		return errors.New("no browser available")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	select {
	case url := <-bound:
		assert.Equal(t, fmt.Sprintf("http://localhost:%d/A1.html", port), url)
	case err := <-done:
		t.Fatalf("Run returned before binding: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the server to bind")
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port)).
		SetTimeout(2 * time.Second).
		SetRetryCount(5).
		SetRetryWaitTime(50 * time.Millisecond)

	resp, err := client.R().Get("/A1.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "<h1>A1</h1>", resp.String())
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header().Get("Cache-Control"))

	resp, err = client.R().Get("/nope.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "Content-Type", resp.Header().Get("Access-Control-Allow-Headers"))

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	_, err = conn.Write([]byte("GARBAGE\r\n\r\n"))
	require.NoError(t, err)
	raw, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	raw.Body.Close()
	conn.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
	assert.Equal(t, "*", raw.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", raw.Header.Get("Cache-Control"))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Could not open the browser automatically: no browser available")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "Server started, waiting for requests...")

	_, err = client.SetRetryCount(0).R().Get("/A1.html")
	assert.Error(t, err, "listener should be closed after Run returns")
}

func TestRunWithoutBrowser(t *testing.T) {
	port := freePort(t)
	cfg := testConfig(t, port)
	cfg.OpenBrowser = false

	var out, access safeBuffer
	s := newTestServer(cfg, &out, &access, func(string) error {
		t.Error("browser opener must not be called")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NotContains(t, out.String(), "Trying to open the browser")
}

func TestPortInUseError(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := error(&PortInUseError{Port: 8000, Err: cause})

	assert.Equal(t, "port 8000 is already in use", err.Error())
	assert.ErrorIs(t, err, cause)
}
