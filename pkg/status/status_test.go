package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusServerReadiness(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := freeTCPPort(t)
	server := NewServer("127.0.0.1", port, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(ctx)
	}()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	readyURL := fmt.Sprintf("http://127.0.0.1:%d/readyz", port)

	require.Equal(t, http.StatusOK, waitHTTPStatus(t, healthURL, 2*time.Second))
	require.Equal(t, http.StatusServiceUnavailable, waitHTTPStatus(t, readyURL, 2*time.Second))

	server.SetChannelState(true, nil)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, readyURL, 2*time.Second))

	server.SetChannelState(false, fmt.Errorf("polling failed"))
	require.Equal(t, http.StatusServiceUnavailable, waitHTTPStatus(t, readyURL, 2*time.Second))

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for status server to exit")
	}
}

func TestStatusServerPayloadShape(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := freeTCPPort(t)
	server := NewServer("127.0.0.1", port, nil)
	server.SetChannelState(true, nil)

	go func() { _ = server.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	require.Equal(t, http.StatusOK, waitHTTPStatus(t, url, 2*time.Second))

	response, err := http.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()

	var payload statusResponse
	require.NoError(t, json.NewDecoder(response.Body).Decode(&payload))
	require.Equal(t, "ok", payload.Status)
	require.True(t, payload.Channel.Running)
}

func waitHTTPStatus(t *testing.T, url string, timeout time.Duration) int {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		response, err := http.Get(url)
		if err == nil {
			statusCode := response.StatusCode
			require.NoError(t, response.Body.Close())
			return statusCode
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %v", url, err)
		}

		time.Sleep(25 * time.Millisecond)
	}
}

func freeTCPPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}
