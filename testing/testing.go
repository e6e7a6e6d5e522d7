package testing

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/tenantkit/logging"
)

// HTTPTestClient is a test HTTP client
type HTTPTestClient struct {
	server *httptest.Server
	client *http.Client
}

// NewHTTPTestClient serves handler on a loopback server that is closed when
// the test ends.
func NewHTTPTestClient(t *testing.T, handler http.Handler) *HTTPTestClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &HTTPTestClient{
		server: server,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// URL returns the server's base URL.
func (c *HTTPTestClient) URL() string {
	return c.server.URL
}

// Get makes a GET request
func (c *HTTPTestClient) Get(path string, headers map[string]string) (*http.Response, string, error) {
	req, err := http.NewRequest(http.MethodGet, c.server.URL+path, nil)
	if err != nil {
		return nil, "", err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, "", err
	}

	return resp, string(body), nil
}

// NewObservedLogger returns a logger that records every entry at or above
// level, and the recorded entries.
func NewObservedLogger(level zapcore.Level) (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.FromZap(zap.New(core)), logs
}
