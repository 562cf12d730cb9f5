// Package entropy provides the client for the OccyByte Eris quantum
// randomness API. The bytes it returns are the only randomness source
// the recommendation engine is allowed to consume: there is no local
// PRNG fallback anywhere, by design. When this source is down, the
// quantum part of the product is down.
package entropy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every request to the Eris API.
const DefaultTimeout = 10 * time.Second

// ErrUnavailable is the normalized failure for every way the entropy
// source can let us down: connection errors, timeouts, auth rejections,
// non-2xx statuses and malformed responses all collapse into it.
var ErrUnavailable = errors.New("quantum entropy source unavailable")

// Client fetches raw, unwhitened quantum random bytes over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates an Eris API client. Both the base URL and the API
// key are required; they normally come from the OCCYBYTE_API_LINK and
// OCCYBYTE_API_KEY environment variables.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("entropy API link not configured")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("entropy API key not configured")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// FetchRandomBytes requests size raw random bytes from the Eris API.
// A non-positive size is a caller contract violation and returns an
// error without touching the network. All transport and protocol
// failures wrap ErrUnavailable.
func (c *Client) FetchRandomBytes(ctx context.Context, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("requested byte count must be positive, got %d", size)
	}

	url := fmt.Sprintf("%s/api/eris/raw?size=%d", c.baseURL, size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Entropy fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"size":   size,
		}).Warn("Entropy API returned non-2xx status")
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: authentication failed (status %d), check the API key", ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrUnavailable, size, len(data))
	}

	c.logger.WithField("size", size).Debug("Fetched quantum random bytes")
	return data, nil
}

// Available probes the entropy source with a minimal request. Callers
// use it to distinguish "nothing compatible" from "source down" before
// or after a recommendation attempt.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.FetchRandomBytes(ctx, 1)
	return err == nil
}
