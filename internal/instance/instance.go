// Package instance asks the log server to create a new log-producing
// instance.
package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const createPath = "/api/instances/create"

// Creator creates instances on the server at BaseURL.
type Creator struct {
	BaseURL string
	HTTP    *http.Client
	Now     func() time.Time
}

// NewCreator returns a Creator with a bounded request timeout.
func NewCreator(baseURL string) *Creator {
	return &Creator{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Now:     time.Now,
	}
}

// Create requests a new instance. It always returns a usable id: when the
// server cannot be reached or answers badly, the id is a local fallback and
// the error says why.
func (c *Creator) Create(ctx context.Context) (string, error) {
	id, err := c.request(ctx)
	if err != nil {
		return Fallback(c.now()), err
	}
	return id, nil
}

func (c *Creator) request(ctx context.Context) (string, error) {
	url := strings.TrimRight(c.BaseURL, "/") + createPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}

	var body struct {
		InstanceID string `json:"instanceId"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if body.InstanceID == "" {
		return "", errors.New("response has no instanceId")
	}
	return body.InstanceID, nil
}

func (c *Creator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Fallback returns the locally generated id used when creation fails.
func Fallback(t time.Time) string {
	return fmt.Sprintf("instance-%d", t.UnixMilli())
}
