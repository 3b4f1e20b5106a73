package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"drop-go/internal/drop"
)

// DefaultPollInterval matches the listing page's refresh poll.
const DefaultPollInterval = 2 * time.Second

// Client talks to a running drop server.
type Client struct {
	client *resty.Client
	logger drop.Logger
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:5000".
func New(baseURL string, logger drop.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Accept", "application/json")

	return &Client{client: client, logger: logger}
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode())
	}
	return nil
}

// Check asks whether the listing changed since prior.
func (c *Client) Check(ctx context.Context, prior string) (drop.UpdateStatus, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("hash", prior).
		Get("/check-updates")
	if err != nil {
		return drop.UpdateStatus{}, fmt.Errorf("checking for updates: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return drop.UpdateStatus{}, fmt.Errorf("checking for updates: status %d", resp.StatusCode())
	}

	var status drop.UpdateStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return drop.UpdateStatus{}, fmt.Errorf("parsing update status: %w", err)
	}
	return status, nil
}

// Watch polls the server every interval and calls fn each time the listing
// changes. The first poll only records the current fingerprint. Failed polls
// are logged and retried on the next tick. Watch returns nil when ctx is done.
func (c *Client) Watch(ctx context.Context, interval time.Duration, fn func(drop.UpdateStatus)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	status, err := c.Check(ctx, "")
	if err != nil {
		return err
	}
	current := status.Hash

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		status, err := c.Check(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("update poll failed", "error", err)
			continue
		}
		if status.Updated {
			current = status.Hash
			fn(status)
		}
	}
}
