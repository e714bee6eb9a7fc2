// Package users is the client for the remote user service.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/favorites/internal/directory"
	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

const serviceName = "users"

// Client answers identity questions against the user service.
type Client struct {
	transport *directory.Transport
}

func NewClient(baseURL string, opts ...directory.Option) *Client {
	return &Client{transport: directory.NewTransport(serviceName, baseURL, opts...)}
}

// Exists reports whether the user service knows id. A 404 means no.
func (c *Client) Exists(ctx context.Context, id int64) (exists bool, err error) {
	const op = "exists"
	start := time.Now()
	defer func() { c.transport.Observe(op, start, err) }()

	resp, err := c.transport.Do(ctx, directory.Request{
		Operation: op,
		Method:    http.MethodGet,
		Path:      "/api/users/" + strconv.FormatInt(id, 10) + "/exists",
		Accept:    "application/json",
	})
	if err != nil {
		return false, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, c.transport.Unexpected(op, resp)
	}

	if err := json.Unmarshal(resp.Body, &exists); err != nil {
		return false, fmt.Errorf("%w: decode exists for user %d: %w", favorites.ErrRemoteUnavailable, id, err)
	}
	return exists, nil
}

// NameOf returns the user's display name, or "" when the user has none or
// is unknown.
func (c *Client) NameOf(ctx context.Context, id int64) (name string, err error) {
	const op = "name"
	start := time.Now()
	defer func() { c.transport.Observe(op, start, err) }()

	resp, err := c.transport.Do(ctx, directory.Request{
		Operation: op,
		Method:    http.MethodGet,
		Path:      "/api/users/" + strconv.FormatInt(id, 10) + "/name",
		Accept:    "text/plain",
	})
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return strings.TrimSpace(string(resp.Body)), nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", c.transport.Unexpected(op, resp)
	}
}

var _ favorites.UserDirectory = (*Client)(nil)
