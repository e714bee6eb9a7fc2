// Package events is the client for the remote event service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Togather-Foundation/favorites/internal/directory"
	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

const serviceName = "events"

// Client reads public events from the event service.
type Client struct {
	transport *directory.Transport
}

// NewClient creates a client rooted at baseURL (for example
// "http://events:8080").
func NewClient(baseURL string, opts ...directory.Option) *Client {
	return &Client{transport: directory.NewTransport(serviceName, baseURL, opts...)}
}

// GetEvent fetches one event. A 404 yields favorites.ErrEventNotFound.
func (c *Client) GetEvent(ctx context.Context, id int64) (event *favorites.Event, err error) {
	const op = "get_one"
	start := time.Now()
	defer func() { c.transport.Observe(op, start, err) }()

	resp, err := c.transport.Do(ctx, directory.Request{
		Operation: op,
		Method:    http.MethodGet,
		Path:      "/events/public/" + strconv.FormatInt(id, 10),
		Accept:    "application/json",
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("event %d: %w", id, favorites.ErrEventNotFound)
	default:
		return nil, c.transport.Unexpected(op, resp)
	}

	var out favorites.Event
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode event %d: %w", favorites.ErrRemoteUnavailable, id, err)
	}
	return &out, nil
}

// GetEvents fetches the events among ids that exist, in one request. A
// non-empty credential is forwarded as the Authorization header.
func (c *Client) GetEvents(ctx context.Context, ids []int64, credential string) (events []favorites.Event, err error) {
	const op = "get_many"
	if len(ids) == 0 {
		return []favorites.Event{}, nil
	}
	start := time.Now()
	defer func() { c.transport.Observe(op, start, err) }()

	header := http.Header{}
	if credential != "" {
		header.Set("Authorization", credential)
	}
	resp, err := c.transport.Do(ctx, directory.Request{
		Operation: op,
		Method:    http.MethodPost,
		Path:      "/events/public/byIds",
		Accept:    "application/json",
		Body:      ids,
		Header:    header,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.transport.Unexpected(op, resp)
	}

	if err := json.Unmarshal(resp.Body, &events); err != nil {
		return nil, fmt.Errorf("%w: decode events: %w", favorites.ErrRemoteUnavailable, err)
	}
	if events == nil {
		events = []favorites.Event{}
	}
	return events, nil
}

var _ favorites.EventDirectory = (*Client)(nil)
