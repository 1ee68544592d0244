// SPDX-License-Identifier: MPL-2.0

// Package beacon sends opt-in, fire-and-forget usage events. Failures are
// swallowed: the beacon must never affect the pipeline outcome.
package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Event names emitted over one release run.
const (
	EventStart     = "start"
	EventEnd       = "end"
	EventException = "exception"
)

const sendTimeout = 3 * time.Second

type (
	// payload is the JSON wire format of one event.
	payload struct {
		Event      string         `json:"event"`
		App        string         `json:"app"`
		AppVersion string         `json:"app_version"`
		Timestamp  time.Time      `json:"ts"`
		Fields     map[string]any `json:"fields,omitempty"`
	}

	// Client posts events to a collection endpoint. A nil *Client is a
	// valid no-op client, as is one constructed with an empty endpoint.
	Client struct {
		endpoint   string
		appVersion string
		httpClient *http.Client
	}
)

// New creates a beacon client. An empty endpoint disables it.
func New(endpoint, appVersion string) *Client {
	if endpoint == "" {
		return nil
	}
	return &Client{
		endpoint:   endpoint,
		appVersion: appVersion,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

// Send posts one event. Errors are swallowed; the call blocks at most the
// send timeout. Calling Send on a nil Client is a no-op.
func (c *Client) Send(event string, fields map[string]any) {
	if c == nil {
		return
	}

	body, err := json.Marshal(payload{
		Event:      event,
		App:        "castoff",
		AppVersion: c.appVersion,
		Timestamp:  time.Now().UTC(),
		Fields:     fields,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
