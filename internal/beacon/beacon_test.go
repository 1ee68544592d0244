// SPDX-License-Identifier: MPL-2.0

package beacon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend_PostsEvent(t *testing.T) {
	t.Parallel()

	received := make(chan payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding event: %v", err)
		}
		received <- p
	}))
	defer srv.Close()

	c := New(srv.URL, "1.2.3")
	c.Send(EventStart, map[string]any{"interactive": false})

	p := <-received
	if p.Event != EventStart {
		t.Errorf("event = %q, want %q", p.Event, EventStart)
	}
	if p.AppVersion != "1.2.3" {
		t.Errorf("app_version = %q", p.AppVersion)
	}
}

func TestSend_SwallowsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Must not panic or block beyond the timeout.
	c := New(srv.URL, "dev")
	c.Send(EventException, nil)

	// Unreachable endpoint.
	c = New("http://127.0.0.1:1", "dev")
	c.Send(EventEnd, nil)
}

func TestSend_NilAndDisabledClients(t *testing.T) {
	t.Parallel()

	var c *Client
	c.Send(EventStart, nil)

	if got := New("", "dev"); got != nil {
		t.Errorf("New with empty endpoint = %v, want nil", got)
	}
}
