package hue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP("bridge.test", "user", srv.Client()).WithBaseURL(srv.URL + "/api/user/")
}

func TestSetStreamActive_RequestShape(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Write([]byte(`[{"success":{"/groups/5/stream/active":true}}]`))
	})

	if err := c.SetStreamActive(context.Background(), "5", true); err != nil {
		t.Fatalf("SetStreamActive() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/api/user/groups/5" {
		t.Errorf("path = %s, want /api/user/groups/5", gotPath)
	}
	stream, _ := gotBody["stream"].(map[string]any)
	if active, ok := stream["active"].(bool); !ok || !active {
		t.Errorf("body = %v, want stream.active=true", gotBody)
	}
}

func TestSetStreamActive_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantDesc string
	}{
		{name: "error_entry", status: 200, body: `[{"error":{"type":307,"address":"/groups/5/stream/active","description":"Cannot claim stream ownership"}}]`, wantDesc: "Cannot claim stream ownership"},
		{name: "empty_array", status: 200, body: `[]`},
		{name: "object_not_array", status: 200, body: `{"success":true}`},
		{name: "no_success_key", status: 200, body: `[{"other":1}]`},
		{name: "http_error", status: 500, body: `oops`},
		{name: "bad_json", status: 200, body: `[{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.SetStreamActive(context.Background(), "5", false)
			var apiErr *ConfigAPIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *ConfigAPIError", err)
			}
			if apiErr.Group != "5" || apiErr.Op != "stop streaming" {
				t.Errorf("ConfigAPIError = %+v", apiErr)
			}
			if tt.wantDesc != "" {
				var be *BridgeError
				if !errors.As(err, &be) || be.Description != tt.wantDesc {
					t.Errorf("bridge error = %v, want description %q", be, tt.wantDesc)
				}
				if be.Type != 307 {
					t.Errorf("bridge error type = %d, want 307", be.Type)
				}
			}
		})
	}
}

func TestClient_Get(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/config" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"name":"Hue Bridge","apiversion":"1.60.0"}`))
	})

	doc, err := c.Get(context.Background(), "config")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	m, ok := doc.(map[string]any)
	if !ok || m["name"] != "Hue Bridge" {
		t.Errorf("Get() = %v", doc)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("Connect() error = %v", err)
	}
}

func TestNewClient_BaseURL(t *testing.T) {
	c := NewClient("192.168.1.2", "abc", 0)
	if c.baseURL != "https://192.168.1.2/api/abc/" {
		t.Errorf("baseURL = %s", c.baseURL)
	}
	if c.Address() != "192.168.1.2" {
		t.Errorf("Address() = %s", c.Address())
	}
}
