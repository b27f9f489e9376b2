package hue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const entertainmentGroupJSON = `{
	"name": "TV area",
	"lights": ["1", "2", "7"],
	"type": "Entertainment",
	"class": "TV",
	"stream": {"proxymode": "auto", "proxynode": "/bridge", "active": true, "owner": "streamer"},
	"state": {"all_on": false, "any_on": true}
}`

func TestGroupInspector_Refresh(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/user/groups/5" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(entertainmentGroupJSON))
	}))
	defer srv.Close()

	insp := NewGroupInspector(srv.URL, "user", nil)

	info, err := insp.Group(context.Background(), "5")
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if info.Name != "TV area" || info.Type != GroupTypeEntertainment {
		t.Errorf("info = %+v", info)
	}
	if !info.StreamActive || info.StreamOwner != "streamer" {
		t.Errorf("stream = active:%v owner:%q", info.StreamActive, info.StreamOwner)
	}
	if len(info.Lights) != 3 || info.Lights[2] != "7" {
		t.Errorf("Lights = %v, want [1 2 7]", info.Lights)
	}
	if err := info.CheckStreamable(); err != nil {
		t.Errorf("CheckStreamable() = %v", err)
	}

	// Second lookup is served from cache.
	if _, err := insp.Group(context.Background(), "5"); err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("bridge hit %d times, want 1", hits.Load())
	}

	insp.Invalidate("5")
	if _, err := insp.Group(context.Background(), "5"); err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("bridge hit %d times after invalidate, want 2", hits.Load())
	}
}

func TestGroupInspector_InvalidID(t *testing.T) {
	insp := NewGroupInspector("127.0.0.1:1", "user", nil)
	if _, err := insp.Group(context.Background(), "living-room"); err == nil {
		t.Error("Group() with non-numeric id should fail")
	}
}

func TestGroupInfo_CheckStreamable(t *testing.T) {
	g := GroupInfo{ID: "1", Type: "Room"}
	if err := g.CheckStreamable(); !errors.Is(err, ErrNotEntertainment) {
		t.Errorf("CheckStreamable() = %v, want ErrNotEntertainment", err)
	}
}

// A bare bridge address is read over plain HTTP, which bridges serve on port 80.
func TestGroupInspector_BareHostUsesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(entertainmentGroupJSON))
	}))
	defer srv.Close()

	insp := NewGroupInspector(strings.TrimPrefix(srv.URL, "http://"), "user", nil)
	info, err := insp.Refresh(context.Background(), "5")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if info.Name != "TV area" {
		t.Errorf("Name = %q", info.Name)
	}
}
