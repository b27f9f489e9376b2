package hue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// GroupTypeEntertainment is the v1 group type eligible for streaming.
const GroupTypeEntertainment = "Entertainment"

// ErrNotEntertainment is returned when a group cannot be streamed to.
var ErrNotEntertainment = errors.New("group is not an entertainment group")

// GroupInfo is the streaming-relevant view of a bridge group.
type GroupInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Lights       []string `json:"lights"`
	StreamActive bool     `json:"stream_active"`
	StreamOwner  string   `json:"stream_owner,omitempty"`
}

// CheckStreamable returns ErrNotEntertainment for any non-entertainment group.
func (g *GroupInfo) CheckStreamable() error {
	if g.Type != GroupTypeEntertainment {
		return fmt.Errorf("%w: group %s has type %q", ErrNotEntertainment, g.ID, g.Type)
	}
	return nil
}

// GroupInspector reads entertainment group details through huego.
type GroupInspector struct {
	bridge *huego.Bridge
	cache  *GroupCache
}

// NewGroupInspector creates an inspector for the bridge at host.
//
// huego sends through http.DefaultClient, which rejects the bridge's self-signed
// certificate, so a bare host is read over plain HTTP (port 80). Only group reads
// go this way; stream flag changes stay on Client's HTTPS transport.
// host may carry a scheme (http://...) to reach a non-default endpoint.
func NewGroupInspector(host, username string, cache *GroupCache) *GroupInspector {
	if cache == nil {
		cache = NewGroupCache(0)
	}
	return &GroupInspector{
		bridge: huego.New(host, username),
		cache:  cache,
	}
}

// Group returns the group, served from cache when fresh.
func (i *GroupInspector) Group(ctx context.Context, groupID string) (*GroupInfo, error) {
	if info := i.cache.Get(groupID); info != nil {
		return info, nil
	}
	return i.Refresh(ctx, groupID)
}

// Refresh fetches the group from the bridge and updates the cache.
func (i *GroupInspector) Refresh(ctx context.Context, groupID string) (*GroupInfo, error) {
	id, err := strconv.Atoi(groupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	g, err := i.bridge.GetGroupContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group %s: %w", groupID, err)
	}

	info := GroupInfo{
		ID:     groupID,
		Name:   g.Name,
		Type:   g.Type,
		Lights: g.Lights,
	}
	if g.Stream != nil {
		info.StreamActive = g.Stream.Active()
		info.StreamOwner = g.Stream.Owner()
	}
	i.cache.Set(groupID, info)

	log.Debug().
		Str("group", groupID).
		Str("type", info.Type).
		Int("lights", len(info.Lights)).
		Bool("stream_active", info.StreamActive).
		Msg("Group inspected")

	return &info, nil
}

// Invalidate drops the cached entry, typically after toggling the stream flag.
func (i *GroupInspector) Invalidate(groupID string) {
	i.cache.Invalidate(groupID)
}
