// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fanout

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/meshtastic/meshwatch/internal/domain"
)

// Filter narrows the events a session receives. A nil set for any
// dimension admits everything along that dimension.
type Filter struct {
	Kinds    map[domain.Kind]bool
	NodeIDs  map[string]bool
	Channels map[uint32]bool
}

// Admits reports whether e passes every configured dimension of f.
func (f *Filter) Admits(e domain.Event) bool {
	if f == nil {
		return true
	}
	if f.Kinds != nil && !f.Kinds[e.Kind] {
		return false
	}
	if f.NodeIDs != nil && !f.NodeIDs[nodeIDOf(e)] {
		return false
	}
	if f.Channels != nil {
		ch, ok := channelOf(e)
		if !ok || !f.Channels[ch] {
			return false
		}
	}
	return true
}

func nodeIDOf(e domain.Event) string {
	switch e.Kind {
	case domain.KindNode:
		return e.Node.ID
	case domain.KindPosition:
		return e.Position.NodeID
	case domain.KindTelemetry:
		return e.Telemetry.NodeID
	case domain.KindMessage:
		return e.Message.FromID
	case domain.KindTraceroute:
		return e.Traceroute.FromID
	default:
		return ""
	}
}

func channelOf(e domain.Event) (uint32, bool) {
	if e.Kind == domain.KindMessage {
		return e.Message.Channel, true
	}
	return 0, false
}

// ParseFilter builds a Filter from a websocket upgrade request's query
// string: repeated "kind", "node", and "channel" parameters. Absent
// parameters leave that dimension unrestricted.
func ParseFilter(query url.Values) *Filter {
	f := &Filter{}

	if kinds := query["kind"]; len(kinds) > 0 {
		f.Kinds = make(map[domain.Kind]bool, len(kinds))
		for _, k := range kinds {
			f.Kinds[domain.Kind(strings.ToLower(k))] = true
		}
	}

	if nodes := query["node"]; len(nodes) > 0 {
		f.NodeIDs = make(map[string]bool, len(nodes))
		for _, n := range nodes {
			f.NodeIDs[n] = true
		}
	}

	if channels := query["channel"]; len(channels) > 0 {
		f.Channels = make(map[uint32]bool, len(channels))
		for _, c := range channels {
			if n, err := strconv.ParseUint(c, 10, 32); err == nil {
				f.Channels[uint32(n)] = true
			}
		}
	}

	if f.Kinds == nil && f.NodeIDs == nil && f.Channels == nil {
		return nil
	}
	return f
}
