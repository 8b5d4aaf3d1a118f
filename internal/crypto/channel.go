// Copyright (C) meshwatch contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package crypto

import "sort"

// wellKnownChannels maps channel names that ship with stock firmware to
// their PSK index, so a packet on "LongFast" decrypts without any
// operator-supplied key.
var wellKnownChannels = map[string]byte{
	"LongFast":  1,
	"LongSlow":  1,
	"MediumFast": 1,
	"MediumSlow": 1,
	"ShortFast": 1,
	"ShortSlow": 1,
	"VeryLongSlow": 1,
}

// KeyCandidate is one key to try against a ciphertext, in the order
// callers should attempt it.
type KeyCandidate struct {
	Key []byte
}

// Candidates returns the ordered set of expanded keys to try for a given
// channel name: the bare default PSK first, then the channel's
// caller-configured or well-known key, then any remaining caller-supplied
// keys (e.g. other channels' keys, for the case where the topic's channel
// name doesn't match what the sender used) sorted by channel name. Order
// is deterministic, and a key that expands to one already listed is not
// repeated.
func Candidates(channelName string, configured map[string]string) ([]KeyCandidate, error) {
	var out []KeyCandidate
	seen := make(map[string]bool)

	add := func(raw []byte) error {
		expanded, err := ExpandPSK(raw)
		if err != nil {
			return err
		}
		if expanded == nil {
			return nil
		}
		k := string(expanded)
		if seen[k] {
			return nil
		}
		seen[k] = true
		out = append(out, KeyCandidate{Key: expanded})
		return nil
	}

	if err := add([]byte{1}); err != nil {
		return nil, err
	}

	if key, ok := configured[channelName]; ok {
		if err := add([]byte(key)); err != nil {
			return nil, err
		}
	} else if idx, ok := wellKnownChannels[channelName]; ok {
		if err := add([]byte{idx}); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(configured))
	for name := range configured {
		if name != channelName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := add([]byte(configured[name])); err != nil {
			return nil, err
		}
	}

	return out, nil
}
