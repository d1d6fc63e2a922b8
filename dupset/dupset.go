/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dupset implements the sliding-window sequence-number duplicate
// detector of §4.8, keyed per (originator, message type) so that HELLO and
// TC traffic from the same peer never share one window.
package dupset

import "github.com/meshnet/olsr2/ib"

// Result is the outcome of testing one sequence number against an entry's
// window.
type Result uint8

// Test results, in the order oonf_duplicate_result defines them.
const (
	// TooOld is much older than the tracked window can represent.
	TooOld Result = iota
	// Duplicate is a sequence number already seen inside the window.
	Duplicate
	// New is older than current but not previously seen (reordering).
	New
	// Current repeats exactly the latest known sequence number.
	Current
	// Newest is strictly newer than the latest known sequence number.
	Newest
	// First is the first sequence number ever tested for this key.
	First
)

func (r Result) String() string {
	switch r {
	case TooOld:
		return "too_old"
	case Duplicate:
		return "duplicate"
	case New:
		return "new"
	case Current:
		return "current"
	case Newest:
		return "newest"
	case First:
		return "first"
	default:
		return "unknown"
	}
}

// IsNew reports whether result should be treated as previously-unseen
// traffic worth processing or forwarding.
func (r Result) IsNew() bool {
	return r == New || r == Newest || r == First
}

// MaxTooOld is the number of consecutive too-old sequence numbers before an
// entry's window is reset, per OONF_DUPSET_MAXIMUM_TOO_OLD.
const MaxTooOld = 8

// windowBits is the width of the sliding-window bitmap (OONF_DUPSET_64BIT).
const windowBits = 64

type key struct {
	originator ib.PeerID
	msgType    uint8
}

type entry struct {
	history        uint64
	current        uint16
	tooOldCount     int
	validUntilTick int64
}

// Set tracks one duplicate-detection window per (originator, message type).
type Set struct {
	entries map[key]*entry
}

// New returns an empty duplicate set.
func New() *Set {
	return &Set{entries: map[key]*entry{}}
}

// Test records seqno as having been seen from originator for msgType and
// returns the classification of this observation. validUntil refreshes the
// entry's expiry so CheckValidity won't prune an actively-used window.
func (s *Set) Test(originator ib.PeerID, msgType uint8, seqno uint16, validUntil int64) Result {
	k := key{originator, msgType}
	e, ok := s.entries[k]
	if !ok {
		s.entries[k] = &entry{current: seqno, validUntilTick: validUntil}
		return First
	}
	e.validUntilTick = validUntil

	if seqno == 0 {
		// Restart marker (spec.md invariant 6): accepted unconditionally and
		// resets the window, regardless of how far along e.current is —
		// this is how a restarted originator's counter is distinguished
		// from plain reordering.
		e.history = 0
		e.current = 0
		e.tooOldCount = 0
		return First
	}

	d := seqnoDiff(seqno, e.current)
	switch {
	case d > 0:
		if d >= windowBits {
			e.history = 0
		} else {
			e.history <<= uint(d)
			e.history |= 1 << uint(d-1)
		}
		e.current = seqno
		e.tooOldCount = 0
		return Newest
	case d == 0:
		return Current
	default:
		age := -d
		if age > windowBits {
			e.tooOldCount++
			if e.tooOldCount > MaxTooOld {
				e.history = 0
				e.current = seqno
				e.tooOldCount = 0
				return First
			}
			return TooOld
		}
		bit := uint64(1) << uint(age-1)
		if e.history&bit != 0 {
			return Duplicate
		}
		e.history |= bit
		e.tooOldCount = 0
		return New
	}
}

// CheckValidity drops every (originator, msg-type) window whose last
// refreshed validity has passed now, mirroring ib.IB's expiry pattern.
func (s *Set) CheckValidity(now int64) {
	for k, e := range s.entries {
		if e.validUntilTick < now {
			delete(s.entries, k)
		}
	}
}

// seqnoDiff returns the signed distance from b to a over a 16-bit sequence
// space, per RFC5444's SEQNO_GT half-space wraparound convention: positive
// means a is newer than b.
func seqnoDiff(a, b uint16) int {
	d := int(a) - int(b)
	switch {
	case d > 1<<15:
		d -= 1 << 16
	case d < -(1 << 15):
		d += 1 << 16
	}
	return d
}
