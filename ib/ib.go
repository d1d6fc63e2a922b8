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

package ib

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxPeer bounds the dense peer-id table (§3).
const DefaultMaxPeer = 128

// IB is the core-state value owning the peer table and all live entries
// (SPEC_FULL §9 "global mutable state" design note: bundled into one
// value the driver holds exactly one instance of, instead of the
// reference's file-scope static arrays).
type IB struct {
	maxPeer int

	// addrs[0] is unused; addrs[1:peerNum+1] are the dense peer addresses
	// (§3 invariant 1). A deleted entry's address is set to nil and its id
	// is not handed out again.
	addrs  [][]byte
	tags   []Tag
	hashes map[uint64][]PeerID

	neighbors map[PeerID]*NeighborEntry
	twoHops   map[PeerID]*TwoHopEntry
	remotes   map[PeerID]*RemoteEntry

	attachedNetworks []AttachedNetwork

	neighborIDs []PeerID
	twoHopIDs   []PeerID
	remoteIDs   []PeerID
}

// New creates an empty information base bounded at maxPeer live peers.
func New(maxPeer int) *IB {
	if maxPeer <= 0 {
		maxPeer = DefaultMaxPeer
	}
	return &IB{
		maxPeer:   maxPeer,
		addrs:     make([][]byte, 1, maxPeer+1), // index 0 reserved
		tags:      make([]Tag, 1, maxPeer+1),
		hashes:    make(map[uint64][]PeerID),
		neighbors: make(map[PeerID]*NeighborEntry),
		twoHops:   make(map[PeerID]*TwoHopEntry),
		remotes:   make(map[PeerID]*RemoteEntry),
	}
}

// Reset frees every entry and the peer table, as if newly constructed
// (§5 "driver may call reset()").
func (ib *IB) Reset() {
	*ib = *New(ib.maxPeer)
}

// PeerCount returns peer_num, the number of dense ids ever allocated
// (including freed ones whose slot is nil).
func (ib *IB) PeerCount() int { return len(ib.addrs) - 1 }

// Addr returns the address for id, or nil if the id was never allocated.
func (ib *IB) Addr(id PeerID) []byte {
	if int(id) <= 0 || int(id) >= len(ib.addrs) {
		return nil
	}
	return ib.addrs[id]
}

// GetOrCreateID performs the linear search (fast-pathed via an xxhash
// bucket) of §4.4: find addr's dense id, or allocate a new one if there
// is room. The bool result reports whether a new id was allocated.
func (ib *IB) GetOrCreateID(addr []byte) (PeerID, bool, error) {
	h := addrHash(addr)
	for _, cand := range ib.hashes[h] {
		if bytes.Equal(ib.addrs[cand], addr) {
			return cand, false, nil
		}
	}

	if ib.PeerCount() >= ib.maxPeer {
		// the table is full: confirm with a full linear scan over the
		// live entries that addr is not already present (§4.4's linear
		// contract) before giving up. Freed ids are not reused.
		for id := 1; id < len(ib.addrs); id++ {
			if ib.tags[id] == TagNone {
				continue
			}
			if bytes.Equal(ib.addrs[id], addr) {
				return PeerID(id), false, nil
			}
		}
		return 0, false, ErrPeerTableFull
	}

	id := PeerID(len(ib.addrs))
	ib.addrs = append(ib.addrs, append([]byte(nil), addr...))
	ib.tags = append(ib.tags, TagNone)
	ib.hashes[h] = append(ib.hashes[h], id)
	return id, true, nil
}

// RegisterNeighbor allocates a zeroed NEIGHBOR entry for id. The slot
// must be empty (TagNone).
func (ib *IB) RegisterNeighbor(id PeerID) (*NeighborEntry, error) {
	if ib.tags[id] != TagNone {
		return nil, fmt.Errorf("%w: peer %d tag %d", ErrSlotOccupied, id, ib.tags[id])
	}
	e := &NeighborEntry{PeerID: id, Addr: ib.addrs[id], LastSeqNum: make(map[uint8]uint16)}
	ib.neighbors[id] = e
	ib.tags[id] = TagNeighbor
	ib.updateIDLists()
	return e, nil
}

// RegisterTwoHop allocates a zeroed TWO_HOP entry for id.
func (ib *IB) RegisterTwoHop(id PeerID) (*TwoHopEntry, error) {
	if ib.tags[id] != TagNone {
		return nil, fmt.Errorf("%w: peer %d tag %d", ErrSlotOccupied, id, ib.tags[id])
	}
	e := &TwoHopEntry{PeerID: id, Addr: ib.addrs[id]}
	ib.twoHops[id] = e
	ib.tags[id] = TagTwoHop
	ib.updateIDLists()
	return e, nil
}

// RegisterRemote allocates a zeroed REMOTE entry for id.
func (ib *IB) RegisterRemote(id PeerID) (*RemoteEntry, error) {
	if ib.tags[id] != TagNone {
		return nil, fmt.Errorf("%w: peer %d tag %d", ErrSlotOccupied, id, ib.tags[id])
	}
	e := &RemoteEntry{PeerID: id, Addr: ib.addrs[id], LastSeqNum: make(map[uint8]uint16)}
	ib.remotes[id] = e
	ib.tags[id] = TagRemote
	ib.updateIDLists()
	return e, nil
}

// Tag returns the current tag for id.
func (ib *IB) Tag(id PeerID) Tag {
	if int(id) <= 0 || int(id) >= len(ib.tags) {
		return TagNone
	}
	return ib.tags[id]
}

// Neighbor, TwoHop and Remote look up a live entry by id, or nil.
func (ib *IB) Neighbor(id PeerID) *NeighborEntry { return ib.neighbors[id] }
func (ib *IB) TwoHop(id PeerID) *TwoHopEntry      { return ib.twoHops[id] }
func (ib *IB) Remote(id PeerID) *RemoteEntry       { return ib.remotes[id] }

// NeighborIDs, TwoHopIDs and RemoteIDs return the current disjoint
// partition of live peer-ids by tag (§3 invariant 4).
func (ib *IB) NeighborIDs() []PeerID { return ib.neighborIDs }
func (ib *IB) TwoHopIDs() []PeerID    { return ib.twoHopIDs }
func (ib *IB) RemoteIDs() []PeerID     { return ib.remoteIDs }

// AttachedNetworks returns all live attached-network leaf edges.
func (ib *IB) AttachedNetworks() []AttachedNetwork { return ib.attachedNetworks }

// SetAttachedNetwork inserts or refreshes the attached-network entry
// originator advertises for prefix/domain.
func (ib *IB) SetAttachedNetwork(originator PeerID, prefix []byte, prefixLen, metric, domain uint8, validUntil int64) {
	for i := range ib.attachedNetworks {
		a := &ib.attachedNetworks[i]
		if a.Originator == originator && a.Domain == domain && bytes.Equal(a.Prefix, prefix) && a.PrefixLen == prefixLen {
			a.Metric = metric
			a.ValidUntilTick = validUntil
			return
		}
	}
	ib.attachedNetworks = append(ib.attachedNetworks, AttachedNetwork{
		Originator: originator, Prefix: append([]byte(nil), prefix...),
		PrefixLen: prefixLen, Metric: metric, Domain: domain, ValidUntilTick: validUntil,
	})
}

// deleteEntry frees id's live entry (whichever table holds it) and nulls
// its slot. Peer-ids are never reassigned (§3 lifecycle).
func (ib *IB) deleteEntry(id PeerID) {
	switch ib.tags[id] {
	case TagNeighbor:
		delete(ib.neighbors, id)
	case TagTwoHop:
		delete(ib.twoHops, id)
	case TagRemote:
		delete(ib.remotes, id)
	}
	ib.tags[id] = TagNone
	ib.addrs[id] = nil
}

// pruneHashBucket removes id from whichever bucket its (now-zeroed)
// address used to hash to. Called with the address captured before
// clearing.
func (ib *IB) pruneHashBucket(addr []byte, id PeerID) {
	h := addrHash(addr)
	bucket := ib.hashes[h]
	for i, v := range bucket {
		if v == id {
			ib.hashes[h] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
}

// CheckValidity frees and nulls every live entry whose valid-until has
// passed now, then rebuilds the id-lists if anything changed (§4.4).
func (ib *IB) CheckValidity(now int64) {
	changed := false
	for id := 1; id < len(ib.tags); id++ {
		pid := PeerID(id)
		var validUntil int64
		live := true
		switch ib.tags[id] {
		case TagNeighbor:
			validUntil = ib.neighbors[pid].ValidUntilTick
		case TagTwoHop:
			validUntil = ib.twoHops[pid].ValidUntilTick
		case TagRemote:
			validUntil = ib.remotes[pid].ValidUntilTick
		default:
			live = false
		}
		if live && validUntil < now {
			log.Debugf("ib: expiring peer %d (tag %d, valid until %d < now %d)", id, ib.tags[id], validUntil, now)
			addr := ib.addrs[id]
			ib.deleteEntry(pid)
			ib.pruneHashBucket(addr, pid)
			changed = true
		}
	}

	keptNets := ib.attachedNetworks[:0]
	for _, a := range ib.attachedNetworks {
		if a.ValidUntilTick >= now {
			keptNets = append(keptNets, a)
		}
	}
	ib.attachedNetworks = keptNets

	if changed {
		ib.updateIDLists()
	}
}

// updateIDLists rebuilds the three id-lists by scanning tags (§4.4).
func (ib *IB) updateIDLists() {
	ib.neighborIDs = ib.neighborIDs[:0]
	ib.twoHopIDs = ib.twoHopIDs[:0]
	ib.remoteIDs = ib.remoteIDs[:0]
	for id := 1; id < len(ib.tags); id++ {
		switch ib.tags[id] {
		case TagNeighbor:
			ib.neighborIDs = append(ib.neighborIDs, PeerID(id))
		case TagTwoHop:
			ib.twoHopIDs = append(ib.twoHopIDs, PeerID(id))
		case TagRemote:
			ib.remoteIDs = append(ib.remoteIDs, PeerID(id))
		}
	}
}

// PromoteTwoHopToNeighbor converts a TWO_HOP entry into a NEIGHBOR entry
// on receiving that peer's own HELLO, retaining valid_until (§4.4 tag
// transition table).
func (ib *IB) PromoteTwoHopToNeighbor(id PeerID) (*NeighborEntry, error) {
	old, ok := ib.twoHops[id]
	if !ok {
		return nil, fmt.Errorf("%w: peer %d is not a two-hop entry", ErrUnknownPeer, id)
	}
	delete(ib.twoHops, id)
	n := &NeighborEntry{
		PeerID:         id,
		Addr:           old.Addr,
		ValidUntilTick: old.ValidUntilTick,
		LastSeqNum:     make(map[uint8]uint16),
	}
	ib.neighbors[id] = n
	ib.tags[id] = TagNeighbor
	ib.updateIDLists()
	return n, nil
}

// PromoteRemoteToNeighbor converts a REMOTE entry into a NEIGHBOR entry
// on receiving that peer's own HELLO, retaining valid_until.
func (ib *IB) PromoteRemoteToNeighbor(id PeerID) (*NeighborEntry, error) {
	old, ok := ib.remotes[id]
	if !ok {
		return nil, fmt.Errorf("%w: peer %d is not a remote entry", ErrUnknownPeer, id)
	}
	delete(ib.remotes, id)
	n := &NeighborEntry{
		PeerID:         id,
		Addr:           old.Addr,
		ValidUntilTick: old.ValidUntilTick,
		LastSeqNum:     make(map[uint8]uint16),
	}
	ib.neighbors[id] = n
	ib.tags[id] = TagNeighbor
	ib.updateIDLists()
	return n, nil
}

// PromoteRemoteToTwoHop converts a REMOTE entry into a TWO_HOP entry when
// a symmetric neighbor's HELLO lists this peer's address (§4.4 tag
// transition table).
func (ib *IB) PromoteRemoteToTwoHop(id PeerID, validUntil int64) (*TwoHopEntry, error) {
	old, ok := ib.remotes[id]
	if !ok {
		return nil, fmt.Errorf("%w: peer %d is not a remote entry", ErrUnknownPeer, id)
	}
	delete(ib.remotes, id)
	v := old.ValidUntilTick
	if validUntil < v {
		v = validUntil
	}
	t := &TwoHopEntry{PeerID: id, Addr: old.Addr, ValidUntilTick: v}
	ib.twoHops[id] = t
	ib.tags[id] = TagTwoHop
	ib.updateIDLists()
	return t, nil
}
