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

// Package ib implements the neighbor information base: the peer table,
// NEIGHBOR/TWO_HOP/REMOTE entries and their validity-timer-driven
// lifecycle (§3, §4.4).
package ib

import (
	rfc "github.com/meshnet/olsr2/rfc5444"
)

// PeerID is a dense id in [1, MaxPeer]; 0 is reserved for "self/none".
type PeerID uint16

// Self is the reserved peer-id meaning "self" or "unused" (§3).
const Self PeerID = 0

// Tag discriminates which table an id's live entry lives in (§3).
type Tag uint8

// Entry tags.
const (
	TagNone Tag = iota
	TagNeighbor
	TagTwoHop
	TagRemote
)

// Link statuses for a one-hop neighbor (§3). LinkPending is the zero value
// a newly registered neighbor entry carries until its first HELLO is
// processed; it goes on the wire as HEARD and, like LinkHeard, never makes
// a neighbor MPR-eligible.
type LinkStatus uint8

// Link statuses.
const (
	LinkPending   LinkStatus = 0
	LinkHeard     LinkStatus = 1
	LinkSymmetric LinkStatus = 2
	LinkLost      LinkStatus = 3
)

// MPR status re-exports the wire values so callers can compare directly
// against rfc5444 TLV contents.
type MPRStatus = uint8

// MPR status values.
const (
	MPRNone   MPRStatus = rfc.MPRNone
	MPRTo     MPRStatus = rfc.MPRTo
	MPRFrom   MPRStatus = rfc.MPRFrom
	MPRToFrom MPRStatus = rfc.MPRToFrom
)

// LinkInfoEntry is one (peer, metric) edge advertised by a neighbor or
// remote entry, tagged with the domain it was advertised under (§3, §4.9).
type LinkInfoEntry struct {
	PeerID PeerID
	Metric uint8
	Domain uint8
	// Symmetric records whether the advertising message marked this
	// target as a symmetric link — only meaningful for neighbor
	// entries' link-info, where it drives MPR coverage (§4.6).
	Symmetric bool
}

// DomainMetric is a per-domain in/out link metric pair (§3).
type DomainMetric struct {
	Domain     uint8
	In, Out    uint8
}

// DomainMPR is a per-domain MPR status value.
type DomainMPR struct {
	Domain uint8
	Status MPRStatus
}

// NeighborEntry is a symmetric-or-heard one-hop peer (§3).
type NeighborEntry struct {
	PeerID            PeerID
	Addr              []byte
	LinkStatus        LinkStatus
	Metrics           []DomainMetric
	Willingness       uint8
	FloodingMPRStatus MPRStatus // only one flooding domain exists (§4.9)
	RoutingMPR        []DomainMPR
	LastSeenTick      int64
	ValidUntilTick    int64
	LastSeqNum        map[uint8]uint16 // keyed by rfc5444 message type
	LinkInfo          []LinkInfoEntry
}

func (n *NeighborEntry) metric(domain uint8) *DomainMetric {
	for i := range n.Metrics {
		if n.Metrics[i].Domain == domain {
			return &n.Metrics[i]
		}
	}
	return nil
}

// SetMetric records the in/out metric this neighbor advertised for domain.
func (n *NeighborEntry) SetMetric(domain uint8, in, out uint8) {
	if m := n.metric(domain); m != nil {
		m.In, m.Out = in, out
		return
	}
	n.Metrics = append(n.Metrics, DomainMetric{Domain: domain, In: in, Out: out})
}

// OutMetric returns the outgoing metric to this neighbor for domain, or
// the sentinel unreachable value if none was ever advertised.
func (n *NeighborEntry) OutMetric(domain uint8) uint8 {
	if m := n.metric(domain); m != nil {
		return m.Out
	}
	return Sentinel
}

// InMetric returns the incoming metric this neighbor advertised for
// domain (the cost it measured from itself to us), or the sentinel
// unreachable value if none was ever advertised.
func (n *NeighborEntry) InMetric(domain uint8) uint8 {
	if m := n.metric(domain); m != nil {
		return m.In
	}
	return Sentinel
}

func (n *NeighborEntry) routingMPR(domain uint8) *DomainMPR {
	for i := range n.RoutingMPR {
		if n.RoutingMPR[i].Domain == domain {
			return &n.RoutingMPR[i]
		}
	}
	return nil
}

// RoutingMPRStatus returns this neighbor's routing-MPR status for domain.
func (n *NeighborEntry) RoutingMPRStatus(domain uint8) MPRStatus {
	if m := n.routingMPR(domain); m != nil {
		return m.Status
	}
	return MPRNone
}

// SetRoutingMPRStatus sets this neighbor's routing-MPR status for domain.
func (n *NeighborEntry) SetRoutingMPRStatus(domain uint8, status MPRStatus) {
	if m := n.routingMPR(domain); m != nil {
		m.Status = status
		return
	}
	n.RoutingMPR = append(n.RoutingMPR, DomainMPR{Domain: domain, Status: status})
}

// TwoHopEntry is a peer reachable only via at least one symmetric
// neighbor (§3).
type TwoHopEntry struct {
	PeerID         PeerID
	Addr           []byte
	Routing        RoutingInfo
	ValidUntilTick int64
	LinkInfo       []LinkInfoEntry
}

// RoutingInfo is the Dijkstra-computed next-hop/metric for a TwoHopEntry
// or RemoteEntry (§3, §4.7).
type RoutingInfo struct {
	NextHop     PeerID
	HopCount    uint8
	PathMetric  uint8
}

// Sentinel marks "unreachable" in path metrics and Dijkstra's tentative
// distance vector (§4.7).
const Sentinel uint8 = 255

// RemoteEntry is a peer reachable via >=2 hops, discovered through TC
// flooding (§3).
type RemoteEntry struct {
	PeerID         PeerID
	Addr           []byte
	Routing        RoutingInfo
	Metrics        []DomainMetric
	ValidUntilTick int64
	LastSeqNum     map[uint8]uint16
	IsRoutingMPR   bool
	LinkInfo       []LinkInfoEntry
}

func (r *RemoteEntry) metric(domain uint8) *DomainMetric {
	for i := range r.Metrics {
		if r.Metrics[i].Domain == domain {
			return &r.Metrics[i]
		}
	}
	return nil
}

// SetMetric records the in/out metric this remote's advertising TC
// carried for domain.
func (r *RemoteEntry) SetMetric(domain uint8, in, out uint8) {
	if m := r.metric(domain); m != nil {
		m.In, m.Out = in, out
		return
	}
	r.Metrics = append(r.Metrics, DomainMetric{Domain: domain, In: in, Out: out})
}

// AttachedNetwork is a leaf prefix advertised by some originator instead
// of a peer-id (SPEC_FULL §7, original_source olsrv2_lan.h).
type AttachedNetwork struct {
	Originator     PeerID
	Prefix         []byte
	PrefixLen      uint8
	Metric         uint8
	Domain         uint8
	ValidUntilTick int64
}
