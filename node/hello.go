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

package node

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/meshnet/olsr2/ib"
	rfc "github.com/meshnet/olsr2/rfc5444"
)

// selfVersion is ProtocolVersion pre-parsed for comparison against peers'
// PROTO_VERSION msg-tlv (SPEC_FULL §6 domain stack).
var selfVersion = goversion.Must(goversion.NewVersion(ProtocolVersion))

// isCompatibleProtoVersion reports whether raw, a peer's advertised
// PROTO_VERSION value, shares this build's major version. A missing or
// unparseable value is tolerated, since the ESP32 compact port predates
// this tlv and never sends one.
func isCompatibleProtoVersion(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	peer, err := goversion.NewVersion(string(raw))
	if err != nil {
		log.Warnf("node: unparseable proto_version %q: %v", raw, err)
		return true
	}
	return peer.Segments()[0] == selfVersion.Segments()[0]
}

// buildHello assembles this node's HELLO message (§4.5): one address
// entry per current neighbor, carrying its link status plus per-domain
// metric and MPR-status TLVs.
func (n *Node) buildHello() *rfc.Message {
	// The first HELLO built by a freshly-constructed Node carries
	// SeqNum == 0, the restart marker (§4.8, invariant 6); every
	// subsequent one increments from there.
	seq := n.helloSeq
	n.helloSeq++
	msg := &rfc.Message{
		Type:       rfc.MsgHello,
		AddrLen:    n.addrLen,
		Originator: n.selfAddr,
		HasSeqNum:  true,
		SeqNum:     seq,
	}
	msg.TLVs.Add(rfc.TLVValidityTime, 0, []byte{clampTick(n.cfg.HelloValidity.Seconds)})
	msg.TLVs.Add(rfc.TLVIntervalTime, 0, []byte{clampTick(n.cfg.HelloInterval.Seconds)})
	msg.TLVs.Add(rfc.TLVMPRWilling, 0, []byte{n.cfg.Willingness})
	msg.TLVs.Add(rfc.TLVProtoVersion, 0, []byte(ProtocolVersion))

	for _, id := range n.base.NeighborIDs() {
		nb := n.base.Neighbor(id)
		if nb == nil {
			continue
		}
		entry := rfc.AddressEntry{Addr: nb.Addr}
		entry.TLVs.Add(rfc.TLVLinkStatus, 0, []byte{linkStatusWire(nb.LinkStatus)})
		for _, d := range n.domains.All() {
			entry.TLVs.Add(rfc.TLVLinkMetric, d.ExtType, []byte{nb.OutMetric(d.ExtType)})
			entry.TLVs.Add(rfc.TLVMPRStatus, d.ExtType, []byte{nb.FloodingMPRStatus, nb.RoutingMPRStatus(d.ExtType)})
		}
		msg.Addrs = append(msg.Addrs, entry)
	}
	return msg
}

// emitHello builds, encodes and segments this node's HELLO.
func (n *Node) emitHello(now int64) ([][]byte, error) {
	msg := n.buildHello()
	frames, err := n.encodeAndSegment(msg)
	if err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}
	return frames, nil
}

func linkStatusWire(s ib.LinkStatus) uint8 {
	switch s {
	case ib.LinkSymmetric:
		return rfc.LinkSymmetric
	case ib.LinkHeard, ib.LinkPending:
		return rfc.LinkHeard
	default:
		return rfc.LinkLost
	}
}

func clampTick(seconds int) uint8 {
	if seconds > 0xff {
		return 0xff
	}
	if seconds < 0 {
		return 0
	}
	return uint8(seconds)
}

func setFromBit(status uint8, from bool) uint8 {
	if from {
		return status | rfc.MPRFrom
	}
	return status &^ rfc.MPRFrom
}

// OnHello processes a received HELLO message per §4.5's receive steps.
func (n *Node) OnHello(msg *rfc.Message, now int64) error {
	if n.isSelf(msg.Originator) {
		return nil
	}
	if v := msg.TLVs.Get(rfc.TLVProtoVersion, 0); v != nil && !isCompatibleProtoVersion(v.Value) {
		log.Warnf("node: ignoring hello from %x: incompatible proto_version %q", msg.Originator, v.Value)
		return nil
	}
	id, _, err := n.base.GetOrCreateID(msg.Originator)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	validUntil := now + int64(n.cfg.HelloValidity.Seconds)
	var seq uint16
	if msg.HasSeqNum {
		seq = msg.SeqNum
	}
	if result := n.dup.Test(id, rfc.MsgHello, seq, validUntil); !result.IsNew() {
		log.Debugf("node: dropping hello from peer %d: %s", id, result)
		return nil
	}

	var nb *ib.NeighborEntry
	switch n.base.Tag(id) {
	case ib.TagNeighbor:
		nb = n.base.Neighbor(id)
	case ib.TagTwoHop:
		nb, err = n.base.PromoteTwoHopToNeighbor(id)
	case ib.TagRemote:
		nb, err = n.base.PromoteRemoteToNeighbor(id)
	default:
		nb, err = n.base.RegisterNeighbor(id)
	}
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	nb.ValidUntilTick = validUntil
	nb.LastSeenTick = now
	nb.LastSeqNum[rfc.MsgHello] = seq
	nb.LinkStatus = ib.LinkHeard
	if willing := msg.TLVs.Get(rfc.TLVMPRWilling, 0); willing != nil && len(willing.Value) == 1 {
		nb.Willingness = willing.Value[0]
	}

	nb.LinkInfo = nb.LinkInfo[:0]
	for _, a := range msg.Addrs {
		if n.isSelf(a.Addr) {
			n.applySelfLinkInfo(nb, a)
			continue
		}
		status := a.TLVs.Get(rfc.TLVLinkStatus, 0)
		if status == nil || len(status.Value) != 1 || status.Value[0] != rfc.LinkSymmetric {
			continue
		}
		n.registerTwoHopFromHello(nb, a, validUntil)
	}
	return nil
}

// applySelfLinkInfo handles the HELLO address entry describing this
// node: it upgrades the link to SYMMETRIC and records whether the
// advertising neighbor selected us as its flooding/routing MPR.
func (n *Node) applySelfLinkInfo(nb *ib.NeighborEntry, a rfc.AddressEntry) {
	if status := a.TLVs.Get(rfc.TLVLinkStatus, 0); status != nil && len(status.Value) == 1 && status.Value[0] != rfc.LinkLost {
		nb.LinkStatus = ib.LinkSymmetric
	}
	for _, d := range n.domains.All() {
		mpr := a.TLVs.Get(rfc.TLVMPRStatus, d.ExtType)
		if mpr == nil || len(mpr.Value) != 2 {
			continue
		}
		if d.Flooding {
			theySelectedUs := mpr.Value[0]&rfc.MPRTo != 0
			nb.FloodingMPRStatus = setFromBit(nb.FloodingMPRStatus, theySelectedUs)
			continue
		}
		theySelectedUs := mpr.Value[1]&rfc.MPRTo != 0
		nb.SetRoutingMPRStatus(d.ExtType, setFromBit(nb.RoutingMPRStatus(d.ExtType), theySelectedUs))
	}
}

// registerTwoHopFromHello records a., a peer nb listed with SYMMETRIC
// status, as reachable via nb: a REMOTE entry promotes to TWO_HOP, a
// live TWO_HOP entry's validity is extended, and a brand new peer is
// registered directly as TWO_HOP.
func (n *Node) registerTwoHopFromHello(nb *ib.NeighborEntry, a rfc.AddressEntry, validUntil int64) {
	twoID, _, err := n.base.GetOrCreateID(a.Addr)
	if err != nil {
		log.Warnf("node: registering two-hop peer: %v", err)
		return
	}

	switch n.base.Tag(twoID) {
	case ib.TagRemote:
		if _, err := n.base.PromoteRemoteToTwoHop(twoID, validUntil); err != nil {
			log.Warnf("node: promoting remote to two-hop: %v", err)
			return
		}
	case ib.TagTwoHop:
		if th := n.base.TwoHop(twoID); th != nil && validUntil > th.ValidUntilTick {
			th.ValidUntilTick = validUntil
		}
	case ib.TagNeighbor:
		// already a direct neighbor; no two-hop bookkeeping needed.
	default:
		th, err := n.base.RegisterTwoHop(twoID)
		if err != nil {
			log.Warnf("node: registering two-hop peer: %v", err)
			return
		}
		th.ValidUntilTick = validUntil
	}

	for _, d := range n.domains.All() {
		metric := a.TLVs.Get(rfc.TLVLinkMetric, d.ExtType)
		if metric == nil || len(metric.Value) < 1 {
			continue
		}
		nb.LinkInfo = append(nb.LinkInfo, ib.LinkInfoEntry{PeerID: twoID, Metric: metric.Value[0], Domain: d.ExtType, Symmetric: true})
	}
}
