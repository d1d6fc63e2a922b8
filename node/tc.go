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

	log "github.com/sirupsen/logrus"

	"github.com/meshnet/olsr2/ib"
	rfc "github.com/meshnet/olsr2/rfc5444"
)

// DefaultHopLimit bounds how many times a TC message may be relayed
// before it is dropped rather than forwarded further (§4.5 step 4).
const DefaultHopLimit = 16

// tcSelectorIDs returns this node's routing-MPR selectors: neighbors
// that have chosen this node as their MPR in the flooding domain or any
// routing domain (the topology-reduction set a TC message advertises).
func (n *Node) tcSelectorIDs() []ib.PeerID {
	var out []ib.PeerID
	for _, id := range n.base.NeighborIDs() {
		nb := n.base.Neighbor(id)
		if nb == nil {
			continue
		}
		selector := nb.FloodingMPRStatus&rfc.MPRFrom != 0
		for _, d := range n.domains.All() {
			if !d.Flooding && nb.RoutingMPRStatus(d.ExtType)&rfc.MPRFrom != 0 {
				selector = true
			}
		}
		if selector {
			out = append(out, id)
		}
	}
	return out
}

// buildTC assembles this node's TC message: one address entry per
// routing-MPR selector, carrying each domain's outgoing/incoming metric.
func (n *Node) buildTC() *rfc.Message {
	// As with buildHello, the first TC emitted carries SeqNum == 0, the
	// restart marker (§4.8, invariant 6).
	seq := n.tcSeq
	n.tcSeq++
	msg := &rfc.Message{
		Type:        rfc.MsgTC,
		AddrLen:     n.addrLen,
		Originator:  n.selfAddr,
		HasHopLimit: true,
		HopLimit:    DefaultHopLimit,
		HasHopCount: true,
		HopCount:    0,
		HasSeqNum:   true,
		SeqNum:      seq,
	}
	msg.TLVs.Add(rfc.TLVValidityTime, 0, []byte{clampTick(n.cfg.TCValidity.Seconds)})
	msg.TLVs.Add(rfc.TLVIntervalTime, 0, []byte{clampTick(n.cfg.TCInterval.Seconds)})
	msg.TLVs.Add(rfc.TLVMPRWilling, 0, []byte{n.cfg.Willingness})

	for _, an := range n.attachedNetworks {
		value := append(append([]byte(nil), an.Prefix...), an.PrefixLen, an.Metric)
		msg.TLVs.Add(rfc.TLVAttachedNetwork, an.Domain, value)
	}

	for _, id := range n.tcSelectorIDs() {
		nb := n.base.Neighbor(id)
		if nb == nil {
			continue
		}
		entry := rfc.AddressEntry{Addr: nb.Addr}
		for _, d := range n.domains.All() {
			entry.TLVs.Add(rfc.TLVLinkMetric, d.ExtType, []byte{nb.OutMetric(d.ExtType), nb.InMetric(d.ExtType)})
		}
		msg.Addrs = append(msg.Addrs, entry)
	}
	return msg
}

// emitTC builds, encodes and segments this node's TC.
func (n *Node) emitTC(now int64) ([][]byte, error) {
	msg := n.buildTC()
	frames, err := n.encodeAndSegment(msg)
	if err != nil {
		return nil, fmt.Errorf("tc: %w", err)
	}
	return frames, nil
}

// OnTC processes a received TC message per §4.5's receive steps, and
// reports whether the caller should forward it (true) or drop it
// silently (false). prevHop is the link-layer address of whoever handed
// us this frame, used for the flooding-reduction forwarding check.
func (n *Node) OnTC(msg *rfc.Message, now int64, prevHop []byte) (bool, error) {
	if n.isSelf(msg.Originator) {
		return false, nil
	}

	id, _, err := n.base.GetOrCreateID(msg.Originator)
	if err != nil {
		return false, fmt.Errorf("tc: %w", err)
	}

	validUntil := now + int64(n.cfg.TCValidity.Seconds)
	var seq uint16
	if msg.HasSeqNum {
		seq = msg.SeqNum
	}
	if result := n.dup.Test(id, rfc.MsgTC, seq, validUntil); !result.IsNew() {
		log.Debugf("node: dropping tc from peer %d: %s", id, result)
		return false, nil
	}

	if n.base.Tag(id) != ib.TagNeighbor {
		if err := n.updateRemoteFromTC(id, msg, validUntil); err != nil {
			return false, fmt.Errorf("tc: %w", err)
		}
	}
	n.applyAttachedNetworks(id, msg, validUntil)

	hopCount := uint8(0)
	if msg.HasHopCount {
		hopCount = msg.HopCount
	}
	hopLimit := uint8(DefaultHopLimit)
	if msg.HasHopLimit {
		hopLimit = msg.HopLimit
	}
	hopCount++
	msg.HopCount = hopCount
	msg.HasHopCount = true
	if hopCount >= hopLimit {
		return false, nil
	}

	return n.isFloodingSelector(prevHop), nil
}

// applyAttachedNetworks reads every ATTACHED_NETWORK TLV msg carries (one
// per domain ext-type, possibly repeated) and refreshes the leaf-edge
// entries id advertises in the information base (SPEC_FULL §7).
func (n *Node) applyAttachedNetworks(id ib.PeerID, msg *rfc.Message, validUntil int64) {
	for _, d := range n.domains.All() {
		for t := msg.TLVs.Get(rfc.TLVAttachedNetwork, d.ExtType); t != nil; t = t.Next {
			if len(t.Value) < 3 {
				log.Warnf("node: malformed attached_network tlv from peer %d: %d bytes", id, len(t.Value))
				continue
			}
			prefixLen := t.Value[len(t.Value)-2]
			metric := t.Value[len(t.Value)-1]
			prefix := t.Value[:len(t.Value)-2]
			n.base.SetAttachedNetwork(id, prefix, prefixLen, metric, d.ExtType, validUntil)
		}
	}
}

// isFloodingSelector reports whether the neighbor at link address
// prevHop has chosen this node as its flooding MPR: the flooding
// reduction rule (§4.5 step 5) only relays messages that arrived via
// such a neighbor.
func (n *Node) isFloodingSelector(prevHop []byte) bool {
	if prevHop == nil {
		return false
	}
	for _, id := range n.base.NeighborIDs() {
		nb := n.base.Neighbor(id)
		if nb == nil || string(nb.Addr) != string(prevHop) {
			continue
		}
		return nb.FloodingMPRStatus&rfc.MPRFrom != 0
	}
	return false
}

// updateRemoteFromTC refreshes (or creates) the REMOTE entry for a
// non-neighbor TC originator and its advertised selectors.
func (n *Node) updateRemoteFromTC(id ib.PeerID, msg *rfc.Message, validUntil int64) error {
	var r *ib.RemoteEntry
	switch n.base.Tag(id) {
	case ib.TagRemote:
		r = n.base.Remote(id)
	case ib.TagTwoHop:
		// a two-hop entry's routing info is already computed from the
		// advertising neighbor's link-info; ib has no tag for "both
		// two-hop and remote", so its TC-advertised selectors are not
		// separately tracked until it either expires or is promoted.
		return nil
	case ib.TagNone:
		var err error
		r, err = n.base.RegisterRemote(id)
		if err != nil {
			return err
		}
	default:
		return nil
	}
	r.ValidUntilTick = validUntil
	r.LinkInfo = r.LinkInfo[:0]

	for _, a := range msg.Addrs {
		selID, _, err := n.base.GetOrCreateID(a.Addr)
		if err != nil {
			log.Warnf("node: registering tc selector: %v", err)
			continue
		}
		if n.base.Tag(selID) == ib.TagNone {
			if _, err := n.base.RegisterRemote(selID); err != nil {
				log.Warnf("node: registering tc selector remote entry: %v", err)
				continue
			}
		}
		for _, d := range n.domains.All() {
			metric := a.TLVs.Get(rfc.TLVLinkMetric, d.ExtType)
			if metric == nil || len(metric.Value) < 1 {
				continue
			}
			r.LinkInfo = append(r.LinkInfo, ib.LinkInfoEntry{PeerID: selID, Metric: metric.Value[0], Domain: d.ExtType, Symmetric: true})
		}
	}
	return nil
}
