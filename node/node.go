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

// Package node wires the information base, MPR/route computation and
// duplicate-set packages into the reference port's two entry points
// (§4.5, §4.10): on_tick is Node.OnTick, and on_packet is the Driver's
// frame handling, which reassembles and decodes each packet and hands
// its messages to Node.OnHello or Node.OnTC. It owns the single
// mutable core-state value a driver holds exactly one instance of.
package node

import (
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/meshnet/olsr2/config"
	"github.com/meshnet/olsr2/domain"
	"github.com/meshnet/olsr2/dupset"
	"github.com/meshnet/olsr2/ib"
	rfc "github.com/meshnet/olsr2/rfc5444"
	"github.com/meshnet/olsr2/segment"
)

// ProtocolVersion is this build's wire-format version, negotiated via the
// PROTO_VERSION msg-tlv (SPEC_FULL §6) so mixed compact/full-port meshes
// can detect incompatible peers.
const ProtocolVersion = "1.0.0"

// Node is the routing core's mutable state: the information base, the
// configured domains, the duplicate-set, and the segment codec bound to
// one link MTU. A Driver is the only thing that calls into it.
type Node struct {
	cfg      *config.Config
	selfAddr []byte
	addrLen  uint8

	base    *ib.IB
	domains *domain.Manager
	dup     *dupset.Set
	seg     *segment.Segmenter
	reasm   *segment.Reassembler

	tick     int64
	helloSeq uint16
	tcSeq    uint16

	attachedNetworks []localAttachedNetwork

	lastResults []domain.Result
}

// localAttachedNetwork is one leaf prefix this node advertises on its
// own behalf, decoded once from config.AttachedNetworkConfig (SPEC_FULL
// §7).
type localAttachedNetwork struct {
	Domain    uint8
	Prefix    []byte
	PrefixLen uint8
	Metric    uint8
}

// New builds a Node from cfg, identified on the wire by selfAddr.
func New(cfg *config.Config, selfAddr []byte) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	domains := domain.NewManager()
	hasFlooding := false
	for _, d := range cfg.Domains {
		if err := domains.Register(domain.Domain{ExtType: d.ExtType, Name: d.Name, Flooding: d.Flooding}); err != nil {
			return nil, err
		}
		if d.Flooding {
			hasFlooding = true
		}
	}
	if !hasFlooding {
		return nil, ErrNoFloodingDomain
	}

	attachedNetworks := make([]localAttachedNetwork, 0, len(cfg.AttachedNetworks))
	for _, an := range cfg.AttachedNetworks {
		prefix, err := hex.DecodeString(an.Prefix)
		if err != nil {
			return nil, fmt.Errorf("node: decoding attached network prefix %q: %w", an.Prefix, err)
		}
		attachedNetworks = append(attachedNetworks, localAttachedNetwork{
			Domain: an.Domain, Prefix: prefix, PrefixLen: an.PrefixLen, Metric: an.Metric,
		})
	}

	return &Node{
		cfg:              cfg,
		selfAddr:         append([]byte(nil), selfAddr...),
		addrLen:          uint8(len(selfAddr)),
		base:             ib.New(cfg.MaxPeers),
		domains:          domains,
		dup:              dupset.New(),
		seg:              segment.NewSegmenter(cfg.FrameSize),
		reasm:            segment.NewReassembler(cfg.FrameSize),
		attachedNetworks: attachedNetworks,
	}, nil
}

// Reset frees every information-base entry, duplicate-set window and
// in-flight reassembly buffer, and zeroes the tick/sequence counters, as
// if n had just been constructed (§5 "the driver may call a reset() that
// frees all entries and clears counters; no other cancellation exists").
func (n *Node) Reset() {
	n.base.Reset()
	n.dup = dupset.New()
	n.reasm.Reset()
	n.tick = 0
	n.helloSeq = 0
	n.tcSeq = 0
	n.lastResults = nil
}

// IB exposes the information base for CLI/inspection callers.
func (n *Node) IB() *ib.IB { return n.base }

// Domains exposes the domain manager for CLI/inspection callers.
func (n *Node) Domains() *domain.Manager { return n.domains }

// LastResults returns the MPR/routing results computed by the most
// recent OnTick call.
func (n *Node) LastResults() []domain.Result { return n.lastResults }

func (n *Node) isSelf(addr []byte) bool {
	return len(addr) == len(n.selfAddr) && string(addr) == string(n.selfAddr)
}

// OnTick runs the periodic work of §4.5: purge expired entries, recompute
// MPR/routing for every domain, and emit HELLO/TC frames on their
// configured intervals. It returns zero or more wire-ready, already
// segmented frames for the driver to transmit.
func (n *Node) OnTick(now int64) [][]byte {
	n.tick++
	n.base.CheckValidity(now)
	n.dup.CheckValidity(now)
	n.lastResults = n.domains.Recompute(n.base)

	var out [][]byte
	if n.cfg.HelloInterval.Seconds > 0 && n.tick%int64(n.cfg.HelloInterval.Seconds) == 0 {
		if frames, err := n.emitHello(now); err != nil {
			log.Warnf("node: building hello: %v", err)
		} else {
			out = append(out, frames...)
		}
	}
	if n.cfg.TCInterval.Seconds > 0 && n.tick%int64(n.cfg.TCInterval.Seconds) == 0 {
		if n.isRoutingMPR() {
			if frames, err := n.emitTC(now); err != nil {
				log.Warnf("node: building tc: %v", err)
			} else {
				out = append(out, frames...)
			}
		}
	}
	return out
}

// isRoutingMPR reports whether at least one neighbor has selected this
// node as its MPR, in any configured domain (§4.5 step 4's TC-send gate).
func (n *Node) isRoutingMPR() bool {
	for _, id := range n.base.NeighborIDs() {
		nb := n.base.Neighbor(id)
		if nb == nil {
			continue
		}
		if nb.FloodingMPRStatus&rfc.MPRFrom != 0 {
			return true
		}
		for _, d := range n.domains.All() {
			if !d.Flooding && nb.RoutingMPRStatus(d.ExtType)&rfc.MPRFrom != 0 {
				return true
			}
		}
	}
	return false
}

// encodeAndSegment is the shared tail of emitHello/emitTC: wrap one
// message into a packet, encode it, and split it into link frames.
func (n *Node) encodeAndSegment(msg *rfc.Message) ([][]byte, error) {
	pkt := &rfc.Packet{Version: 0, Messages: []*rfc.Message{msg}}
	wire, err := rfc.Encode(pkt)
	if err != nil {
		return nil, err
	}
	return n.seg.Split(wire)
}
