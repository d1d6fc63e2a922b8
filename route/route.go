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

// Package route computes the routing set: single-source shortest paths from
// self to every known neighbor and remote peer, using the metrics each one
// has advertised for a domain (§4.7).
package route

import (
	"container/heap"

	"github.com/meshnet/olsr2/ib"
)

// Compute runs Dijkstra's algorithm from self over the symmetric neighbor,
// two-hop and remote peers known to base for the given domain, and returns
// the resulting next-hop/hop-count/path-metric for every reachable peer. It
// also writes the result back onto each TwoHopEntry's and RemoteEntry's
// Routing field (§4.7), since neighbor entries already have their routing
// state implicit in their own advertised out-metric.
//
// Unreachable peers are omitted from the result (equivalent to the
// all-255/"used" sentinel the tentative distance array converges to when a
// node can never be reached).
func Compute(base *ib.IB, domain uint8) map[ib.PeerID]ib.RoutingInfo {
	result := map[ib.PeerID]ib.RoutingInfo{}
	pq := &priorityQueue{}
	heap.Init(pq)

	// Step 1: seed tentative distances. Direct symmetric neighbors start at
	// their own advertised out-metric; everything else starts unreachable
	// and is only discovered by relaxation through a neighbor's or a
	// remote's link info.
	for _, nid := range base.NeighborIDs() {
		n := base.Neighbor(nid)
		if n == nil || n.LinkStatus != ib.LinkSymmetric {
			continue
		}
		m := n.OutMetric(domain)
		if m == ib.Sentinel {
			continue
		}
		ri := ib.RoutingInfo{NextHop: nid, HopCount: 1, PathMetric: m}
		result[nid] = ri
		heap.Push(pq, &pqItem{id: nid, dist: m})
	}

	// linkInfoOf returns the advertised (domain-tagged) edges out of a
	// peer-id, regardless of whether it's currently a neighbor, two-hop or
	// remote entry. A two-hop peer's own link-info (carried on any TC it
	// floods as a selector) is what lets Dijkstra discover edges beyond the
	// two-hop horizon (§4.7).
	linkInfoOf := func(id ib.PeerID) []ib.LinkInfoEntry {
		switch base.Tag(id) {
		case ib.TagNeighbor:
			if n := base.Neighbor(id); n != nil {
				return n.LinkInfo
			}
		case ib.TagTwoHop:
			if t := base.TwoHop(id); t != nil {
				return t.LinkInfo
			}
		case ib.TagRemote:
			if r := base.Remote(id); r != nil {
				return r.LinkInfo
			}
		}
		return nil
	}

	finalized := map[ib.PeerID]bool{}

	// Step 2: relax. Each iteration finalizes the tentative node with the
	// lowest distance and relaxes its outgoing edges for this domain.
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if finalized[item.id] {
			continue // a stale heap entry from an earlier relaxation
		}
		if cur, ok := result[item.id]; !ok || cur.PathMetric != item.dist {
			continue // superseded by a better path since this was pushed
		}
		finalized[item.id] = true
		cur := result[item.id]

		for _, li := range linkInfoOf(item.id) {
			if li.Domain != domain {
				continue
			}
			if finalized[li.PeerID] {
				continue
			}
			newDist := addMetric(cur.PathMetric, li.Metric)
			existing, known := result[li.PeerID]
			if known && existing.PathMetric <= newDist {
				continue
			}
			ri := ib.RoutingInfo{NextHop: cur.NextHop, HopCount: cur.HopCount + 1, PathMetric: newDist}
			result[li.PeerID] = ri
			heap.Push(pq, &pqItem{id: li.PeerID, dist: newDist})
		}
	}

	delete(result, ib.Self)

	for _, rid := range base.RemoteIDs() {
		r := base.Remote(rid)
		if r == nil {
			continue
		}
		if ri, ok := result[rid]; ok {
			r.Routing = ri
		} else {
			r.Routing = ib.RoutingInfo{NextHop: ib.Self, HopCount: ib.Sentinel, PathMetric: ib.Sentinel}
		}
	}

	for _, tid := range base.TwoHopIDs() {
		t := base.TwoHop(tid)
		if t == nil {
			continue
		}
		if ri, ok := result[tid]; ok {
			t.Routing = ri
		} else {
			t.Routing = ib.RoutingInfo{NextHop: ib.Self, HopCount: ib.Sentinel, PathMetric: ib.Sentinel}
		}
	}

	return result
}

// NetworkRoute is the computed reachability of one attached-network leaf
// edge (SPEC_FULL §7): the prefix itself carries no further edges, so it
// is always one hop past whichever peer advertised it.
type NetworkRoute struct {
	Network    ib.AttachedNetwork
	NextHop    ib.PeerID
	HopCount   uint8
	PathMetric uint8
}

// ComputeNetworks folds base's live attached-network entries for domain
// into leaf routes off peerRoutes (the Compute result for the same
// domain), dropping any whose advertising originator is not itself
// reachable.
func ComputeNetworks(base *ib.IB, domain uint8, peerRoutes map[ib.PeerID]ib.RoutingInfo) []NetworkRoute {
	var out []NetworkRoute
	for _, an := range base.AttachedNetworks() {
		if an.Domain != domain {
			continue
		}
		var ri ib.RoutingInfo
		switch {
		case an.Originator == ib.Self:
			ri = ib.RoutingInfo{NextHop: ib.Self, HopCount: 0, PathMetric: 0}
		default:
			r, ok := peerRoutes[an.Originator]
			if !ok {
				continue
			}
			ri = r
		}
		out = append(out, NetworkRoute{
			Network:    an,
			NextHop:    ri.NextHop,
			HopCount:   ri.HopCount + 1,
			PathMetric: addMetric(ri.PathMetric, an.Metric),
		})
	}
	return out
}

// addMetric saturates at ib.Sentinel instead of wrapping past it, since
// path metrics are carried in a single byte on the wire (§4.9).
func addMetric(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum >= int(ib.Sentinel) {
		return ib.Sentinel
	}
	return uint8(sum)
}

// pqItem is one entry in the tentative-distance priority queue.
type pqItem struct {
	id   ib.PeerID
	dist uint8
}

// priorityQueue is a container/heap min-heap over pqItem.dist, replacing
// the teacher's O(n) linear find-min-metric scan with Go's standard binary
// heap (same algorithm, different data structure for the "find the
// smallest tentative node" step).
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
