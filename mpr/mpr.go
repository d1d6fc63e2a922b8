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

// Package mpr computes the flooding and routing multi-point-relay sets
// per domain, using the greedy algorithm of §4.6.
package mpr

import (
	"sort"

	"github.com/meshnet/olsr2/ib"
)

// WillingnessAlways is the willingness value that forces a symmetric
// neighbor into every domain's MPR set, whether or not it covers any
// two-hop peer (§4.6 step 2).
const WillingnessAlways uint8 = 7

// WillingnessNever is the willingness value that excludes a neighbor from
// ever being selected.
const WillingnessNever uint8 = 0

// Select runs the greedy MPR algorithm for one domain over the current
// information base and returns the chosen MPR set as a set of neighbor
// peer-ids. symmetricOnly two-hop coverage is read from each symmetric
// neighbor's link-info entries tagged with this domain and marked
// Symmetric (§4.6).
func Select(base *ib.IB, domain uint8) map[ib.PeerID]bool {
	var candidates []*candidate
	uncovered := map[ib.PeerID]bool{}
	for _, id := range base.TwoHopIDs() {
		uncovered[id] = true
	}

	for _, nid := range base.NeighborIDs() {
		n := base.Neighbor(nid)
		if n == nil || n.LinkStatus != ib.LinkSymmetric {
			continue
		}
		c := &candidate{id: nid, willingness: n.Willingness, metric: n.OutMetric(domain), covers: map[ib.PeerID]bool{}}
		for _, li := range n.LinkInfo {
			if li.Domain == domain && li.Symmetric && uncovered[li.PeerID] {
				c.covers[li.PeerID] = true
			}
		}
		candidates = append(candidates, c)
	}

	selected := map[ib.PeerID]bool{}

	// Step 2: force-include willingness-7 neighbors and remove what they
	// cover from the uncovered set.
	for _, c := range candidates {
		if c.willingness == WillingnessAlways {
			selected[c.id] = true
			for p := range c.covers {
				delete(uncovered, p)
			}
		}
	}

	// Step 3: greedily pick the neighbor covering the most still-
	// uncovered peers, tie-broken by (a) higher willingness, (b) lower
	// metric, (c) stable id ordering.
	for len(uncovered) > 0 {
		var best *candidate
		bestGain := -1
		for _, c := range candidates {
			if selected[c.id] || c.willingness == WillingnessNever {
				continue
			}
			gain := 0
			for p := range c.covers {
				if uncovered[p] {
					gain++
				}
			}
			if gain == 0 {
				continue
			}
			if best == nil || better(c, gain, best, bestGain) {
				best = c
				bestGain = gain
			}
		}
		if best == nil {
			// remaining uncovered peers are not reachable through any
			// willing symmetric neighbor; nothing more can be done.
			break
		}
		selected[best.id] = true
		for p := range best.covers {
			if uncovered[p] {
				delete(uncovered, p)
			}
		}
	}

	// Step 4: drop any non-forced pick whose covered peers are all also
	// covered by the other selected neighbors, so no relay is redundant.
	for _, c := range candidates {
		if !selected[c.id] || c.willingness == WillingnessAlways {
			continue
		}
		delete(selected, c.id)
		for p := range c.covers {
			covered := false
			for _, o := range candidates {
				covered = covered || (selected[o.id] && o.covers[p])
			}
			if !covered {
				selected[c.id] = true
				break
			}
		}
	}

	return selected
}

// candidate is a symmetric neighbor being considered for the MPR set,
// along with the set of still-uncovered two-hop peers it reaches.
type candidate struct {
	id          ib.PeerID
	willingness uint8
	// metric is this neighbor's outgoing metric, used as a tie-break
	// (lower is better).
	metric uint8
	covers map[ib.PeerID]bool
}

// better reports whether candidate a (covering aGain peers) should be
// preferred over the current best b (covering bGain), per §4.6 step 3's
// tie-break order.
func better(a *candidate, aGain int, b *candidate, bGain int) bool {
	if aGain != bGain {
		return aGain > bGain
	}
	if a.willingness != b.willingness {
		return a.willingness > b.willingness
	}
	if a.metric != b.metric {
		return a.metric < b.metric
	}
	return a.id < b.id
}

// sortedIDs is a small helper used by callers (e.g. cmd/olsr2ctl) that
// want deterministic MPR-set display order.
func sortedIDs(set map[ib.PeerID]bool) []ib.PeerID {
	out := make([]ib.PeerID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedIDs exports sortedIDs for callers outside this package.
func SortedIDs(set map[ib.PeerID]bool) []ib.PeerID { return sortedIDs(set) }
