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

package mpr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshnet/olsr2/ib"
)

const testDomain uint8 = 0

func addrN(n byte) []byte { return []byte{n, n, n, n, n, n} }

// setUpNeighbor registers a symmetric neighbor with the given willingness
// and link-info coverage over a set of two-hop peer ids.
func setUpNeighbor(t *testing.T, base *ib.IB, addr byte, willingness uint8, covers ...ib.PeerID) ib.PeerID {
	t.Helper()
	id, _, err := base.GetOrCreateID(addrN(addr))
	require.NoError(t, err)
	n, err := base.RegisterNeighbor(id)
	require.NoError(t, err)
	n.LinkStatus = ib.LinkSymmetric
	n.Willingness = willingness
	n.ValidUntilTick = 1000
	for _, p := range covers {
		n.LinkInfo = append(n.LinkInfo, ib.LinkInfoEntry{PeerID: p, Domain: testDomain, Symmetric: true})
	}
	return id
}

func setUpTwoHop(t *testing.T, base *ib.IB, addr byte) ib.PeerID {
	t.Helper()
	id, _, err := base.GetOrCreateID(addrN(addr))
	require.NoError(t, err)
	th, err := base.RegisterTwoHop(id)
	require.NoError(t, err)
	th.ValidUntilTick = 1000
	return id
}

// TestScenarioS5 matches spec scenario S5: neighbors A and B (willingness 3,
// not ALWAYS) symmetric; two-hop C reachable only via A, D only via B, E via
// both. The greedy algorithm must select exactly {A, B}.
func TestScenarioS5(t *testing.T) {
	base := ib.New(16)
	c := setUpTwoHop(t, base, 10)
	d := setUpTwoHop(t, base, 11)
	e := setUpTwoHop(t, base, 12)

	a := setUpNeighbor(t, base, 1, 3, c, e)
	b := setUpNeighbor(t, base, 2, 3, d, e)

	got := Select(base, testDomain)
	require.Equal(t, map[ib.PeerID]bool{a: true, b: true}, got)
}

// TestWillingnessAlwaysForced checks that a willingness-7 neighbor is always
// in the MPR set even when it covers nothing no one else already covers.
func TestWillingnessAlwaysForced(t *testing.T) {
	base := ib.New(16)
	x := setUpTwoHop(t, base, 20)
	always := setUpNeighbor(t, base, 1, WillingnessAlways, x)
	// other covers the same peer, which ALWAYS already covers, so it is
	// not selected.
	other := setUpNeighbor(t, base, 2, 3, x)

	got := Select(base, testDomain)
	require.True(t, got[always])
	require.False(t, got[other])
}

// TestWillingnessNeverExcluded checks a willingness-0 neighbor is never
// selected even if it is the only one covering some two-hop peer.
func TestWillingnessNeverExcluded(t *testing.T) {
	base := ib.New(16)
	onlyPath := setUpTwoHop(t, base, 30)
	never := setUpNeighbor(t, base, 1, WillingnessNever, onlyPath)

	got := Select(base, testDomain)
	require.False(t, got[never])
	require.Empty(t, got)
}

// TestCoverageUnreachableTwoHopSkipped asserts the algorithm terminates and
// does not loop forever when some two-hop peer has no willing neighbor.
func TestCoverageUnreachableTwoHopSkipped(t *testing.T) {
	base := ib.New(16)
	setUpTwoHop(t, base, 40) // unreachable: no neighbor covers it
	reachable := setUpTwoHop(t, base, 41)
	n := setUpNeighbor(t, base, 1, 3, reachable)

	got := Select(base, testDomain)
	require.Equal(t, map[ib.PeerID]bool{n: true}, got)
}

// TestMPRCoverageProperty is testable property 6: every two-hop peer
// reachable through at least one willing symmetric neighbor is covered by
// the selected MPR set.
func TestMPRCoverageProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		base := ib.New(64)
		twoHops := make([]ib.PeerID, 0, 10)
		for i := 0; i < 10; i++ {
			twoHops = append(twoHops, setUpTwoHop(t, base, byte(100+i)))
		}

		type nb struct {
			id     ib.PeerID
			covers []ib.PeerID
		}
		var neighbors []nb
		reachable := map[ib.PeerID]bool{}
		for i := 0; i < 6; i++ {
			var covers []ib.PeerID
			for _, p := range twoHops {
				if rng.Intn(2) == 0 {
					covers = append(covers, p)
					reachable[p] = true
				}
			}
			willingness := uint8(rng.Intn(4) + 1) // never force ALWAYS here
			id := setUpNeighbor(t, base, byte(i+1), willingness, covers...)
			neighbors = append(neighbors, nb{id: id, covers: covers})
		}

		selected := Select(base, testDomain)

		covered := map[ib.PeerID]bool{}
		for _, n := range neighbors {
			if !selected[n.id] {
				continue
			}
			for _, p := range n.covers {
				covered[p] = true
			}
		}
		for _, p := range twoHops {
			if reachable[p] {
				require.True(t, covered[p], "trial %d: peer %v reachable but not covered by selected MPR set", trial, p)
			}
		}
	}
}

// TestMPRMinimalityProperty is testable property 7: removing any single
// non-forced selected neighbor from the MPR set uncovers at least one
// two-hop peer that no remaining selected neighbor covers (no redundant
// relay the greedy algorithm could have dropped).
func TestMPRMinimalityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for trial := 0; trial < 100; trial++ {
		base := ib.New(64)
		twoHops := make([]ib.PeerID, 0, 8)
		for i := 0; i < 8; i++ {
			twoHops = append(twoHops, setUpTwoHop(t, base, byte(150+i)))
		}

		type nb struct {
			id     ib.PeerID
			covers []ib.PeerID
		}
		var neighbors []nb
		for i := 0; i < 5; i++ {
			var covers []ib.PeerID
			for _, p := range twoHops {
				if rng.Intn(2) == 0 {
					covers = append(covers, p)
				}
			}
			id := setUpNeighbor(t, base, byte(i+1), 3, covers...)
			neighbors = append(neighbors, nb{id: id, covers: covers})
		}

		selected := Select(base, testDomain)
		if len(selected) == 0 {
			continue
		}

		coverOf := map[ib.PeerID][]ib.PeerID{}
		for _, n := range neighbors {
			if selected[n.id] {
				coverOf[n.id] = n.covers
			}
		}

		for dropped := range selected {
			coveredWithoutDropped := map[ib.PeerID]bool{}
			for id, covers := range coverOf {
				if id == dropped {
					continue
				}
				for _, p := range covers {
					coveredWithoutDropped[p] = true
				}
			}
			missingSomething := false
			for _, p := range coverOf[dropped] {
				if !coveredWithoutDropped[p] {
					missingSomething = true
					break
				}
			}
			require.True(t, missingSomething, "trial %d: neighbor %v is redundant in the selected MPR set", trial, dropped)
		}
	}
}

// TestDeterministicTieBreak confirms Select is deterministic across repeated
// calls over the same information base (needed for stable flooding/routing
// MPR agreement between runs).
func TestDeterministicTieBreak(t *testing.T) {
	base := ib.New(16)
	p := setUpTwoHop(t, base, 60)
	setUpNeighbor(t, base, 1, 3, p)
	setUpNeighbor(t, base, 2, 3, p)

	first := Select(base, testDomain)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Select(base, testDomain))
	}
}

func TestSortedIDs(t *testing.T) {
	set := map[ib.PeerID]bool{5: true, 1: true, 3: true}
	require.Equal(t, []ib.PeerID{1, 3, 5}, SortedIDs(set))
}
