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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func addrN(n byte) []byte { return []byte{n, n, n, n, n, n} }

func TestGetOrCreateIDReusesExisting(t *testing.T) {
	base := New(4)
	id1, created, err := base.GetOrCreateID(addrN(1))
	require.NoError(t, err)
	require.True(t, created)
	id2, created, err := base.GetOrCreateID(addrN(1))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id1, id2)
}

func TestGetOrCreateIDTableFull(t *testing.T) {
	base := New(2)
	_, _, err := base.GetOrCreateID(addrN(1))
	require.NoError(t, err)
	_, _, err = base.GetOrCreateID(addrN(2))
	require.NoError(t, err)
	_, _, err = base.GetOrCreateID(addrN(3))
	require.ErrorIs(t, err, ErrPeerTableFull)
}

func TestRegisterNeighborPreconditionSlotEmpty(t *testing.T) {
	base := New(4)
	id, _, err := base.GetOrCreateID(addrN(1))
	require.NoError(t, err)
	_, err = base.RegisterNeighbor(id)
	require.NoError(t, err)
	_, err = base.RegisterNeighbor(id)
	require.ErrorIs(t, err, ErrSlotOccupied)
}

func TestCheckValidityExpiresAndRebuildsLists(t *testing.T) {
	base := New(8)
	id1, _, _ := base.GetOrCreateID(addrN(1))
	n1, _ := base.RegisterNeighbor(id1)
	n1.ValidUntilTick = 10

	id2, _, _ := base.GetOrCreateID(addrN(2))
	n2, _ := base.RegisterNeighbor(id2)
	n2.ValidUntilTick = 100

	require.ElementsMatch(t, []PeerID{id1, id2}, base.NeighborIDs())

	base.CheckValidity(50)

	require.Equal(t, TagNone, base.Tag(id1))
	require.Equal(t, TagNeighbor, base.Tag(id2))
	require.ElementsMatch(t, []PeerID{id2}, base.NeighborIDs())
	require.Nil(t, base.Addr(id1))
}

func TestPromoteRemoteToTwoHopClampsValidUntil(t *testing.T) {
	base := New(8)
	id, _, _ := base.GetOrCreateID(addrN(3))
	r, _ := base.RegisterRemote(id)
	r.ValidUntilTick = 200

	th, err := base.PromoteRemoteToTwoHop(id, 50)
	require.NoError(t, err)
	require.Equal(t, int64(50), th.ValidUntilTick)
	require.Equal(t, TagTwoHop, base.Tag(id))
}

func TestPromoteTwoHopToNeighborRetainsValidity(t *testing.T) {
	base := New(8)
	id, _, _ := base.GetOrCreateID(addrN(4))
	th, _ := base.RegisterTwoHop(id)
	th.ValidUntilTick = 77

	n, err := base.PromoteTwoHopToNeighbor(id)
	require.NoError(t, err)
	require.Equal(t, int64(77), n.ValidUntilTick)
	require.Equal(t, TagNeighbor, base.Tag(id))
}

// TestInvariantsUnderRandomTrace is a property-style test (testable
// property 5): after any sequence of register/expire operations, tags and
// id-lists stay a disjoint partition and index 0 is never touched.
func TestInvariantsUnderRandomTrace(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	base := New(16)
	var live []PeerID

	for step := 0; step < 500; step++ {
		switch rng.Intn(4) {
		case 0:
			addr := addrN(byte(rng.Intn(64)))
			id, created, err := base.GetOrCreateID(addr)
			if err != nil {
				continue
			}
			if created {
				switch rng.Intn(3) {
				case 0:
					e, err := base.RegisterNeighbor(id)
					if err == nil {
						e.ValidUntilTick = int64(step + rng.Intn(20))
						live = append(live, id)
					}
				case 1:
					e, err := base.RegisterTwoHop(id)
					if err == nil {
						e.ValidUntilTick = int64(step + rng.Intn(20))
						live = append(live, id)
					}
				case 2:
					e, err := base.RegisterRemote(id)
					if err == nil {
						e.ValidUntilTick = int64(step + rng.Intn(20))
						live = append(live, id)
					}
				}
			}
		default:
			base.CheckValidity(int64(step))
		}

		assertInvariants(t, base)
	}
}

func assertInvariants(t *testing.T, base *IB) {
	t.Helper()
	require.Nil(t, base.Addr(0))

	seen := map[PeerID]bool{}
	for _, id := range base.NeighborIDs() {
		require.Equal(t, TagNeighbor, base.Tag(id))
		require.False(t, seen[id])
		seen[id] = true
	}
	for _, id := range base.TwoHopIDs() {
		require.Equal(t, TagTwoHop, base.Tag(id))
		require.False(t, seen[id])
		seen[id] = true
	}
	for _, id := range base.RemoteIDs() {
		require.Equal(t, TagRemote, base.Tag(id))
		require.False(t, seen[id])
		seen[id] = true
	}
	for id := 1; id <= base.PeerCount(); id++ {
		pid := PeerID(id)
		if base.Tag(pid) == TagNone {
			require.Nil(t, base.Addr(pid))
		} else {
			require.True(t, seen[pid])
		}
	}
}
