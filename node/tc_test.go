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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshnet/olsr2/ib"
	rfc "github.com/meshnet/olsr2/rfc5444"
)

func tcFrom(originator []byte, seq uint16, hopCount, hopLimit uint8, addrs ...rfc.AddressEntry) *rfc.Message {
	msg := &rfc.Message{
		Type:        rfc.MsgTC,
		AddrLen:     uint8(len(originator)),
		Originator:  originator,
		HasHopLimit: true,
		HopLimit:    hopLimit,
		HasHopCount: true,
		HopCount:    hopCount,
		HasSeqNum:   true,
		SeqNum:      seq,
		Addrs:       addrs,
	}
	msg.TLVs.Add(rfc.TLVValidityTime, 0, []byte{15})
	msg.TLVs.Add(rfc.TLVIntervalTime, 0, []byte{5})
	msg.TLVs.Add(rfc.TLVMPRWilling, 0, []byte{3})
	return msg
}

func TestTCSelectorIDsOnlyIncludesFromBitNeighbors(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	selID, _, err := n.base.GetOrCreateID(addrN(2))
	require.NoError(t, err)
	sel, err := n.base.RegisterNeighbor(selID)
	require.NoError(t, err)
	sel.FloodingMPRStatus = rfc.MPRFrom

	nonID, _, err := n.base.GetOrCreateID(addrN(3))
	require.NoError(t, err)
	_, err = n.base.RegisterNeighbor(nonID)
	require.NoError(t, err)

	ids := n.tcSelectorIDs()
	require.Equal(t, []ib.PeerID{selID}, ids)
}

func TestOnTCDropsAtHopLimit(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	msg := tcFrom(addrN(9), 1, DefaultHopLimit-1, DefaultHopLimit)
	forward, err := n.OnTC(msg, 0, addrN(2))
	require.NoError(t, err)
	require.False(t, forward, "tc already at hop limit must not forward")
	require.Equal(t, uint8(DefaultHopLimit), msg.HopCount)
}

func TestOnTCForwardsOnlyWhenPrevHopIsFloodingSelector(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	relayID, _, err := n.base.GetOrCreateID(addrN(2))
	require.NoError(t, err)
	relay, err := n.base.RegisterNeighbor(relayID)
	require.NoError(t, err)
	relay.FloodingMPRStatus = rfc.MPRFrom

	msg := tcFrom(addrN(9), 1, 0, DefaultHopLimit)
	forward, err := n.OnTC(msg, 0, addrN(2))
	require.NoError(t, err)
	require.True(t, forward)
	require.Equal(t, uint8(1), msg.HopCount)

	other, err := New(testConfig(), addrN(1))
	require.NoError(t, err)
	otherID, _, err := other.base.GetOrCreateID(addrN(3))
	require.NoError(t, err)
	_, err = other.base.RegisterNeighbor(otherID)
	require.NoError(t, err)

	msg2 := tcFrom(addrN(9), 2, 0, DefaultHopLimit)
	forward2, err := other.OnTC(msg2, 0, addrN(3))
	require.NoError(t, err)
	require.False(t, forward2, "neighbor that did not select us as flooding MPR must not get its tc relayed")
}

func TestOnTCIgnoresSelfOriginated(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	forward, err := n.OnTC(tcFrom(addrN(1), 1, 0, DefaultHopLimit), 0, addrN(2))
	require.NoError(t, err)
	require.False(t, forward)
}

func TestOnTCRegistersRemoteFromNonNeighborOriginator(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	selector := rfc.AddressEntry{Addr: addrN(5)}
	selector.TLVs.Add(rfc.TLVLinkMetric, 0, []byte{7, 7})

	msg := tcFrom(addrN(9), 1, 0, DefaultHopLimit, selector)
	_, err = n.OnTC(msg, 0, addrN(2))
	require.NoError(t, err)

	originID, _, err := n.base.GetOrCreateID(addrN(9))
	require.NoError(t, err)
	require.Equal(t, ib.TagRemote, n.base.Tag(originID))
	r := n.base.Remote(originID)
	require.Len(t, r.LinkInfo, 1)
	require.Equal(t, uint8(7), r.LinkInfo[0].Metric)
}

func TestBuildTCIncludesOnlySelectors(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	selID, _, err := n.base.GetOrCreateID(addrN(2))
	require.NoError(t, err)
	sel, err := n.base.RegisterNeighbor(selID)
	require.NoError(t, err)
	sel.FloodingMPRStatus = rfc.MPRFrom

	nonID, _, err := n.base.GetOrCreateID(addrN(3))
	require.NoError(t, err)
	_, err = n.base.RegisterNeighbor(nonID)
	require.NoError(t, err)

	frames, err := n.emitTC(0)
	require.NoError(t, err)
	pkt, err := decodeFirstPacket(frames)
	require.NoError(t, err)
	require.Len(t, pkt.Messages, 1)
	msg := pkt.Messages[0]
	require.Equal(t, rfc.MsgTC, msg.Type)
	require.Len(t, msg.Addrs, 1)
	require.Equal(t, addrN(2), msg.Addrs[0].Addr)
}
