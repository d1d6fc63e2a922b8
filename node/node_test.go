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

	"github.com/meshnet/olsr2/config"
)

func testConfig() *config.Config {
	c := config.DefaultConfig()
	c.HelloInterval.Seconds = 1
	c.HelloValidity.Seconds = 3
	c.TCInterval.Seconds = 1
	c.TCValidity.Seconds = 3
	c.FrameSize = 200
	return c
}

func addrN(n byte) []byte { return []byte{n, n, n, n, n, n} }

func TestNewRejectsConfigWithoutFloodingDomain(t *testing.T) {
	c := testConfig()
	c.Domains = []config.DomainConfig{{ExtType: 0, Name: "routing-only"}}
	_, err := New(c, addrN(1))
	require.Error(t, err)
}

func TestOnTickEmitsHelloOnInterval(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	frames := n.OnTick(1)
	require.NotEmpty(t, frames)

	pkt, err := decodeFirstPacket(frames)
	require.NoError(t, err)
	require.Len(t, pkt.Messages, 1)
	require.Equal(t, uint8(1), pkt.Messages[0].Type) // MsgHello
}

func TestResetClearsStateAndSequenceCounters(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	require.NoError(t, n.OnHello(helloFrom(addrN(2), 1), 0))
	require.NotEmpty(t, n.base.NeighborIDs())
	n.OnTick(1)
	require.NotZero(t, n.helloSeq)

	n.Reset()

	require.Empty(t, n.base.NeighborIDs())
	require.Zero(t, n.helloSeq)
	require.Zero(t, n.tcSeq)
	require.Zero(t, n.tick)
	require.Nil(t, n.lastResults)

	// the routing core must be fully usable again after a reset, starting
	// a fresh restart-marker sequence from SeqNum == 0.
	frames := n.OnTick(1)
	require.NotEmpty(t, frames)
	pkt, err := decodeFirstPacket(frames)
	require.NoError(t, err)
	require.True(t, pkt.Messages[0].HasSeqNum)
	require.Equal(t, uint16(0), pkt.Messages[0].SeqNum)
}

func TestOnTickSkipsTCWithoutSelectors(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)

	frames := n.OnTick(1)
	for _, raw := range frames {
		pkt, err := decodeFirstPacket([][]byte{raw})
		require.NoError(t, err)
		for _, m := range pkt.Messages {
			require.NotEqual(t, uint8(2), m.Type, "no TC should be emitted with zero selectors")
		}
	}
}

func TestIsRoutingMPRReflectsFromBit(t *testing.T) {
	n, err := New(testConfig(), addrN(1))
	require.NoError(t, err)
	require.False(t, n.isRoutingMPR())

	id, _, err := n.base.GetOrCreateID(addrN(2))
	require.NoError(t, err)
	nb, err := n.base.RegisterNeighbor(id)
	require.NoError(t, err)
	nb.FloodingMPRStatus = 2 // MPRFrom

	require.True(t, n.isRoutingMPR())
}
