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

package segment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMTU = 64

func TestSingleFrameDeliveryS2(t *testing.T) {
	// an 80-byte packet fits in one frame at a 230-byte link MTU.
	const mtu = 230
	s := NewSegmenter(mtu)
	packet := make([]byte, 80)
	for i := range packet {
		packet[i] = byte(i)
	}
	frames, err := s.Split(packet)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f, err := DecodeFrame(frames[0])
	require.NoError(t, err)
	require.Equal(t, Single, f.State)
	require.Equal(t, uint16(0), f.SeqNum)

	r := NewReassembler(mtu)
	sender := []byte{0x02, 0, 0, 0, 0, 0x01}

	got, err := r.OnFrame(sender, frames[0])
	require.NoError(t, err)
	require.Equal(t, packet, got)
}

func TestSingleFrameIsolated(t *testing.T) {
	s := NewSegmenter(testMTU)
	packet := []byte("hello mesh")
	frames, err := s.Split(packet)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f, err := DecodeFrame(frames[0])
	require.NoError(t, err)
	require.Equal(t, Single, f.State)
	require.Equal(t, uint16(0), f.SeqNum)

	r := NewReassembler(testMTU)
	got, err := r.OnFrame([]byte{1}, frames[0])
	require.NoError(t, err)
	require.Equal(t, packet, got)
}

func TestTwoFrameDeliveryS3(t *testing.T) {
	s := NewSegmenter(testMTU)
	packet := make([]byte, 2*testMTU)
	for i := range packet {
		packet[i] = byte(7 * i)
	}
	frames, err := s.Split(packet)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	f0, _ := DecodeFrame(frames[0])
	f1, _ := DecodeFrame(frames[1])
	require.Equal(t, Start, f0.State)
	require.Equal(t, End, f1.State)
	require.Equal(t, uint16(0), f0.SeqNum)
	require.Equal(t, uint16(1), f1.SeqNum)

	r := NewReassembler(testMTU)
	sender := []byte{0xAA}
	_, err = r.OnFrame(sender, frames[0])
	require.NoError(t, err)
	got, err := r.OnFrame(sender, frames[1])
	require.NoError(t, err)
	require.Equal(t, packet, got)
}

func TestGapDropsPacketS4(t *testing.T) {
	s := NewSegmenter(testMTU)
	packet := make([]byte, 3*testMTU)
	frames, err := s.Split(packet)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	r := NewReassembler(testMTU)
	sender := []byte{0xBB}

	_, err = r.OnFrame(sender, frames[0]) // START seq=0
	require.NoError(t, err)
	// MORE seq=1 is lost; END seq=2 arrives directly.
	got, err := r.OnFrame(sender, frames[2])
	require.ErrorIs(t, err, ErrGap)
	require.Nil(t, got)

	// receiver must be ready for the next START without restart
	frames2, err := s.Split([]byte("next packet"))
	require.NoError(t, err)
	got, err = r.OnFrame(sender, frames2[0])
	require.NoError(t, err)
	require.Equal(t, []byte("next packet"), got)
}

func TestStartMidReassemblyDropsOldPacket(t *testing.T) {
	s := NewSegmenter(testMTU)
	packet1 := make([]byte, 3*testMTU)
	frames1, err := s.Split(packet1)
	require.NoError(t, err)

	r := NewReassembler(testMTU)
	sender := []byte{0xCC}
	_, err = r.OnFrame(sender, frames1[0])
	require.NoError(t, err)

	// a fresh two-frame packet starts before packet1 finished.
	packet2 := make([]byte, 2*testMTU)
	frames2, err := s.Split(packet2)
	require.NoError(t, err)
	got, err := r.OnFrame(sender, frames2[0])
	require.NoError(t, err)
	require.Nil(t, got)

	// packet1's stray END must not complete anything (seq no longer matches).
	got, err = r.OnFrame(sender, frames1[2])
	require.Error(t, err)
	require.Nil(t, got)
}

// TestCRC16KnownVectors pins crc16's seed to the reference's
// esp_crc16_le(UINT16_MAX, ...) convention (§6): zero-seeding would make
// these differ.
func TestCRC16KnownVectors(t *testing.T) {
	require.Equal(t, uint16(0xffff), crc16(nil))
	require.Equal(t, uint16(0x5749), crc16([]byte("abc")))
	require.Equal(t, uint16(0x4b37), crc16([]byte("123456789")))
}

func TestCRCFailureDropsFrame(t *testing.T) {
	s := NewSegmenter(testMTU)
	frames, err := s.Split([]byte("abc"))
	require.NoError(t, err)
	corrupt := append([]byte(nil), frames[0]...)
	corrupt[len(corrupt)-1] ^= 0xFF

	r := NewReassembler(testMTU)
	got, err := r.OnFrame([]byte{1}, corrupt)
	require.ErrorIs(t, err, ErrCRCFail)
	require.Nil(t, got)
}

func TestLengthMismatchDropsFrame(t *testing.T) {
	s := NewSegmenter(testMTU)
	frames, err := s.Split([]byte("abc"))
	require.NoError(t, err)
	truncated := frames[0][:len(frames[0])-1]

	r := NewReassembler(testMTU)
	_, err = r.OnFrame([]byte{1}, truncated)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestTooManySegmentsRejected(t *testing.T) {
	s := NewSegmenter(8)
	packet := make([]byte, 8*16) // needs 16 frames at mtu 8, over MaxSegments
	_, err := s.Split(packet)
	require.ErrorIs(t, err, ErrTooManySegments)
}

func TestSegmenterRoundTripRandomised(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := NewReassembler(testMTU)
	for trial := 0; trial < 100; trial++ {
		n := rng.Intn(MaxSegments*testMTU-1) + 1
		packet := make([]byte, n)
		rng.Read(packet)

		s := NewSegmenter(testMTU)
		frames, err := s.Split(packet)
		require.NoError(t, err)

		sender := []byte{byte(trial)}
		var got []byte
		for _, f := range frames {
			got, err = r.OnFrame(sender, f)
			require.NoError(t, err)
		}
		require.Equal(t, packet, got, "trial %d", trial)
	}
}
