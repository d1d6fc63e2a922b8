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

package bitstream

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadScenarioS1(t *testing.T) {
	buf := make([]byte, 4)
	w := New(buf)
	require.NoError(t, w.Write(0xA, 4))
	require.NoError(t, w.Write(0xB, 4))
	require.NoError(t, w.Write(0xCD, 8))
	require.NoError(t, w.Write(0x1234, 16))
	require.Equal(t, []byte{0xAB, 0xCD, 0x12, 0x34}, buf)

	r := NewReader(buf)
	v, err := r.Read(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0xA), v)
	v, err = r.Read(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0xB), v)
	v, err = r.Read(8)
	require.NoError(t, err)
	require.Equal(t, uint64(0xCD), v)
	v, err = r.Read(16)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), v)
}

func TestRoundTripRandomised(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		var widths []int
		var values []uint64
		totalBits := 0
		for totalBits < 8*32-MaxBits {
			bits := 1 + rng.Intn(MaxBits)
			var mask uint64 = ^uint64(0)
			if bits < 64 {
				mask = (uint64(1) << uint(bits)) - 1
			}
			v := rng.Uint64() & mask
			widths = append(widths, bits)
			values = append(values, v)
			totalBits += bits
		}

		buf := make([]byte, 32)
		w := New(buf)
		for i, bits := range widths {
			require.NoError(t, w.Write(values[i], bits))
		}

		r := NewReader(buf)
		for i, bits := range widths {
			got, err := r.Read(bits)
			require.NoError(t, err)
			require.Equal(t, values[i], got, "trial %d field %d width %d", trial, i, bits)
		}
	}
}

func TestReadZeroBitsIsNoop(t *testing.T) {
	buf := []byte{0xFF}
	r := NewReader(buf)
	v, err := r.Read(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
	require.Equal(t, 0, r.BitOffset())
}

func TestReadPastEndFails(t *testing.T) {
	buf := []byte{0xFF}
	r := NewReader(buf)
	_, err := r.Read(9)
	require.ErrorIs(t, err, ErrBufferExhausted)
}

func TestWritePastEndFails(t *testing.T) {
	buf := make([]byte, 1)
	w := New(buf)
	err := w.Write(1, 9)
	require.ErrorIs(t, err, ErrBufferExhausted)
}

func TestBitWidthOutOfRange(t *testing.T) {
	buf := make([]byte, 8)
	w := New(buf)
	require.ErrorIs(t, w.Write(0, 57), ErrBitWidth)
	r := NewReader(buf)
	_, err := r.Read(57)
	require.ErrorIs(t, err, ErrBitWidth)
}

func TestPadAndMemcpy(t *testing.T) {
	buf := make([]byte, 4)
	w := New(buf)
	require.NoError(t, w.Write(0x5, 4))
	w.Pad()
	require.Equal(t, 8, w.BitOffset())
	require.NoError(t, w.WriteBytes([]byte{0xAA, 0xBB}))
	require.Equal(t, []byte{0x50, 0xAA, 0xBB, 0x00}, buf)

	r := NewReader(buf)
	_, err := r.Read(4)
	require.NoError(t, err)
	dst := make([]byte, 2)
	require.NoError(t, r.Memcpy(dst, 2))
	require.Equal(t, []byte{0xAA, 0xBB}, dst)
}

func TestMemcpyPastEndFails(t *testing.T) {
	buf := make([]byte, 2)
	r := NewReader(buf)
	dst := make([]byte, 3)
	require.ErrorIs(t, r.Memcpy(dst, 3), ErrBufferExhausted)
}
