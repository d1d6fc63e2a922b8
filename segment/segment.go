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

// Package segment splits oversized rfc5444 packets into link-MTU-sized
// frames and reassembles them on receive, per §4.3/§6. There is exactly
// one reassembly slot per sender, keyed by its opaque link address; any
// gap discards the in-flight packet rather than attempting recovery.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// State is the 4-value frame tag (§4.3).
type State uint8

// Frame states.
const (
	Start State = iota
	More
	End
	Single
)

func (s State) String() string {
	switch s {
	case Start:
		return "START"
	case More:
		return "MORE"
	case End:
		return "END"
	case Single:
		return "SINGLE"
	default:
		return "UNKNOWN"
	}
}

// HeaderSize is the fixed frame header length (§6 wire layout).
const HeaderSize = 6

// MaxSegments is the largest number of frames one packet may be split
// into (§4.3 sender rule: 1 <= n <= 15).
const MaxSegments = 15

// Errors returned by Split/OnFrame; all are non-fatal to the caller's
// driver loop (§7 error handling design).
var (
	ErrTooManySegments = errors.New("segment: packet needs more than 15 frames")
	ErrPayloadTooLarge = errors.New("segment: frame would exceed 255 bytes")
	ErrCRCFail         = errors.New("segment: crc mismatch")
	ErrLengthMismatch  = errors.New("segment: total_len field does not match frame length")
	ErrTruncated       = errors.New("segment: frame shorter than header")
	ErrGap             = errors.New("segment: reassembly gap, packet discarded")
	ErrReassemblyFull  = errors.New("segment: reassembly buffer exceeds packet_max")
)

// Frame is one decoded or to-be-encoded link frame.
type Frame struct {
	SeqNum  uint16
	State   State
	CRC     uint16
	Payload []byte
}

// EncodeFrame serialises f, computing the CRC with the CRC field zeroed
// as required by §6.
func EncodeFrame(f *Frame) ([]byte, error) {
	total := HeaderSize + len(f.Payload)
	if total > 0xff {
		return nil, fmt.Errorf("%w: total length %d", ErrPayloadTooLarge, total)
	}
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], f.SeqNum)
	buf[2] = byte(f.State)
	buf[5] = byte(total)
	copy(buf[HeaderSize:], f.Payload)
	crc := crc16(buf)
	binary.BigEndian.PutUint16(buf[3:5], crc)
	return buf, nil
}

// DecodeFrame parses and CRC-validates a single frame.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) < HeaderSize {
		return nil, ErrTruncated
	}
	totalLen := int(buf[5])
	if totalLen != len(buf) {
		return nil, ErrLengthMismatch
	}
	gotCRC := binary.BigEndian.Uint16(buf[3:5])
	check := append([]byte(nil), buf...)
	check[3], check[4] = 0, 0
	if wantCRC := crc16(check); wantCRC != gotCRC {
		return nil, ErrCRCFail
	}
	return &Frame{
		SeqNum:  binary.BigEndian.Uint16(buf[0:2]),
		State:   State(buf[2]),
		CRC:     gotCRC,
		Payload: append([]byte(nil), buf[HeaderSize:]...),
	}, nil
}

// Segmenter is the sender-side half of §4.3: split a packet of P bytes
// into ceil(P/F) frames, assigning a strictly increasing per-sender
// sequence number.
type Segmenter struct {
	frameSize int
	seq       uint16
}

// NewSegmenter creates a segmenter for the given link MTU payload size F.
func NewSegmenter(frameSize int) *Segmenter {
	return &Segmenter{frameSize: frameSize}
}

// Split breaks packet into wire-ready frames.
func (s *Segmenter) Split(packet []byte) ([][]byte, error) {
	n := (len(packet) + s.frameSize - 1) / s.frameSize
	if n == 0 {
		n = 1
	}
	if n > MaxSegments {
		return nil, fmt.Errorf("%w: %d bytes needs %d frames at mtu %d", ErrTooManySegments, len(packet), n, s.frameSize)
	}

	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		var state State
		switch {
		case n == 1:
			state = Single
		case i == 0:
			state = Start
		case i == n-1:
			state = End
		default:
			state = More
		}
		start := i * s.frameSize
		end := start + s.frameSize
		if end > len(packet) {
			end = len(packet)
		}
		f := &Frame{SeqNum: s.seq, State: state, Payload: packet[start:end]}
		s.seq++
		raw, err := EncodeFrame(f)
		if err != nil {
			return nil, err
		}
		frames = append(frames, raw)
	}
	return frames, nil
}

type senderState struct {
	lastSeq uint16
	buf     []byte
}

// Reassembler is the receive-side half of §4.3: one reassembly slot per
// sender, keyed by its opaque link address.
type Reassembler struct {
	frameSize int
	packetMax int
	states    map[string]*senderState
}

// NewReassembler creates a reassembler bounding each in-flight packet at
// 16*frameSize bytes (PACKET_MAX, §4.3).
func NewReassembler(frameSize int) *Reassembler {
	return &Reassembler{
		frameSize: frameSize,
		packetMax: 16 * frameSize,
		states:    make(map[string]*senderState),
	}
}

// OnFrame processes one received raw frame from sender. It returns the
// reassembled packet once an END or SINGLE frame completes it, or nil if
// more frames are still expected. A non-nil error means the frame was
// dropped (CRC/length mismatch, gap, or overflow) — always non-fatal to
// the caller, per §7.
func (r *Reassembler) OnFrame(sender []byte, raw []byte) ([]byte, error) {
	f, err := DecodeFrame(raw)
	if err != nil {
		log.Debugf("segment: dropping frame from %x: %v", sender, err)
		return nil, err
	}

	key := string(sender)
	switch f.State {
	case Single:
		return f.Payload, nil

	case Start:
		if _, active := r.states[key]; active {
			log.Warnf("segment: START from %x mid-reassembly, dropping in-flight packet", sender)
		}
		if len(f.Payload) > r.packetMax {
			delete(r.states, key)
			return nil, ErrReassemblyFull
		}
		r.states[key] = &senderState{
			lastSeq: f.SeqNum,
			buf:     append([]byte(nil), f.Payload...),
		}
		return nil, nil

	case More, End:
		st, ok := r.states[key]
		if !ok || f.SeqNum != st.lastSeq+1 {
			delete(r.states, key)
			log.Warnf("segment: reassembly gap from %x (have %v, got seq %d), discarding", sender, ok, f.SeqNum)
			return nil, ErrGap
		}
		if len(st.buf)+len(f.Payload) > r.packetMax {
			delete(r.states, key)
			return nil, ErrReassemblyFull
		}
		st.buf = append(st.buf, f.Payload...)
		st.lastSeq = f.SeqNum
		if f.State == End {
			delete(r.states, key)
			return st.buf, nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("segment: unknown frame state %d", f.State)
	}
}

// Reset drops all in-flight reassembly state, e.g. on driver reset().
func (r *Reassembler) Reset() {
	r.states = make(map[string]*senderState)
}
