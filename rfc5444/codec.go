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

package rfc5444

import (
	"fmt"

	"github.com/meshnet/olsr2/bitstream"
)

// Message is one decoded or to-be-encoded HELLO/TC message (§4.2 wire
// table). Optional fields are nil/zero when their presence flag is unset.
type Message struct {
	Type        uint8
	AddrLen     uint8
	Originator  []byte // nil if absent
	HasHopLimit bool
	HopLimit    uint8
	HasHopCount bool
	HopCount    uint8
	HasSeqNum   bool
	SeqNum      uint16
	TLVs        TLVBlock
	Addrs       []AddressEntry
}

// Packet is a decoded or to-be-encoded pkt-header + message* sequence.
type Packet struct {
	Version   uint8
	HasSeqNum bool
	SeqNum    uint16
	Messages  []*Message
}

// mandatoryMsgTLVs is the per-session whitelist of mandatory msg-tlv
// types for each message type, per §4.5's HELLO/TC contents.
var mandatoryMsgTLVs = map[uint8][]uint8{
	MsgHello: {TLVValidityTime, TLVIntervalTime, TLVMPRWilling},
	MsgTC:    {TLVValidityTime, TLVIntervalTime, TLVMPRWilling},
}

// Encode serialises a packet to wire bytes.
func Encode(p *Packet) ([]byte, error) {
	hdr := make([]byte, 1)
	flags := uint8(0)
	if p.HasSeqNum {
		flags |= pktFlagHasSeqNum
	}
	bw := bitstream.New(hdr)
	if err := bw.Write(uint64(p.Version), 4); err != nil {
		return nil, err
	}
	if err := bw.Write(uint64(flags), 4); err != nil {
		return nil, err
	}
	out := hdr
	if p.HasSeqNum {
		seq := make([]byte, 2)
		putU16(seq, 0, p.SeqNum)
		out = append(out, seq...)
	}

	for _, m := range p.Messages {
		mb, err := encodeMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, mb...)
	}
	return out, nil
}

func encodeMessage(m *Message) ([]byte, error) {
	flags := uint8(0)
	if m.Originator != nil {
		flags |= msgFlagHasOriginator
	}
	if m.HasHopLimit {
		flags |= msgFlagHasHopLimit
	}
	if m.HasHopCount {
		flags |= msgFlagHasHopCount
	}
	if m.HasSeqNum {
		flags |= msgFlagHasSeqNum
	}

	body := []byte{}
	if m.Originator != nil {
		if len(m.Originator) != int(m.AddrLen) {
			return nil, fmt.Errorf("%w: originator length %d != addrLen %d", ErrMalformed, len(m.Originator), m.AddrLen)
		}
		body = append(body, m.Originator...)
	}
	if m.HasHopLimit {
		body = append(body, m.HopLimit)
	}
	if m.HasHopCount {
		body = append(body, m.HopCount)
	}
	if m.HasSeqNum {
		seq := make([]byte, 2)
		putU16(seq, 0, m.SeqNum)
		body = append(body, seq...)
	}
	body = append(body, encodeTLVBlock(m.TLVs)...)

	for len(m.Addrs) > 0 {
		// one address block per call; the spec allows multiple
		// (addr-block, addr-tlv-block) pairs, but this codec always
		// emits exactly one covering every address, since nothing in
		// this spec requires splitting them across blocks.
		ab, err := encodeAddressBlock(int(m.AddrLen), m.Addrs)
		if err != nil {
			return nil, err
		}
		body = append(body, ab...)
		break
	}

	head := []byte{m.Type, flags, m.AddrLen, 0, 0}
	putU16(head, 3, uint16(len(head)+len(body)))
	return append(head, body...), nil
}

// Decode parses buf into a packet using the default per-message mandatory
// TLV whitelist (§4.5 HELLO/TC contents).
func Decode(buf []byte) (*Packet, error) {
	return DecodeWithWhitelist(buf, mandatoryMsgTLVs)
}

// DecodeWithWhitelist is Decode parameterised by a caller-supplied
// mandatory-TLV whitelist, keyed by message type.
func DecodeWithWhitelist(buf []byte, whitelist map[uint8][]uint8) (*Packet, error) {
	if len(buf) < 1 {
		return nil, ErrIncomplete
	}
	br := bitstream.NewReader(buf[:1])
	ver, err := br.Read(4)
	if err != nil {
		return nil, err
	}
	flagsV, err := br.Read(4)
	if err != nil {
		return nil, err
	}
	flags := uint8(flagsV)
	pos := 1

	p := &Packet{Version: uint8(ver)}
	if flags&pktFlagHasSeqNum != 0 {
		if pos+2 > len(buf) {
			return nil, ErrIncomplete
		}
		p.HasSeqNum = true
		p.SeqNum = getU16(buf, pos)
		pos += 2
	}

	for pos < len(buf) {
		m, consumed, err := decodeMessage(buf[pos:], whitelist)
		if err != nil {
			return nil, err
		}
		p.Messages = append(p.Messages, m)
		pos += consumed
	}
	return p, nil
}

func decodeMessage(buf []byte, whitelist map[uint8][]uint8) (*Message, int, error) {
	if len(buf) < 5 {
		return nil, 0, ErrIncomplete
	}
	m := &Message{Type: buf[0], AddrLen: buf[2]}
	flags := buf[1]
	msgSize := int(getU16(buf, 3))
	if msgSize < 5 {
		return nil, 0, fmt.Errorf("%w: msg-size %d too small", ErrMalformed, msgSize)
	}
	if msgSize > len(buf) {
		return nil, 0, ErrIncomplete
	}
	body := buf[5:msgSize]
	pos := 0

	if flags&msgFlagHasOriginator != 0 {
		if pos+int(m.AddrLen) > len(body) {
			return nil, 0, ErrTerminated
		}
		m.Originator = append([]byte(nil), body[pos:pos+int(m.AddrLen)]...)
		pos += int(m.AddrLen)
	}
	if flags&msgFlagHasHopLimit != 0 {
		if pos+1 > len(body) {
			return nil, 0, ErrTerminated
		}
		m.HasHopLimit = true
		m.HopLimit = body[pos]
		pos++
	}
	if flags&msgFlagHasHopCount != 0 {
		if pos+1 > len(body) {
			return nil, 0, ErrTerminated
		}
		m.HasHopCount = true
		m.HopCount = body[pos]
		pos++
	}
	if flags&msgFlagHasSeqNum != 0 {
		if pos+2 > len(body) {
			return nil, 0, ErrTerminated
		}
		m.HasSeqNum = true
		m.SeqNum = getU16(body, pos)
		pos += 2
	}

	tlvs, consumed, err := decodeTLVBlock(body[pos:])
	if err != nil {
		return nil, 0, err
	}
	m.TLVs = tlvs
	pos += consumed

	if want, ok := whitelist[m.Type]; ok {
		if err := m.TLVs.HasMandatory(want); err != nil {
			return nil, 0, err
		}
	}

	if pos < len(body) {
		entries, consumed, err := decodeAddressBlock(body[pos:], int(m.AddrLen))
		if err != nil {
			return nil, 0, err
		}
		m.Addrs = entries
		pos += consumed
	}

	return m, msgSize, nil
}
