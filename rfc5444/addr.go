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

import "fmt"

// AddressEntry is one decoded/to-be-encoded address plus the per-address
// TLVs that apply to it (LINK_STATUS, LINK_METRIC, MPR_STATUS, ...).
type AddressEntry struct {
	Addr []byte
	// PrefixLen is in bits; 0 means "full address" (len(Addr)*8 bits).
	// A non-zero, shorter value marks this entry as an attached-network
	// prefix rather than a peer address (SPEC_FULL §7).
	PrefixLen uint8
	TLVs      TLVBlock
}

func commonPrefixLen(entries []AddressEntry, addrLen int) int {
	if len(entries) == 0 {
		return 0
	}
	n := addrLen
	for i := 1; i < len(entries); i++ {
		for j := 0; j < n; j++ {
			if entries[0].Addr[j] != entries[i].Addr[j] {
				if j < n {
					n = j
				}
				break
			}
		}
	}
	return n
}

// encodeAddressBlock serialises the address block followed by its
// addr-tlv-block, per §4.2's head/mid compression form.
func encodeAddressBlock(addrLen int, entries []AddressEntry) ([]byte, error) {
	num := len(entries)
	if num == 0 || num > 255 {
		return nil, fmt.Errorf("%w: address block size %d out of range", ErrMalformed, num)
	}
	for _, e := range entries {
		if len(e.Addr) != addrLen {
			return nil, fmt.Errorf("%w: address length %d != addrLen %d", ErrMalformed, len(e.Addr), addrLen)
		}
	}

	headLen := commonPrefixLen(entries, addrLen)
	hasPrefixLengths := false
	for _, e := range entries {
		if e.PrefixLen != 0 && int(e.PrefixLen) != addrLen*8 {
			hasPrefixLengths = true
			break
		}
	}

	out := []byte{byte(num), byte(headLen)}
	out = append(out, entries[0].Addr[:headLen]...)
	for _, e := range entries {
		out = append(out, e.Addr[headLen:]...)
	}
	blockFlags := byte(0)
	if hasPrefixLengths {
		blockFlags |= addrBlockFlagHasPrefixLengths
	}
	out = append(out, blockFlags)
	if hasPrefixLengths {
		for _, e := range entries {
			out = append(out, e.PrefixLen)
		}
	}

	tlvBlock, err := buildAddrTLVBlock(entries)
	if err != nil {
		return nil, err
	}
	out = append(out, encodeTLVBlock(tlvBlock)...)
	return out, nil
}

// buildAddrTLVBlock groups each distinct (type, ext) pair seen across any
// entry's per-address TLVs into one wire TLV whose value is the
// concatenation of each entry's (equally sized) value, in entry order.
// An entry missing a TLV that others carry contributes a zero-filled chunk.
func buildAddrTLVBlock(entries []AddressEntry) (TLVBlock, error) {
	type seen struct {
		size  int
		order int
	}
	sizes := map[tlvKey]seen{}
	var order []tlvKey
	for _, e := range entries {
		for _, t := range e.TLVs {
			k := t.key()
			if _, ok := sizes[k]; !ok {
				sizes[k] = seen{size: len(t.Value), order: len(order)}
				order = append(order, k)
			}
		}
	}

	var block TLVBlock
	for _, k := range order {
		size := sizes[k].size
		value := make([]byte, 0, size*len(entries))
		for _, e := range entries {
			t := e.TLVs.Get(k.typ, k.ext)
			if t == nil {
				value = append(value, make([]byte, size)...)
				continue
			}
			if len(t.Value) != size {
				return nil, fmt.Errorf("%w: inconsistent per-address tlv size for type %d", ErrMalformed, k.typ)
			}
			value = append(value, t.Value...)
		}
		block.Add(k.typ, k.ext, value)
	}
	return block, nil
}

// decodeAddressBlock parses an address block plus its following
// addr-tlv-block starting at buf[0]; it returns the entries and the number
// of bytes consumed.
func decodeAddressBlock(buf []byte, addrLen int) ([]AddressEntry, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	num := int(buf[0])
	headLen := int(buf[1])
	pos := 2
	if headLen > addrLen {
		return nil, 0, fmt.Errorf("%w: head length %d exceeds address length %d", ErrMalformed, headLen, addrLen)
	}
	if pos+headLen > len(buf) {
		return nil, 0, ErrIncomplete
	}
	head := buf[pos : pos+headLen]
	pos += headLen

	midLen := addrLen - headLen
	entries := make([]AddressEntry, num)
	for i := 0; i < num; i++ {
		if pos+midLen > len(buf) {
			return nil, 0, ErrIncomplete
		}
		addr := make([]byte, addrLen)
		copy(addr, head)
		copy(addr[headLen:], buf[pos:pos+midLen])
		entries[i].Addr = addr
		entries[i].PrefixLen = uint8(addrLen * 8)
		pos += midLen
	}

	if pos >= len(buf) {
		return nil, 0, ErrIncomplete
	}
	blockFlags := buf[pos]
	pos++
	if blockFlags&addrBlockFlagHasPrefixLengths != 0 {
		if pos+num > len(buf) {
			return nil, 0, ErrIncomplete
		}
		for i := 0; i < num; i++ {
			entries[i].PrefixLen = buf[pos+i]
		}
		pos += num
	}

	tlvBlock, consumed, err := decodeTLVBlock(buf[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += consumed

	for _, t := range tlvBlock {
		for cur := t; cur != nil; cur = cur.Next {
			if num == 0 {
				continue
			}
			if len(cur.Value)%num != 0 {
				return nil, 0, fmt.Errorf("%w: per-address tlv type %d length %d not divisible by %d addresses", ErrMalformed, cur.Type, len(cur.Value), num)
			}
			size := len(cur.Value) / num
			for i := 0; i < num; i++ {
				entries[i].TLVs.Add(cur.Type, cur.ExtType, cur.Value[i*size:(i+1)*size])
			}
		}
	}

	return entries, pos, nil
}
