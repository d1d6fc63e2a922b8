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

// TLV is one type-ext-flags-length-value tuple. Decode threads duplicate
// TLVs (same Type and ExtType, appearing more than once in the same block)
// onto Next of the first occurrence, preserving appearance order.
type TLV struct {
	Type    uint8
	ExtType uint8
	Value   []byte
	Next    *TLV
}

func (t *TLV) key() tlvKey { return tlvKey{t.Type, t.ExtType} }

type tlvKey struct {
	typ uint8
	ext uint8
}

// lengthRange is the [min, max] advertised by an extension for a TLV type;
// absent entries are treated as unconstrained.
type lengthRange struct{ min, max int }

// tlvLengthRanges is the per-session whitelist of legal value lengths.
// ext-type 0 here means "applies regardless of domain ext-type".
var tlvLengthRanges = map[tlvKey]lengthRange{
	{TLVValidityTime, 0}:    {1, 1},
	{TLVIntervalTime, 0}:    {1, 1},
	{TLVLinkStatus, 0}:      {1, 1},
	{TLVMPRWilling, 0}:      {1, 1},
	{TLVMPRStatus, 0}:       {2, 2},
	{TLVProtoVersion, 0}:    {1, 32},
	{TLVAttachedNetwork, 0}: {3, 19}, // prefix (1..16) + len (1) + metric (1)
}

// checkLength validates v's length against the registered range for
// (typ, ext), if any is registered.
func checkLength(typ, ext uint8, v []byte) error {
	r, ok := tlvLengthRanges[tlvKey{typ, 0}]
	if !ok {
		r, ok = tlvLengthRanges[tlvKey{typ, ext}]
	}
	if !ok {
		return nil
	}
	if len(v) < r.min || len(v) > r.max {
		return fmt.Errorf("%w: type %d ext %d length %d not in [%d,%d]", ErrIllegalTLVLength, typ, ext, len(v), r.min, r.max)
	}
	return nil
}

// TLVBlock is an ordered list of distinct (type, ext-type) TLVs; repeated
// occurrences are threaded via TLV.Next.
type TLVBlock []*TLV

// Get returns the first TLV matching (typ, ext), or nil.
func (b TLVBlock) Get(typ, ext uint8) *TLV {
	for _, t := range b {
		if t.Type == typ && t.ExtType == ext {
			return t
		}
	}
	return nil
}

// Add appends a value under (typ, ext), threading onto an existing entry's
// Next chain if one is already present (decode's "duplicate TLV" rule).
func (b *TLVBlock) Add(typ, ext uint8, value []byte) {
	if existing := b.Get(typ, ext); existing != nil {
		tail := existing
		for tail.Next != nil {
			tail = tail.Next
		}
		tail.Next = &TLV{Type: typ, ExtType: ext, Value: value}
		return
	}
	*b = append(*b, &TLV{Type: typ, ExtType: ext, Value: value})
}

// HasMandatory reports whether every type in want is present in the block,
// returning ErrMissingMandatoryTLV naming the first absent one otherwise.
func (b TLVBlock) HasMandatory(want []uint8) error {
	for _, typ := range want {
		if b.Get(typ, 0) == nil {
			return fmt.Errorf("%w: type %d", ErrMissingMandatoryTLV, typ)
		}
	}
	return nil
}

// encodeTLVBlock serialises a tlv-block: length:u16, tlv*. Duplicate chains
// are flattened back into repeated (type, ext, value) entries in order.
func encodeTLVBlock(tlvs TLVBlock) []byte {
	var body []byte
	for _, t := range tlvs {
		for cur := t; cur != nil; cur = cur.Next {
			body = append(body, encodeOneTLV(cur)...)
		}
	}
	out := make([]byte, 2, 2+len(body))
	putU16(out, 0, uint16(len(body)))
	return append(out, body...)
}

func encodeOneTLV(t *TLV) []byte {
	flags := uint8(0)
	if len(t.Value) > 0 {
		flags |= tlvFlagHasValue
	}
	if len(t.Value) > 0xff {
		flags |= tlvFlagLen16
	}
	out := []byte{t.Type, t.ExtType, flags}
	if flags&tlvFlagHasValue != 0 {
		if flags&tlvFlagLen16 != 0 {
			lb := make([]byte, 2)
			putU16(lb, 0, uint16(len(t.Value)))
			out = append(out, lb...)
		} else {
			out = append(out, byte(len(t.Value)))
		}
		out = append(out, t.Value...)
	}
	return out
}

// decodeTLVBlock parses a tlv-block starting at buf[0]; it returns the
// parsed block and the number of bytes consumed (2 + advertised length).
func decodeTLVBlock(buf []byte) (TLVBlock, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}
	blockLen := int(getU16(buf, 0))
	if len(buf) < 2+blockLen {
		return nil, 0, ErrIncomplete
	}
	body := buf[2 : 2+blockLen]

	var block TLVBlock
	pos := 0
	for pos < len(body) {
		if pos+3 > len(body) {
			return nil, 0, ErrTerminated
		}
		typ, ext, flags := body[pos], body[pos+1], body[pos+2]
		pos += 3
		var value []byte
		if flags&tlvFlagHasValue != 0 {
			var length int
			if flags&tlvFlagLen16 != 0 {
				if pos+2 > len(body) {
					return nil, 0, ErrTerminated
				}
				length = int(getU16(body, pos))
				pos += 2
			} else {
				if pos+1 > len(body) {
					return nil, 0, ErrTerminated
				}
				length = int(body[pos])
				pos++
			}
			if pos+length > len(body) {
				return nil, 0, ErrTerminated
			}
			value = append([]byte(nil), body[pos:pos+length]...)
			pos += length
		}
		if err := checkLength(typ, ext, value); err != nil {
			return nil, 0, err
		}
		block.Add(typ, ext, value)
	}
	return block, 2 + blockLen, nil
}
