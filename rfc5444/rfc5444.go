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

// Package rfc5444 implements the TLV-structured packet/message/address-block
// wire codec shared by HELLO and TC messages: an RFC5444-style framing
// generalised from the ESP-NOW compact port's fixed 6-byte addressing to a
// negotiated per-message address length.
package rfc5444

// Message types (wire table, §6).
const (
	MsgHello uint8 = 1
	MsgTC    uint8 = 2
)

// TLV type assignments (wire table, §6, plus the SPEC_FULL additions).
const (
	TLVValidityTime     uint8 = 1
	TLVIntervalTime     uint8 = 2
	TLVLinkStatus       uint8 = 3
	TLVLinkMetric       uint8 = 4
	TLVMPRWilling       uint8 = 5
	TLVMPRStatus        uint8 = 6
	TLVProtoVersion     uint8 = 7 // SPEC_FULL §6 domain stack: hashicorp/go-version negotiation
	TLVAttachedNetwork  uint8 = 8 // SPEC_FULL §7: LAN / attached-network leaf edges
)

// Link status values carried by TLVLinkStatus.
const (
	LinkLost      uint8 = 0
	LinkSymmetric uint8 = 1
	LinkHeard     uint8 = 2
)

// MPR status values carried by TLVMPRStatus, one per direction.
const (
	MPRNone   uint8 = 0
	MPRTo     uint8 = 1
	MPRFrom   uint8 = 2
	MPRToFrom uint8 = 3
)

// message header flag bits controlling which optional fields are present.
const (
	msgFlagHasOriginator uint8 = 1 << 7
	msgFlagHasHopLimit   uint8 = 1 << 6
	msgFlagHasHopCount   uint8 = 1 << 5
	msgFlagHasSeqNum     uint8 = 1 << 4
)

// tlv header flag bits.
const (
	tlvFlagHasValue uint8 = 1 << 0
	tlvFlagLen16    uint8 = 1 << 1
)

// address block flag bits.
const (
	addrBlockFlagHasPrefixLengths uint8 = 1 << 0
)

// packet header flag bits (packed 4+4 with version via bitstream).
const (
	pktFlagHasSeqNum uint8 = 1 << 0
)
