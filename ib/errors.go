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

import "errors"

// ErrPeerTableFull is returned by GetOrCreateID when peer_num has already
// reached MaxPeer (§4.4, §7).
var ErrPeerTableFull = errors.New("ib: peer table full")

// ErrSlotOccupied is returned by RegisterNeighbor/RegisterTwoHop/
// RegisterRemote when the id's slot is not empty, violating their
// precondition.
var ErrSlotOccupied = errors.New("ib: entry slot already occupied")

// ErrUnknownPeer is returned when an operation names a peer-id with no
// live entry.
var ErrUnknownPeer = errors.New("ib: unknown peer id")
