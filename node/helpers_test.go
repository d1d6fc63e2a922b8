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
	rfc "github.com/meshnet/olsr2/rfc5444"
	"github.com/meshnet/olsr2/segment"
)

// decodeFirstPacket reassembles a sequence of link frames emitted by one
// Node.OnTick call (all from the same synthetic sender) back into a
// decoded packet, mirroring what a peer's Driver.onFrame would do.
func decodeFirstPacket(frames [][]byte) (*rfc.Packet, error) {
	r := segment.NewReassembler(4096)
	var packetBytes []byte
	for _, f := range frames {
		b, err := r.OnFrame([]byte("test-sender"), f)
		if err != nil {
			return nil, err
		}
		if b != nil {
			packetBytes = b
		}
	}
	return rfc.Decode(packetBytes)
}
