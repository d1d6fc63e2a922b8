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

package stats

import (
	"fmt"

	"github.com/meshnet/olsr2/node"
)

// Collect refreshes every mesh.ib.*/mesh.domain.*.mpr/mesh.domain.*.route
// gauge onto srv from n's current state. It is cheap enough to call once
// per tick alongside Node.OnTick.
func Collect(n *node.Node, srv *Server) {
	base := n.IB()
	srv.SetCounter("mesh.ib.neighbors", int64(len(base.NeighborIDs())))
	srv.SetCounter("mesh.ib.two_hop", int64(len(base.TwoHopIDs())))
	srv.SetCounter("mesh.ib.remote", int64(len(base.RemoteIDs())))
	srv.SetCounter("mesh.ib.attached_networks", int64(len(base.AttachedNetworks())))

	for _, r := range n.LastResults() {
		selected := 0
		for _, isSelected := range r.MPR {
			if isSelected {
				selected++
			}
		}
		prefix := fmt.Sprintf("mesh.domain.%d", r.Domain.ExtType)
		srv.SetCounter(prefix+".mpr.selected", int64(selected))
		srv.SetCounter(prefix+".route.reachable", int64(len(r.Routes)))
		srv.SetCounter(prefix+".network.reachable", int64(len(r.Networks)))
	}
}
