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

// Package domain implements the domain manager of §4.9: it multiplexes
// independent (metric, MPR-algorithm) topologies over one signalling
// protocol, each identified by the TLV ext-type byte carried in every
// per-address TLV (SPEC_FULL §4.9a).
package domain

import (
	"fmt"
	"sort"

	"github.com/meshnet/olsr2/ib"
	"github.com/meshnet/olsr2/mpr"
	rfc "github.com/meshnet/olsr2/rfc5444"
	"github.com/meshnet/olsr2/route"
)

// MaxDomains bounds how many independent domains one node may run (§4.9).
const MaxDomains = 4

// Domain describes one configured (metric, MPR-algorithm) topology.
type Domain struct {
	// ExtType is the TLV ext-type byte that disambiguates this domain's
	// address-TLVs on the wire (0..MaxDomains-1).
	ExtType uint8
	// Name is a human-readable label, used only for logging/CLI display.
	Name string
	// Flooding marks the single domain whose MPR set also gates TC
	// forwarding (§4.9); at most one domain may set this.
	Flooding bool
}

// ErrTooManyDomains is returned by Register once MaxDomains are configured.
var ErrTooManyDomains = fmt.Errorf("domain: more than %d domains configured", MaxDomains)

// ErrDuplicateExtType is returned when two domains claim the same ext-type.
var ErrDuplicateExtType = fmt.Errorf("domain: ext-type already registered")

// ErrMultipleFloodingDomains is returned when a second domain tries to
// claim the flooding role.
var ErrMultipleFloodingDomains = fmt.Errorf("domain: a flooding domain is already registered")

// Manager owns the set of configured domains and recomputes each one's MPR
// and routing sets against a shared information base.
type Manager struct {
	domains      map[uint8]*Domain
	floodingType uint8
	hasFlooding  bool
}

// NewManager returns a manager with no domains registered.
func NewManager() *Manager {
	return &Manager{domains: map[uint8]*Domain{}}
}

// Register adds d to the manager. The slot at d.ExtType must be free, the
// MaxDomains bound must not already be reached, and at most one domain may
// set Flooding.
func (m *Manager) Register(d Domain) error {
	if len(m.domains) >= MaxDomains {
		return ErrTooManyDomains
	}
	if _, exists := m.domains[d.ExtType]; exists {
		return fmt.Errorf("%w: ext-type %d", ErrDuplicateExtType, d.ExtType)
	}
	if d.Flooding {
		if m.hasFlooding {
			return ErrMultipleFloodingDomains
		}
		m.hasFlooding = true
		m.floodingType = d.ExtType
	}
	cp := d
	m.domains[d.ExtType] = &cp
	return nil
}

// Get returns the domain registered at extType, or false if none is.
func (m *Manager) Get(extType uint8) (Domain, bool) {
	d, ok := m.domains[extType]
	if !ok {
		return Domain{}, false
	}
	return *d, true
}

// All returns every registered domain ordered by ext-type, for stable
// iteration (recompute order, CLI display).
func (m *Manager) All() []Domain {
	types := make([]uint8, 0, len(m.domains))
	for t := range m.domains {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out := make([]Domain, 0, len(types))
	for _, t := range types {
		out = append(out, *m.domains[t])
	}
	return out
}

// FloodingExtType returns the ext-type of the flooding domain and true, or
// false if none has been registered yet.
func (m *Manager) FloodingExtType() (uint8, bool) {
	return m.floodingType, m.hasFlooding
}

// Result bundles one domain's freshly recomputed MPR and routing sets.
type Result struct {
	Domain   Domain
	MPR      map[ib.PeerID]bool
	Routes   map[ib.PeerID]ib.RoutingInfo
	Networks []route.NetworkRoute
}

// Recompute runs MPR selection and Dijkstra routing for every registered
// domain against base, in ext-type order, and folds each domain's MPR
// decision back onto the neighbor entries it covers: the flooding domain
// sets NeighborEntry.FloodingMPRStatus's TO bit, every other domain sets
// the TO bit of its own entry in NeighborEntry.RoutingMPR. The FROM bit
// (whether a neighbor has selected this node) is set elsewhere, from
// parsed HELLO content, and is preserved here rather than clobbered.
//
// ib's RemoteEntry carries a single Routing field rather than one per
// domain, so route.Compute's side effect of writing it back reflects
// whichever domain was processed last; callers that need a specific
// domain's routing set should read the returned Result instead of relying
// on RemoteEntry.Routing for anything but the last-recomputed domain.
func (m *Manager) Recompute(base *ib.IB) []Result {
	domains := m.All()
	results := make([]Result, 0, len(domains))
	for _, d := range domains {
		selected := mpr.Select(base, d.ExtType)
		applyMPRResult(base, d, selected)
		routes := route.Compute(base, d.ExtType)
		networks := route.ComputeNetworks(base, d.ExtType, routes)
		results = append(results, Result{Domain: d, MPR: selected, Routes: routes, Networks: networks})
	}
	return results
}

func applyMPRResult(base *ib.IB, d Domain, selected map[ib.PeerID]bool) {
	for _, nid := range base.NeighborIDs() {
		n := base.Neighbor(nid)
		if n == nil {
			continue
		}
		if d.Flooding {
			n.FloodingMPRStatus = setToBit(n.FloodingMPRStatus, selected[nid])
			continue
		}
		n.SetRoutingMPRStatus(d.ExtType, setToBit(n.RoutingMPRStatus(d.ExtType), selected[nid]))
	}
}

// setToBit sets or clears the MPRTo bit of status while leaving MPRFrom
// untouched.
func setToBit(status uint8, to bool) uint8 {
	if to {
		return status | rfc.MPRTo
	}
	return status &^ rfc.MPRTo
}
