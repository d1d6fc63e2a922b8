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

package cmd

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/meshnet/olsr2/node/promexport"
)

var domainKeyRe = regexp.MustCompile(`^mesh\.domain\.(\d+)\.`)

// fetchCounters pulls the current mesh.* snapshot from addr, the same
// /counters endpoint node/promexport.Exporter scrapes.
func fetchCounters(addr string) (promexport.Counters, error) {
	counters, err := promexport.FetchCounters(addr)
	if err != nil {
		return nil, fmt.Errorf("fetching counters from %s: %w", addr, err)
	}
	return counters, nil
}

// domainExtTypes returns every domain ext_type mentioned in counters,
// sorted ascending.
func domainExtTypes(counters promexport.Counters) []uint64 {
	seen := map[uint64]bool{}
	for k := range counters {
		m := domainKeyRe.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 8)
		if err != nil {
			continue
		}
		seen[n] = true
	}
	out := make([]uint64, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// newTable is a tablewriter.Writer over stdout, matching the column width
// convention ptpcheck's sources command renders its tables with.
func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(20)
	table.SetHeader(header)
	return table
}
