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

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(routesCmd)
}

func routesRun(addr string) error {
	counters, err := fetchCounters(addr)
	if err != nil {
		return err
	}

	table := newTable([]string{"domain", "reachable peers"})
	for _, ext := range domainExtTypes(counters) {
		reachable := counters[fmt.Sprintf("mesh.domain.%d.route.reachable", ext)]
		count := fmt.Sprintf("%d", reachable)
		if reachable == 0 {
			count = color.RedString(count)
		}
		table.Append([]string{fmt.Sprintf("%d", ext), count})
	}
	table.Render()
	return nil
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print reachable-peer counts per domain route set",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := routesRun(rootAddrFlag); err != nil {
			log.Fatal(err)
		}
	},
}
