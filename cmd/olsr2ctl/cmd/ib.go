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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(ibCmd)
}

func ibRun(addr string) error {
	counters, err := fetchCounters(addr)
	if err != nil {
		return err
	}

	table := newTable([]string{"tag", "count"})
	for _, row := range []struct{ label, key string }{
		{"neighbor", "mesh.ib.neighbors"},
		{"two_hop", "mesh.ib.two_hop"},
		{"remote", "mesh.ib.remote"},
		{"attached_network", "mesh.ib.attached_networks"},
	} {
		table.Append([]string{row.label, fmt.Sprintf("%d", counters[row.key])})
	}
	table.Render()
	return nil
}

var ibCmd = &cobra.Command{
	Use:   "ib",
	Short: "Print information base entry counts by tag",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := ibRun(rootAddrFlag); err != nil {
			log.Fatal(err)
		}
	},
}
