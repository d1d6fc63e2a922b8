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
	RootCmd.AddCommand(mprCmd)
}

func mprRun(addr string) error {
	counters, err := fetchCounters(addr)
	if err != nil {
		return err
	}

	table := newTable([]string{"domain", "selected mprs"})
	for _, ext := range domainExtTypes(counters) {
		selected := counters[fmt.Sprintf("mesh.domain.%d.mpr.selected", ext)]
		count := fmt.Sprintf("%d", selected)
		if selected == 0 {
			count = color.YellowString(count)
		}
		table.Append([]string{fmt.Sprintf("%d", ext), count})
	}
	table.Render()
	return nil
}

var mprCmd = &cobra.Command{
	Use:   "mpr",
	Short: "Print flooding/routing MPR set sizes per domain",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := mprRun(rootAddrFlag); err != nil {
			log.Fatal(err)
		}
	},
}
