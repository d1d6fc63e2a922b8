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
	RootCmd.AddCommand(domainsCmd)
}

func domainsRun(addr string) error {
	counters, err := fetchCounters(addr)
	if err != nil {
		return err
	}

	table := newTable([]string{"domain", "selected mprs", "reachable peers", "reachable networks"})
	for _, ext := range domainExtTypes(counters) {
		mprs := counters[fmt.Sprintf("mesh.domain.%d.mpr.selected", ext)]
		routes := counters[fmt.Sprintf("mesh.domain.%d.route.reachable", ext)]
		nets := counters[fmt.Sprintf("mesh.domain.%d.network.reachable", ext)]
		table.Append([]string{fmt.Sprintf("%d", ext), fmt.Sprintf("%d", mprs), fmt.Sprintf("%d", routes), fmt.Sprintf("%d", nets)})
	}
	table.Render()
	return nil
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Print every configured domain's MPR and route summary",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := domainsRun(rootAddrFlag); err != nil {
			log.Fatal(err)
		}
	},
}
