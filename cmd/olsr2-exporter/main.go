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

package main

import (
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/meshnet/olsr2/node/promexport"
)

func main() {
	var (
		verboseFlag    bool
		listenPortFlag int
		scrapeURLFlag  string
		intervalFlag   time.Duration
	)

	flag.BoolVar(&verboseFlag, "verbose", false, "verbose output")
	flag.IntVar(&listenPortFlag, "port", 9469, "port to serve /metrics on")
	flag.StringVar(&scrapeURLFlag, "source", "http://localhost:8969", "olsr2d node/stats base url to scrape")
	flag.DurationVar(&intervalFlag, "interval", 10*time.Second, "how often to scrape -source")
	flag.Parse()

	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	e := promexport.NewExporter(listenPortFlag, scrapeURLFlag, intervalFlag)
	if err := e.Start(); err != nil {
		log.Fatal(err)
	}
}
