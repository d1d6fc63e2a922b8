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

// Package promexport scrapes a node/stats JSON counters endpoint and
// re-serves it as Prometheus gauges, so an olsr2 daemon's mesh.* counters
// can sit behind a standalone exporter binary instead of instrumenting the
// daemon process directly (SPEC_FULL §5 AMBIENT monitoring stack).
package promexport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Counters is the shape node/stats.Server.Counters serialises to JSON.
type Counters map[string]int64

// FetchCounters pulls the counters snapshot from a running node/stats
// server at baseURL (e.g. "http://localhost:8969").
func FetchCounters(baseURL string) (Counters, error) {
	counters := make(Counters)
	c := http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(fmt.Sprintf("%s/counters", baseURL))
	if err != nil {
		return counters, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return counters, err
	}
	err = json.Unmarshal(b, &counters)
	return counters, err
}

// Exporter periodically scrapes one node/stats endpoint and republishes
// every counter as a Prometheus gauge.
type Exporter struct {
	registry   *prometheus.Registry
	listenPort int
	scrapeURL  string
	interval   time.Duration
}

// NewExporter builds an Exporter that scrapes scrapeURL (a node/stats
// base URL) every interval and serves /metrics on listenPort.
func NewExporter(listenPort int, scrapeURL string, interval time.Duration) *Exporter {
	return &Exporter{
		registry:   prometheus.NewRegistry(),
		listenPort: listenPort,
		scrapeURL:  scrapeURL,
		interval:   interval,
	}
}

// Start runs the scrape loop and blocks serving /metrics.
func (e *Exporter) Start() error {
	go func() {
		for {
			e.scrapeOnce()
			time.Sleep(e.interval)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	addr := fmt.Sprintf(":%d", e.listenPort)
	log.Infof("promexport: serving /metrics on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (e *Exporter) scrapeOnce() {
	counters, err := FetchCounters(e.scrapeURL)
	if err != nil {
		log.Warnf("promexport: scraping %s: %v", e.scrapeURL, err)
		return
	}
	for name, val := range counters {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: flattenKey(name), Help: name})
		if err := e.registry.Register(gauge); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				gauge = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("promexport: registering metric %s: %v", name, err)
				continue
			}
		}
		gauge.Set(float64(val))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
