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

// Package stats is the daemon's monitoring surface (SPEC_FULL §5 AMBIENT):
// an open-ended counters map served as JSON, fed by the routing core's
// peer-table and MPR/route-set gauges plus process/runtime metrics.
package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server is a thread-safe counters map exposed over http, mirroring
// sptp/client's JSONStats/Stats split but with an open-ended key set
// instead of named fields: this domain's counter names
// (mesh.ib.*, mesh.domain.<ext>.*) are assigned by callers, not
// fixed in the struct.
type Server struct {
	mu       sync.Mutex
	counters map[string]int64
	sys      *SysStats
}

// NewServer returns an empty Server.
func NewServer() *Server {
	return &Server{counters: map[string]int64{}, sys: &SysStats{}}
}

// SetCounter overwrites name's current value, for gauges (peer counts,
// MPR-set sizes) that are recomputed wholesale each tick.
func (s *Server) SetCounter(name string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] = v
}

// IncCounter adds 1 to name, for monotonically-increasing event counts
// (frames sent, duplicates dropped).
func (s *Server) IncCounter(name string) {
	s.AddCounter(name, 1)
}

// AddCounter adds delta to name.
func (s *Server) AddCounter(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
}

// Counters returns a snapshot copy of every counter.
func (s *Server) Counters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// collectSysStats folds one SysStats snapshot onto the counters map,
// namespaced under mesh.process/mesh.runtime.
func (s *Server) collectSysStats(interval time.Duration) {
	vals, err := s.sys.CollectRuntimeStats(interval)
	if err != nil {
		log.Warnf("stats: collecting system metrics: %v", err)
		return
	}
	for k, v := range vals {
		s.SetCounter(fmt.Sprintf("mesh.%s", k), int64(v))
	}
}

// Start runs the sysstats collector loop and the http counters server
// until the process exits (matches cmd/sptp's updateSysStatsForever +
// JSONStats.Start pairing).
func (s *Server) Start(monitoringPort int, interval time.Duration) {
	go func() {
		s.collectSysStats(interval)
		for range time.Tick(interval) {
			s.collectSysStats(interval)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/counters", s.handleCounters)
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("stats: starting json server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("stats: http server stopped: %v", err)
	}
}

func (s *Server) handleCounters(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.Counters())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("stats: replying to counters request: %v", err)
	}
}
