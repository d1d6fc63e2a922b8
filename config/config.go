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

// Package config loads the daemon's YAML configuration: the signalling
// interface, HELLO/TC timers, configured domains and information-base
// sizing.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// DomainConfig describes one configured (metric, MPR-algorithm) topology
// (§4.9), read straight off the YAML domains list.
type DomainConfig struct {
	ExtType  uint8  `yaml:"ext_type"`
	Name     string `yaml:"name"`
	Flooding bool   `yaml:"flooding"`
}

// AttachedNetworkConfig describes one locally attached network (SPEC_FULL
// §7, original_source olsrv2_lan.h): a leaf prefix this node advertises
// reachability to, instead of another peer-id. Prefix is hex-encoded
// since YAML has no native byte-string type.
type AttachedNetworkConfig struct {
	Domain    uint8  `yaml:"domain"`
	Prefix    string `yaml:"prefix"`
	PrefixLen uint8  `yaml:"prefix_len"`
	Metric    uint8  `yaml:"metric"`
}

// Config specifies how one node's routing core is wired up.
type Config struct {
	Iface          string         `yaml:"iface"`
	ListenAddress  string         `yaml:"listen_address"`
	MonitoringPort int            `yaml:"monitoring_port"`
	TickInterval   Duration       `yaml:"tick_interval"`
	HelloInterval  Duration       `yaml:"hello_interval"`
	HelloValidity  Duration       `yaml:"hello_validity"`
	TCInterval     Duration       `yaml:"tc_interval"`
	TCValidity     Duration       `yaml:"tc_validity"`
	MaxPeers       int            `yaml:"max_peers"`
	FrameSize      int            `yaml:"frame_size"`
	Willingness    uint8          `yaml:"willingness"`
	Domains        []DomainConfig `yaml:"domains"`

	// AttachedNetworks lists the leaf prefixes this node advertises on
	// its own behalf (SPEC_FULL §7); empty for a node that only relays
	// mesh-internal traffic.
	AttachedNetworks []AttachedNetworkConfig `yaml:"attached_networks"`
}

// DefaultConfig returns Config initialised with the reference port's
// default tick/validity values (§4, original_source main/config.h).
func DefaultConfig() *Config {
	return &Config{
		Iface:          "wlan0",
		ListenAddress:  "0.0.0.0",
		MonitoringPort: 8969,
		TickInterval:   Duration{Seconds: 1},
		HelloInterval:  Duration{Seconds: 2},
		HelloValidity:  Duration{Seconds: 6},
		TCInterval:     Duration{Seconds: 5},
		TCValidity:     Duration{Seconds: 15},
		MaxPeers:       128,
		FrameSize:      230,
		Willingness:    3,
		Domains: []DomainConfig{
			{ExtType: 0, Name: "default", Flooding: true},
		},
	}
}

// Duration is a YAML-friendly seconds-resolution duration: the reference
// port expresses every interval as an integer tick count rather than a
// Go time.Duration string, so this repo mirrors that on the wire of its
// own config file instead of importing time.Duration's string parsing.
type Duration struct {
	Seconds int `yaml:"seconds"`
}

// Validate checks Config is internally consistent before a Node is built
// from it.
func (c *Config) Validate() error {
	if c.Iface == "" {
		return fmt.Errorf("iface must be specified")
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	if c.TickInterval.Seconds <= 0 {
		return fmt.Errorf("tick_interval must be greater than zero")
	}
	if c.HelloInterval.Seconds <= 0 {
		return fmt.Errorf("hello_interval must be greater than zero")
	}
	if c.HelloValidity.Seconds <= c.HelloInterval.Seconds {
		return fmt.Errorf("hello_validity must be greater than hello_interval")
	}
	if c.TCInterval.Seconds <= 0 {
		return fmt.Errorf("tc_interval must be greater than zero")
	}
	if c.TCValidity.Seconds <= c.TCInterval.Seconds {
		return fmt.Errorf("tc_validity must be greater than tc_interval")
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("max_peers must be greater than zero")
	}
	if c.FrameSize <= 6 {
		return fmt.Errorf("frame_size must be greater than the segment header size")
	}
	if c.Willingness > 7 {
		return fmt.Errorf("willingness must be 0..7")
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one domain must be configured")
	}
	seen := map[uint8]bool{}
	floodingSeen := false
	for _, d := range c.Domains {
		if seen[d.ExtType] {
			return fmt.Errorf("duplicate domain ext_type %d", d.ExtType)
		}
		seen[d.ExtType] = true
		if d.Flooding {
			if floodingSeen {
				return fmt.Errorf("more than one flooding domain configured")
			}
			floodingSeen = true
		}
	}
	if !floodingSeen {
		return fmt.Errorf("exactly one domain must be marked flooding")
	}
	for _, an := range c.AttachedNetworks {
		raw, err := hex.DecodeString(an.Prefix)
		if err != nil {
			return fmt.Errorf("attached_networks: prefix %q is not hex: %w", an.Prefix, err)
		}
		if len(raw) == 0 || len(raw) > 16 {
			return fmt.Errorf("attached_networks: prefix %q must decode to 1..16 bytes", an.Prefix)
		}
		if !seen[an.Domain] {
			return fmt.Errorf("attached_networks: domain %d is not configured", an.Domain)
		}
	}
	return nil
}

// ReadConfig reads and validates Config from a YAML file at path.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %q: %w", path, err)
	}
	log.Debugf("config: %+v", c)
	return c, nil
}
