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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsMissingFloodingDomain(t *testing.T) {
	c := DefaultConfig()
	c.Domains = []DomainConfig{{ExtType: 0, Name: "routing-only"}}
	require.Error(t, c.Validate())
}

func TestValidateRejectsDuplicateExtType(t *testing.T) {
	c := DefaultConfig()
	c.Domains = []DomainConfig{
		{ExtType: 0, Name: "a", Flooding: true},
		{ExtType: 0, Name: "b"},
	}
	require.Error(t, c.Validate())
}

func TestValidateRejectsTwoFloodingDomains(t *testing.T) {
	c := DefaultConfig()
	c.Domains = []DomainConfig{
		{ExtType: 0, Name: "a", Flooding: true},
		{ExtType: 1, Name: "b", Flooding: true},
	}
	require.Error(t, c.Validate())
}

func TestValidateRejectsShortValidity(t *testing.T) {
	c := DefaultConfig()
	c.HelloValidity = Duration{Seconds: c.HelloInterval.Seconds}
	require.Error(t, c.Validate())
}

func TestReadConfigAppliesOverridesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "olsr2.yaml")
	content := []byte("iface: wlan1\nmax_peers: 64\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "wlan1", c.Iface)
	require.Equal(t, 64, c.MaxPeers)
	// untouched fields keep their defaults.
	require.Equal(t, DefaultConfig().TickInterval, c.TickInterval)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig("/nonexistent/olsr2.yaml")
	require.Error(t, err)
}

func TestValidateRejectsNonHexAttachedNetworkPrefix(t *testing.T) {
	c := DefaultConfig()
	c.AttachedNetworks = []AttachedNetworkConfig{{Domain: 0, Prefix: "not-hex", PrefixLen: 24, Metric: 1}}
	require.Error(t, c.Validate())
}

func TestValidateRejectsAttachedNetworkOnUnknownDomain(t *testing.T) {
	c := DefaultConfig()
	c.AttachedNetworks = []AttachedNetworkConfig{{Domain: 9, Prefix: "c0a80000", PrefixLen: 24, Metric: 1}}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsWellFormedAttachedNetwork(t *testing.T) {
	c := DefaultConfig()
	c.AttachedNetworks = []AttachedNetworkConfig{{Domain: 0, Prefix: "c0a80000", PrefixLen: 24, Metric: 1}}
	require.NoError(t, c.Validate())
}
