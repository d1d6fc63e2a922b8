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
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/meshnet/olsr2/config"
	"github.com/meshnet/olsr2/node"
	"github.com/meshnet/olsr2/node/stats"
	"github.com/meshnet/olsr2/transport"

	_ "net/http/pprof"
)

func prepareConfig(cfgPath, iface string, monitoringPort int) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	if iface != "" && iface != cfg.Iface {
		log.Warningf("overriding iface from CLI flag")
		cfg.Iface = iface
	}
	if monitoringPort != 0 && monitoringPort != cfg.MonitoringPort {
		log.Warningf("overriding monitoringPort from CLI flag")
		cfg.MonitoringPort = monitoringPort
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}

// selfAddress returns iface's hardware address, the wire-level originator
// identity every HELLO/TC this daemon emits carries (§4.5).
func selfAddress(ifaceName string) ([]byte, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("resolving interface %q: %w", ifaceName, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("interface %q has no hardware address", ifaceName)
	}
	return []byte(iface.HardwareAddr), nil
}

func newLink(cfg *config.Config, raw bool) (transport.Link, error) {
	if raw {
		return transport.NewRawLink(cfg.Iface)
	}
	return transport.NewUDPLink(cfg.Iface, transport.DefaultMulticastGroup, transport.DefaultPort)
}

func doWork(ctx context.Context, cfg *config.Config, link transport.Link) error {
	selfAddr, err := selfAddress(cfg.Iface)
	if err != nil {
		return err
	}
	n, err := node.New(cfg, selfAddr)
	if err != nil {
		return fmt.Errorf("building routing core: %w", err)
	}

	srv := stats.NewServer()
	interval := time.Duration(cfg.TickInterval.Seconds) * time.Second
	go stats.Collect(n, srv)
	go func() {
		for range time.Tick(interval) {
			stats.Collect(n, srv)
		}
	}()
	go srv.Start(cfg.MonitoringPort, interval)

	driver := node.NewDriver(n, link)
	go watchResetSignal(ctx, driver)
	notifyReady()
	return driver.Run(ctx)
}

// watchResetSignal calls driver.Reset() on every SIGHUP, the daemon's only
// exposed cancellation point besides full shutdown (§5): it drops every
// information-base entry and duplicate-set window, and the mesh
// re-acquires state from scratch via the next HELLO/TC exchange.
func watchResetSignal(ctx context.Context, driver *node.Driver) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.Info("sighup: resetting routing core")
			driver.Reset()
		}
	}
}

// notifyReady tells systemd the daemon is up, once the link and routing
// core are ready to run. A no-op outside a systemd unit (NOTIFY_SOCKET
// unset).
func notifyReady() {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported && err != nil {
		log.Warnf("sd_notify: %v", err)
	} else if !supported {
		log.Debug("sd_notify not supported")
	}
}

func main() {
	var (
		verboseFlag        bool
		ifaceFlag          string
		configFlag         string
		monitoringPortFlag int
		rawFlag            bool
	)

	flag.BoolVar(&verboseFlag, "verbose", false, "verbose output")
	flag.StringVar(&ifaceFlag, "iface", "", "network interface to use (overrides config)")
	flag.StringVar(&configFlag, "config", "", "path to the yaml config")
	flag.IntVar(&monitoringPortFlag, "monitoringport", 0, "port to serve /counters on (overrides config)")
	flag.BoolVar(&rawFlag, "raw", false, "use raw Ethernet framing instead of UDP multicast")
	flag.Parse()

	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := prepareConfig(configFlag, ifaceFlag, monitoringPortFlag)
	if err != nil {
		log.Fatal(err)
	}

	link, err := newLink(cfg, rawFlag)
	if err != nil {
		log.Fatalf("opening link on %s: %v", cfg.Iface, err)
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := doWork(ctx, cfg, link); err != nil {
		log.Fatal(err)
	}
}
