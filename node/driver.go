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

package node

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	rfc "github.com/meshnet/olsr2/rfc5444"
	"github.com/meshnet/olsr2/transport"
)

// Clock abstracts "now" as a monotonic tick counter, so tests can drive
// Driver without a real ticker (mirrors sptp/client's injected Clock
// collaborator).
type Clock interface {
	// Now returns the current tick, e.g. seconds since the driver started.
	Now() int64
}

// systemClock is the default Clock, counting whole seconds since the
// driver started.
type systemClock struct{ start time.Time }

func (c *systemClock) Now() int64 { return int64(time.Since(c.start).Seconds()) }

// Driver runs a Node against a real transport.Link: a tick loop that
// calls Node.OnTick and transmits its frames, and a receive loop that
// feeds incoming frames through reassembly, decode and dispatch (§4.10).
type Driver struct {
	node  *Node
	link  transport.Link
	clock Clock
}

// NewDriver builds a Driver for node over link, using the system clock.
func NewDriver(n *Node, link transport.Link) *Driver {
	return &Driver{node: n, link: link, clock: &systemClock{start: time.Now()}}
}

// Node returns the underlying routing core, for CLI/inspection callers.
func (d *Driver) Node() *Node { return d.node }

// Reset clears the underlying Node's entire state in place, without
// tearing down the tick/receive loops or the transport link (§5). The
// caller is responsible for serialising this against concurrent OnTick/
// OnHello/OnTC processing, the same way the reference core assumes a
// single-threaded driver event loop.
func (d *Driver) Reset() {
	d.node.Reset()
}

// Run drives the tick and receive loops until ctx is cancelled or either
// loop returns a fatal error.
func (d *Driver) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return d.runTicker(ctx)
	})
	eg.Go(func() error {
		return d.runReceiver(ctx)
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Driver) runTicker(ctx context.Context) error {
	interval := time.Duration(d.node.cfg.TickInterval.Seconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, frame := range d.node.OnTick(d.clock.Now()) {
				if err := d.link.Send(ctx, frame); err != nil {
					log.Warnf("node: sending frame: %v", err)
				}
			}
		}
	}
}

func (d *Driver) runReceiver(ctx context.Context) error {
	for {
		f, err := d.link.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed) {
				return err
			}
			log.Warnf("node: receiving frame: %v", err)
			continue
		}
		d.onFrame(ctx, f)
	}
}

// onFrame reassembles one incoming link frame and dispatches every
// complete packet it yields.
func (d *Driver) onFrame(ctx context.Context, f transport.Frame) {
	packetBytes, err := d.node.reasm.OnFrame([]byte(f.From), f.Payload)
	if err != nil {
		log.Debugf("node: reassembly: %v", err)
		return
	}
	if packetBytes == nil {
		return
	}

	pkt, err := rfc.Decode(packetBytes)
	if err != nil {
		log.Warnf("node: decoding packet from %s: %v", f.From, err)
		return
	}

	now := d.clock.Now()
	for _, msg := range pkt.Messages {
		d.onMessage(ctx, msg, now, []byte(f.From))
	}
}

func (d *Driver) onMessage(ctx context.Context, msg *rfc.Message, now int64, prevHop []byte) {
	switch msg.Type {
	case rfc.MsgHello:
		if err := d.node.OnHello(msg, now); err != nil {
			log.Warnf("node: handling hello: %v", err)
		}
	case rfc.MsgTC:
		forward, err := d.node.OnTC(msg, now, prevHop)
		if err != nil {
			log.Warnf("node: handling tc: %v", err)
			return
		}
		if !forward {
			return
		}
		frames, err := d.node.encodeAndSegment(msg)
		if err != nil {
			log.Warnf("node: re-encoding forwarded tc: %v", err)
			return
		}
		for _, frame := range frames {
			if err := d.link.Send(ctx, frame); err != nil {
				log.Warnf("node: forwarding frame: %v", err)
			}
		}
	default:
		log.Debugf("node: %v: type %d", ErrUnknownMessageType, msg.Type)
	}
}
