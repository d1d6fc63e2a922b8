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

package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	log "github.com/sirupsen/logrus"
)

// EtherType is the custom ethertype frames are sent under, picked from
// the experimental range (IEEE 802 "locally administered").
const EtherType = 0x88b6

// broadcastMAC is the link-layer broadcast address.
var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// RawLink is a Link backed by raw Ethernet frames captured live with
// libpcap, for links with no IP stack (e.g. an 802.11 ad-hoc cell
// bridged straight to Ethernet framing). Grounded on the live-capture
// pcap.OpenLive/gopacket.NewPacketSource idiom this repo's pack uses for
// offline pcap decoding (pshark/main.go), adapted to a live handle.
type RawLink struct {
	iface  *net.Interface
	handle *pcap.Handle
	source *gopacket.PacketSource
	frames chan Frame
	done   chan struct{}
}

// NewRawLink opens a live pcap handle on ifaceName and starts the
// background capture loop.
func NewRawLink(ifaceName string) (*RawLink, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving interface %q: %w", ifaceName, err)
	}
	handle, err := pcap.OpenLive(ifaceName, 65535, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("transport: opening pcap handle on %s: %w", ifaceName, err)
	}
	filter := fmt.Sprintf("ether proto 0x%x", EtherType)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("transport: setting bpf filter on %s: %w", ifaceName, err)
	}

	l := &RawLink{
		iface:  iface,
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
		frames: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	go l.capture()
	log.Infof("transport: raw link up on %s, ethertype 0x%x", ifaceName, EtherType)
	return l, nil
}

func (l *RawLink) capture() {
	for {
		select {
		case <-l.done:
			return
		case packet, ok := <-l.source.Packets():
			if !ok {
				return
			}
			eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
			if !ok {
				continue
			}
			select {
			case l.frames <- Frame{From: eth.SrcMAC.String(), Payload: append([]byte(nil), eth.Payload...)}:
			case <-l.done:
				return
			}
		}
	}
}

// Send implements Link.
func (l *RawLink) Send(ctx context.Context, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       l.iface.HardwareAddr,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetType(EtherType),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("transport: serializing raw frame: %w", err)
	}
	if err := l.handle.WritePacketData(buf.Bytes()); err != nil {
		return fmt.Errorf("transport: writing raw frame: %w", err)
	}
	return nil
}

// Receive implements Link.
func (l *RawLink) Receive(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-l.frames:
		if !ok {
			return Frame{}, ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-l.done:
		return Frame{}, ErrClosed
	}
}

// Close implements Link.
func (l *RawLink) Close() error {
	close(l.done)
	l.handle.Close()
	return nil
}
