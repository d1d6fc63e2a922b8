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
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// DefaultMulticastGroup is the link-local multicast address HELLO/TC
// frames are broadcast to when no override is configured. It lies in
// 224.0.0.0/24, the Local Network Control Block of RFC 5771, whose
// traffic routers do not forward.
const DefaultMulticastGroup = "224.0.0.251"

// DefaultPort is the UDP port the signalling socket binds.
const DefaultPort = 9080

// UDPLink is a Link backed by an IPv4 multicast UDP socket bound to one
// interface, mirroring the per-interface socket setup cmd/sptp's main
// does for its event/general PTP sockets.
type UDPLink struct {
	iface *net.Interface
	group *net.UDPAddr
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
}

// NewUDPLink opens a UDP socket on ifaceName, joins group:port as an
// IPv4 multicast group, and returns a Link ready for Send/Receive.
func NewUDPLink(ifaceName, group string, port int) (*UDPLink, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving interface %q: %w", ifaceName, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listening on udp port %d: %w", port, err)
	}
	// port may have been 0 (let the OS pick); the group address must
	// name the port this socket actually ended up bound to, since a
	// multicast send/receive pair only meets there.
	boundPort := conn.LocalAddr().(*net.UDPAddr).Port
	groupAddr := &net.UDPAddr{IP: net.ParseIP(group), Port: boundPort}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(iface, groupAddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: joining multicast group %s on %s: %w", group, ifaceName, err)
	}
	if err := pconn.SetMulticastInterface(iface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: setting multicast interface %s: %w", ifaceName, err)
	}
	if err := pconn.SetMulticastLoopback(false); err != nil {
		log.Warnf("transport: disabling multicast loopback on %s: %v", ifaceName, err)
	}

	log.Infof("transport: udp link up on %s, group %s:%d", ifaceName, group, port)
	return &UDPLink{iface: iface, group: groupAddr, conn: conn, pconn: pconn}, nil
}

// Send implements Link.
func (l *UDPLink) Send(ctx context.Context, payload []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		l.conn.SetWriteDeadline(dl)
	}
	_, err := l.conn.WriteToUDP(payload, l.group)
	if err != nil {
		return fmt.Errorf("transport: udp send: %w", err)
	}
	return nil
}

// Receive implements Link.
func (l *UDPLink) Receive(ctx context.Context) (Frame, error) {
	if dl, ok := ctx.Deadline(); ok {
		l.conn.SetReadDeadline(dl)
	}
	buf := make([]byte, 65535)
	n, from, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return Frame{}, ErrClosed
		}
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("transport: udp receive: %w", err)
	}
	return Frame{From: from.String(), Payload: buf[:n]}, nil
}

// Close implements Link.
func (l *UDPLink) Close() error {
	return l.conn.Close()
}
