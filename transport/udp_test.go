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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// loopbackIface returns the name of the first loopback interface, so
// tests don't depend on a particular multicast-capable NIC being present
// in the sandbox.
func loopbackIface(t *testing.T) string {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	for _, i := range ifaces {
		if i.Flags&net.FlagLoopback != 0 && i.Flags&net.FlagUp != 0 {
			return i.Name
		}
	}
	t.Skip("no loopback interface available")
	return ""
}

// TestUDPLinkSendReceiveSelfLoopback re-enables multicast loopback on a
// single link (disabled by default in NewUDPLink) and checks a frame it
// sends to the group is delivered back to its own Receive: the only
// multicast round trip a sandboxed loopback interface can reliably
// produce without a second bound socket racing for the same port.
func TestUDPLinkSendReceiveSelfLoopback(t *testing.T) {
	ifaceName := loopbackIface(t)
	l, err := NewUDPLink(ifaceName, DefaultMulticastGroup, 0)
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.pconn.SetMulticastLoopback(true))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, l.Send(ctx, []byte("hello")))

	frame, err := l.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), frame.Payload)
}

func TestUDPLinkReceiveUnblocksOnClose(t *testing.T) {
	ifaceName := loopbackIface(t)
	l, err := NewUDPLink(ifaceName, DefaultMulticastGroup, 0)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestUDPLinkReceiveRespectsContextCancellation(t *testing.T) {
	ifaceName := loopbackIface(t)
	l, err := NewUDPLink(ifaceName, DefaultMulticastGroup, 0)
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = l.Receive(ctx)
	require.Error(t, err)
}
