package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"facepilot/tracking"
	"facepilot/vehicle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCommands(t *testing.T) {
	in := vehicle.EncodeCommand(tracking.SearchCommand()) +
		vehicle.EncodeCommand(tracking.ControlCommand{Roll: 0.1, Yaw: 0.2}) +
		"garbage\n"

	var out bytes.Buffer
	n, err := scanCommands(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SEARCH"))
	assert.True(t, strings.HasPrefix(lines[1], "TRACK"))
	assert.True(t, strings.HasPrefix(lines[2], "??"))
}

type syncBuffer struct {
	ch chan string
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.ch <- string(p)
	return len(p), nil
}

func TestMonitorUDP(t *testing.T) {
	// Reserve a free port, then hand it to the monitor.
	probe, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.LocalAddr().String()
	require.NoError(t, probe.Close())

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{ch: make(chan string, 64)}
	done := make(chan error, 1)
	go func() { done <- monitorUDP(ctx, addr, out) }()

	link := vehicle.NewUDPLink(addr, vehicle.DefaultLimits)
	require.NoError(t, link.Start(ctx))
	defer link.Stop()

	var got string
	require.Eventually(t, func() bool {
		link.SendCommand(tracking.SearchCommand())
		select {
		case got = <-out.ch:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(got, "SEARCH"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
