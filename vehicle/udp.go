package vehicle

import (
	"context"
	"fmt"
	"net"
)

// UDPLink sends each command as one datagram to a fixed address
type UDPLink struct {
	*writerLink
	addr string
}

// NewUDPLink creates a link for addr (host:port); the socket is dialed by Start
func NewUDPLink(addr string, limits Limits) *UDPLink {
	return &UDPLink{
		writerLink: newWriterLink("udp "+addr, limits),
		addr:       addr,
	}
}

// Start dials the destination and begins processing commands
func (u *UDPLink) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", u.addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", u.addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.addr, err)
	}
	if err := u.run(ctx, conn); err != nil {
		conn.Close()
		return err
	}
	debugMsg("LINK", fmt.Sprintf("UDP link sending to %s", u.addr))
	return nil
}
