package vehicle

import (
	"context"
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate for the flight controller serial bridge
const DefaultBaudRate = 115200

// openPort is replaced in tests
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// SerialLink writes commands to the flight controller over a serial port
type SerialLink struct {
	*writerLink
	portName string
	mode     *serial.Mode
}

// NewSerialLink creates a link for portName; the port is opened by Start
func NewSerialLink(portName string, baudRate int, limits Limits) *SerialLink {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &SerialLink{
		writerLink: newWriterLink("serial "+portName, limits),
		portName:   portName,
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

// Start opens the port and begins processing commands
func (s *SerialLink) Start(ctx context.Context) error {
	port, err := openPort(s.portName, s.mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.portName, err)
	}
	if err := s.run(ctx, port); err != nil {
		port.Close()
		return err
	}
	debugMsg("LINK", fmt.Sprintf("Serial link open on %s at %d baud", s.portName, s.mode.BaudRate))
	return nil
}
