// Command linkmon prints the control commands arriving on a serial or UDP
// link, for checking the autopilot's output on the bench.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"facepilot/tracking"
	"facepilot/vehicle"

	"go.bug.st/serial"
)

func main() {
	udpAddr := flag.String("udp", "", "Listen for commands on this UDP address (host:port)")
	portName := flag.String("serial", "", "Read commands from this serial device")
	baud := flag.Int("baud", vehicle.DefaultBaudRate, "Serial baud rate")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *udpAddr != "":
		err = monitorUDP(ctx, *udpAddr, os.Stdout)
	case *portName != "":
		err = monitorSerial(ctx, *portName, *baud, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func monitorUDP(ctx context.Context, addr string, out io.Writer) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	log.Printf("[LINKMON] Listening on %s", conn.LocalAddr())

	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		printLine(out, string(buf[:n]))
	}
}

func monitorSerial(ctx context.Context, portName string, baud int, out io.Writer) error {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit})
	if err != nil {
		return fmt.Errorf("open %s: %w", portName, err)
	}
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	log.Printf("[LINKMON] Reading %s at %d baud", portName, baud)

	_, err = scanCommands(port, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// scanCommands decodes one command per line until r is exhausted and returns
// how many lines decoded cleanly.
func scanCommands(r io.Reader, out io.Writer) (int, error) {
	decoded := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if printLine(out, scanner.Text()) {
			decoded++
		}
	}
	return decoded, scanner.Err()
}

func printLine(out io.Writer, line string) bool {
	cmd, err := vehicle.DecodeCommand(line)
	if err != nil {
		fmt.Fprintf(out, "?? %q: %v\n", line, err)
		return false
	}
	fmt.Fprintf(out, "%s %s\n", describe(cmd), cmd)
	return true
}

// describe names the behaviour a command corresponds to
func describe(cmd tracking.ControlCommand) string {
	if cmd == tracking.SearchCommand() {
		return "SEARCH"
	}
	return "TRACK "
}
