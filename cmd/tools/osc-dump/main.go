// Command osc-dump prints OSC traffic from a live UDP port, a pcap
// capture or a raw SLIP-framed serial capture.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/banshee-data/headosc/internal/osc"
)

var (
	listen    = flag.String("listen", "", "UDP address to listen on, e.g. 127.0.0.1:9000")
	pcapFile  = flag.String("pcap", "", "pcap capture to decode")
	port      = flag.Int("port", 9000, "UDP destination port to select from the pcap capture (0 = any)")
	slipFile  = flag.String("slip", "", "raw serial capture of SLIP-framed OSC to decode")
	addrMatch = flag.String("address", "", "only print messages whose address has this prefix")
)

func main() {
	flag.Parse()

	var err error
	switch {
	case *pcapFile != "":
		err = dumpPCAPFile(*pcapFile, *port, os.Stdout)
	case *slipFile != "":
		var data []byte
		data, err = os.ReadFile(*slipFile)
		if err == nil {
			_, err = dumpSLIP(data, os.Stdout)
		}
	case *listen != "":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = dumpUDP(ctx, *listen, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// formatPacket renders one packet as text lines; bundles are flattened.
func formatPacket(pkt goosc.Packet) []string {
	switch p := pkt.(type) {
	case *goosc.Message:
		if *addrMatch != "" && !strings.HasPrefix(p.Address, *addrMatch) {
			return nil
		}
		return []string{p.String()}
	case *goosc.Bundle:
		var lines []string
		for _, m := range p.Messages {
			lines = append(lines, formatPacket(m)...)
		}
		for _, b := range p.Bundles {
			lines = append(lines, formatPacket(b)...)
		}
		return lines
	default:
		return nil
	}
}

func writePayload(w io.Writer, prefix string, payload []byte) bool {
	pkt, err := osc.Decode(payload)
	if err != nil {
		fmt.Fprintf(w, "%s undecodable (%d bytes): %v\n", prefix, len(payload), err)
		return false
	}
	for _, line := range formatPacket(pkt) {
		fmt.Fprintf(w, "%s %s\n", prefix, line)
	}
	return true
}

func dumpPCAPFile(path string, udpPort int, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	defer f.Close()
	n, err := dumpPCAP(f, udpPort, w)
	if err != nil {
		return err
	}
	log.Printf("decoded %d OSC packets from %s", n, path)
	return nil
}

// dumpPCAP decodes the UDP payloads addressed to udpPort in a pcap stream.
func dumpPCAP(r io.Reader, udpPort int, w io.Writer) (int, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read pcap header: %w", err)
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())

	decoded := 0
	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if udpPort != 0 && int(udp.DstPort) != udpPort {
			continue
		}
		ts := packet.Metadata().Timestamp.Format(time.RFC3339Nano)
		if writePayload(w, ts, udp.Payload) {
			decoded++
		}
	}
	return decoded, nil
}

// dumpSLIP decodes every SLIP frame in a serial capture.
func dumpSLIP(data []byte, w io.Writer) (int, error) {
	packets, rest, err := osc.SLIPDecode(data)
	decoded := 0
	for i, p := range packets {
		if writePayload(w, fmt.Sprintf("#%d", i), p) {
			decoded++
		}
	}
	if err != nil {
		return decoded, fmt.Errorf("failed to decode SLIP stream: %w", err)
	}
	if len(rest) > 0 {
		log.Printf("ignoring %d trailing bytes without frame end", len(rest))
	}
	return decoded, nil
}

func dumpUDP(ctx context.Context, addr string, w io.Writer) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		pc.Close()
	}()
	log.Printf("listening for OSC on udp://%s", pc.LocalAddr())

	buf := make([]byte, 65535)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read: %w", err)
		}
		writePayload(w, time.Now().Format(time.RFC3339Nano)+" "+from.String(), buf[:n])
	}
}
