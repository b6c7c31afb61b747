package osc

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
)

// SinkStats counts what happened to messages handed to a sink.
type SinkStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Errors  uint64 `json:"errors"`
}

type sinkCounters struct {
	sent, dropped, errors atomic.Uint64
}

func (c *sinkCounters) snapshot() SinkStats {
	return SinkStats{
		Sent:    c.sent.Load(),
		Dropped: c.dropped.Load(),
		Errors:  c.errors.Load(),
	}
}

// UDPSink writes messages to a fixed UDP destination from a single
// goroutine. A full buffer drops the message.
type UDPSink struct {
	conn        *net.UDPConn
	channel     chan []byte
	logInterval time.Duration
	address     string
	counters    sinkCounters
	closeOnce   sync.Once
	done        chan struct{}
}

// NewUDPSink resolves addr ("host:port") and connects a UDP socket to it.
func NewUDPSink(addr string, buffer int, logInterval time.Duration) (*UDPSink, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve OSC address %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSC connection: %w", err)
	}
	if buffer <= 0 {
		buffer = 64
	}
	if logInterval <= 0 {
		logInterval = 10 * time.Second
	}
	return &UDPSink{
		conn:        conn,
		channel:     make(chan []byte, buffer),
		logInterval: logInterval,
		address:     addr,
		done:        make(chan struct{}),
	}, nil
}

// Addr returns the destination address.
func (s *UDPSink) Addr() string { return s.address }

// Start runs the writer goroutine until ctx is cancelled or the sink is
// closed. Write errors are counted and logged at most once per interval.
func (s *UDPSink) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastErr error
		ticker := time.NewTicker(s.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case packet := <-s.channel:
				if _, err := s.conn.Write(packet); err != nil {
					s.counters.errors.Add(1)
					failed++
					lastErr = err
					continue
				}
				s.counters.sent.Add(1)
			case <-ticker.C:
				if failed > 0 && lastErr != nil {
					log.Printf("osc: %d messages to %s failed (latest: %v)", failed, s.address, lastErr)
					failed = 0
					lastErr = nil
				}
			}
		}
	}()

	log.Printf("osc: sending to udp://%s", s.address)
}

// Send implements Sink.
func (s *UDPSink) Send(msg *goosc.Message) {
	data, err := Encode(msg)
	if err != nil {
		s.counters.errors.Add(1)
		return
	}
	select {
	case s.channel <- data:
	default:
		s.counters.dropped.Add(1)
	}
}

// Stats returns the sink counters.
func (s *UDPSink) Stats() SinkStats { return s.counters.snapshot() }

// Close stops the writer and closes the socket.
func (s *UDPSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
