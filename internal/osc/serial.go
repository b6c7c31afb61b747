package osc

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	goosc "github.com/hypebeast/go-osc/osc"
	"go.bug.st/serial"
)

// PortOptions describes the serial line parameters.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial opens a
// port with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// PortOpener opens the device for writing.
type PortOpener func(device string, mode *serial.Mode) (io.WriteCloser, error)

// OpenSerialPort is the PortOpener backed by a real serial port.
func OpenSerialPort(device string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(device, mode)
}

// SerialSink writes SLIP-framed OSC packets to a serial line from a
// single goroutine. A full buffer drops the message.
type SerialSink struct {
	device    string
	port      io.WriteCloser
	channel   chan []byte
	counters  sinkCounters
	closeOnce sync.Once
	done      chan struct{}
}

// NewSerialSink opens device with opts. A nil open uses OpenSerialPort.
func NewSerialSink(device string, opts PortOptions, open PortOpener, buffer int) (*SerialSink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("invalid serial options for %s: %w", device, err)
	}
	if open == nil {
		open = OpenSerialPort
	}
	port, err := open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &SerialSink{
		device:  device,
		port:    port,
		channel: make(chan []byte, buffer),
		done:    make(chan struct{}),
	}, nil
}

// Start runs the writer goroutine until ctx is cancelled or the sink is
// closed.
func (s *SerialSink) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case frame := <-s.channel:
				if _, err := s.port.Write(frame); err != nil {
					if s.counters.errors.Add(1) == 1 {
						log.Printf("osc: serial write to %s failed: %v", s.device, err)
					}
					continue
				}
				s.counters.sent.Add(1)
			}
		}
	}()
	log.Printf("osc: sending to serial %s", s.device)
}

// Send implements Sink.
func (s *SerialSink) Send(msg *goosc.Message) {
	data, err := Encode(msg)
	if err != nil {
		s.counters.errors.Add(1)
		return
	}
	select {
	case s.channel <- SLIPEncode(data):
	default:
		s.counters.dropped.Add(1)
	}
}

// Stats returns the sink counters.
func (s *SerialSink) Stats() SinkStats { return s.counters.snapshot() }

// Close stops the writer and closes the port.
func (s *SerialSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}
