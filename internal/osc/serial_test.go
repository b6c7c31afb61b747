package osc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/headosc/internal/transform"
)

type fakePort struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

func TestSLIP_RoundTrip(t *testing.T) {
	packet := []byte{0x01, slipEnd, 0x02, slipEsc, 0x03}
	framed := SLIPEncode(packet)
	assert.Equal(t, []byte{slipEnd, 0x01, slipEsc, slipEscEnd, 0x02, slipEsc, slipEscEsc, 0x03, slipEnd}, framed)

	stream := append(append([]byte{}, framed...), SLIPEncode([]byte("ab"))...)
	stream = append(stream, 0x09)
	packets, rest, err := SLIPDecode(stream)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, packet, packets[0])
	assert.Equal(t, []byte("ab"), packets[1])
	assert.Equal(t, []byte{0x09}, rest)
}

func TestSLIPDecode_BadEscape(t *testing.T) {
	_, _, err := SLIPDecode([]byte{slipEnd, slipEsc, 0x01, slipEnd})
	assert.ErrorIs(t, err, ErrBadEscape)
}

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"even parity word", PortOptions{BaudRate: 9600, Parity: "even"}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "E"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 57600,
		DataBits: 8,
		Parity:   serial.OddParity,
		StopBits: serial.TwoStopBits,
	}, mode)
}

func TestSerialSink_WritesSLIPFrames(t *testing.T) {
	port := &fakePort{}
	var gotDevice string
	open := func(device string, mode *serial.Mode) (io.WriteCloser, error) {
		gotDevice = device
		return port, nil
	}

	sink, err := NewSerialSink("/dev/ttyACM0", PortOptions{}, open, 4)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink.Start(ctx)

	NewEmitter("/head", sink).Emit(transform.Point{X: 1, Y: 2, Z: 3})
	require.Eventually(t, func() bool { return sink.Stats().Sent == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "/dev/ttyACM0", gotDevice)

	packets, _, err := SLIPDecode(port.bytes())
	require.NoError(t, err)
	require.Len(t, packets, 1)
	pkt, err := Decode(packets[0])
	require.NoError(t, err)
	p, err := PointFromMessage(pkt.(*goosc.Message))
	require.NoError(t, err)
	assert.Equal(t, transform.Point{X: 1, Y: 2, Z: 3}, p)

	require.NoError(t, sink.Close())
	assert.True(t, port.closed)
}

func TestNewSerialSink_Errors(t *testing.T) {
	_, err := NewSerialSink("/dev/null", PortOptions{DataBits: 4}, nil, 1)
	assert.Error(t, err)

	failing := func(string, *serial.Mode) (io.WriteCloser, error) {
		return nil, errors.New("no such device")
	}
	_, err = NewSerialSink("/dev/missing", PortOptions{}, failing, 1)
	assert.ErrorContains(t, err, "no such device")
}
