package osc

import (
	"bytes"
	"errors"
)

// SLIP framing (RFC 1055) with the double-END convention of OSC 1.1
// serial transports.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// ErrBadEscape reports an escape byte followed by an invalid code.
var ErrBadEscape = errors.New("slip: invalid escape sequence")

// SLIPEncode frames packet between END bytes, escaping END and ESC.
func SLIPEncode(packet []byte) []byte {
	out := make([]byte, 0, len(packet)+4)
	out = append(out, slipEnd)
	for _, b := range packet {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// SLIPDecode splits a byte stream into packets. Empty frames between
// consecutive END bytes are skipped; trailing bytes without a closing END
// are returned as rest.
func SLIPDecode(stream []byte) (packets [][]byte, rest []byte, err error) {
	for {
		i := bytes.IndexByte(stream, slipEnd)
		if i < 0 {
			return packets, stream, nil
		}
		frame := stream[:i]
		stream = stream[i+1:]
		if len(frame) == 0 {
			continue
		}
		pkt, err := slipUnescape(frame)
		if err != nil {
			return packets, stream, err
		}
		packets = append(packets, pkt)
	}
}

func slipUnescape(frame []byte) ([]byte, error) {
	out := make([]byte, 0, len(frame))
	for i := 0; i < len(frame); i++ {
		b := frame[i]
		if b != slipEsc {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(frame) {
			return nil, ErrBadEscape
		}
		switch frame[i] {
		case slipEscEnd:
			out = append(out, slipEnd)
		case slipEscEsc:
			out = append(out, slipEsc)
		default:
			return nil, ErrBadEscape
		}
	}
	return out, nil
}
