// Package osc emits adjusted feature points as Open Sound Control
// messages. Emission is fire-and-forget: sinks never block the caller and
// never retry, since every tick's value supersedes the last.
package osc

import (
	"fmt"
	"sync/atomic"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/banshee-data/headosc/internal/transform"
)

// Sink accepts one message for a single unacknowledged transmission.
// Send must not block.
type Sink interface {
	Send(msg *goosc.Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg *goosc.Message)

// Send implements Sink.
func (f SinkFunc) Send(msg *goosc.Message) { f(msg) }

// Emitter tags adjusted points with a fixed address and hands them to a
// sink.
type Emitter struct {
	address string
	sink    Sink
}

// NewEmitter returns an Emitter that sends to sink under address.
func NewEmitter(address string, sink Sink) *Emitter {
	return &Emitter{address: address, sink: sink}
}

// Address returns the address tag of emitted messages.
func (e *Emitter) Address() string { return e.address }

// Emit sends exactly one message carrying [x, y, z] as float32 arguments.
func (e *Emitter) Emit(p transform.Point) {
	e.sink.Send(NewPointMessage(e.address, p))
}

// NewPointMessage builds the message for p.
func NewPointMessage(address string, p transform.Point) *goosc.Message {
	return goosc.NewMessage(address, float32(p.X), float32(p.Y), float32(p.Z))
}

// Encode serialises msg into an OSC packet.
func Encode(msg *goosc.Message) ([]byte, error) {
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode OSC message %s: %w", msg.Address, err)
	}
	return data, nil
}

// Decode parses a single OSC packet, message or bundle.
func Decode(data []byte) (goosc.Packet, error) {
	pkt, err := goosc.ParsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode OSC packet: %w", err)
	}
	return pkt, nil
}

// PointFromMessage extracts the [x, y, z] triple of a point message.
func PointFromMessage(msg *goosc.Message) (transform.Point, error) {
	if len(msg.Arguments) != 3 {
		return transform.Point{}, fmt.Errorf("message %s has %d arguments, want 3", msg.Address, len(msg.Arguments))
	}
	var v [3]float64
	for i, arg := range msg.Arguments {
		switch a := arg.(type) {
		case float32:
			v[i] = float64(a)
		case float64:
			v[i] = a
		case int32:
			v[i] = float64(a)
		default:
			return transform.Point{}, fmt.Errorf("message %s argument %d has type %T", msg.Address, i, arg)
		}
	}
	return transform.Point{X: v[0], Y: v[1], Z: v[2]}, nil
}

// MultiSink fans each message out to every sink in order.
type MultiSink []Sink

// Send implements Sink.
func (m MultiSink) Send(msg *goosc.Message) {
	for _, s := range m {
		s.Send(msg)
	}
}

// Discard drops every message.
var Discard Sink = SinkFunc(func(*goosc.Message) {})

// SwitchSink forwards to a sink that can be swapped while messages are in
// flight, for example when the destination changes on a config reload.
type SwitchSink struct {
	cur atomic.Pointer[Sink]
}

// NewSwitchSink returns a SwitchSink forwarding to s.
func NewSwitchSink(s Sink) *SwitchSink {
	sw := &SwitchSink{}
	sw.Swap(s)
	return sw
}

// Swap installs s and returns the previous sink.
func (sw *SwitchSink) Swap(s Sink) Sink {
	if s == nil {
		s = Discard
	}
	old := sw.cur.Swap(&s)
	if old == nil {
		return nil
	}
	return *old
}

// Send implements Sink.
func (sw *SwitchSink) Send(msg *goosc.Message) {
	(*sw.cur.Load()).Send(msg)
}
