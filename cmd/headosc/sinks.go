package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/osc"
)

// sinkManager owns the emission sinks. The UDP destination follows the
// live config: a changed osc host or port is re-dialled and swapped in
// between ticks.
type sinkManager struct {
	ctx context.Context

	mu     sync.Mutex
	udp    *osc.UDPSink
	serial *osc.SerialSink
	udpSw  *osc.SwitchSink
}

func newSinkManager(ctx context.Context, cfg config.TrackerConfig, serialDevice string) (*sinkManager, error) {
	m := &sinkManager{ctx: ctx, udpSw: osc.NewSwitchSink(osc.Discard)}
	if err := m.dial(cfg.OSC.Addr()); err != nil {
		return nil, err
	}

	if serialDevice == "" {
		serialDevice = cfg.Serial.Device
	}
	if serialDevice != "" {
		opts := osc.PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		s, err := osc.NewSerialSink(serialDevice, opts, nil, 0)
		if err != nil {
			m.Close()
			return nil, err
		}
		s.Start(ctx)
		m.serial = s
	}
	return m, nil
}

func (m *sinkManager) dial(addr string) error {
	udp, err := osc.NewUDPSink(addr, 64, 10*time.Second)
	if err != nil {
		return err
	}
	udp.Start(m.ctx)

	m.mu.Lock()
	old := m.udp
	m.udp = udp
	m.mu.Unlock()

	m.udpSw.Swap(udp)
	if old != nil {
		old.Close()
	}
	return nil
}

// Sink returns the sink the pipeline emits to.
func (m *sinkManager) Sink() osc.Sink {
	if m.serial != nil {
		return osc.MultiSink{m.udpSw, m.serial}
	}
	return m.udpSw
}

// OnConfigChange re-dials the UDP destination when it changed.
func (m *sinkManager) OnConfigChange(old, updated config.TrackerConfig) {
	if old.OSC == updated.OSC {
		return
	}
	if err := m.dial(updated.OSC.Addr()); err != nil {
		log.Printf("keeping OSC destination %s: %v", old.OSC.Addr(), err)
	}
}

// Stats exposes per-sink counters for the status route.
func (m *sinkManager) Stats() interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]interface{}{}
	if m.udp != nil {
		out["udp://"+m.udp.Addr()] = m.udp.Stats()
	}
	if m.serial != nil {
		out["serial"] = m.serial.Stats()
	}
	return out
}

func (m *sinkManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.udp != nil {
		m.udp.Close()
	}
	if m.serial != nil {
		m.serial.Close()
	}
}
