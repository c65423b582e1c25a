package network

import (
	"sync/atomic"
)

// MetricPool counts frame traffic across all identities. Dropped lumps every
// decode failure together, the split between integrity, replay and framing
// errors is deliberately not surfaced anywhere.
type MetricPool struct {
	GameSent        uint32 `json:"game-sent"`
	ChatSent        uint32 `json:"chat-sent"`
	ControlSent     uint32 `json:"control-sent"`
	GameReceived    uint32 `json:"game-received"`
	ChatReceived    uint32 `json:"chat-received"`
	ControlReceived uint32 `json:"control-received"`
	Dropped         uint32 `json:"dropped"`
	Reattaches      uint32 `json:"reattaches"`
}

var metrics MetricPool

func (mp *MetricPool) sent(typ byte) {
	switch typ {
	case FrameTypeGame:
		atomic.AddUint32(&mp.GameSent, 1)
	case FrameTypeChat:
		atomic.AddUint32(&mp.ChatSent, 1)
	case FrameTypeControl:
		atomic.AddUint32(&mp.ControlSent, 1)
	}
}

func (mp *MetricPool) received(typ byte) {
	switch typ {
	case FrameTypeGame:
		atomic.AddUint32(&mp.GameReceived, 1)
	case FrameTypeChat:
		atomic.AddUint32(&mp.ChatReceived, 1)
	case FrameTypeControl:
		atomic.AddUint32(&mp.ControlReceived, 1)
	}
}

func (mp *MetricPool) dropped() {
	atomic.AddUint32(&mp.Dropped, 1)
}

func (mp *MetricPool) reattached() {
	atomic.AddUint32(&mp.Reattaches, 1)
}

// Metrics returns a copy of the counters for the operator endpoint.
func Metrics() MetricPool {
	return MetricPool{
		GameSent:        atomic.LoadUint32(&metrics.GameSent),
		ChatSent:        atomic.LoadUint32(&metrics.ChatSent),
		ControlSent:     atomic.LoadUint32(&metrics.ControlSent),
		GameReceived:    atomic.LoadUint32(&metrics.GameReceived),
		ChatReceived:    atomic.LoadUint32(&metrics.ChatReceived),
		ControlReceived: atomic.LoadUint32(&metrics.ControlReceived),
		Dropped:         atomic.LoadUint32(&metrics.Dropped),
		Reattaches:      atomic.LoadUint32(&metrics.Reattaches),
	}
}
