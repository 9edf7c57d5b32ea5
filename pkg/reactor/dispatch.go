package reactor

import (
	"slabq/pkg/metrics"
	"slabq/pkg/mqueue"
	"slabq/pkg/protocol"
)

// Dispatcher maps parsed protocol.Commands onto the storage engine and
// formats the wire response. It knows nothing about connections or
// sockets.
type Dispatcher struct {
	engine *mqueue.Engine
}

// NewDispatcher wraps the given storage engine.
func NewDispatcher(engine *mqueue.Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Execute runs cmd against the engine and returns the wire response bytes.
// For RPush/LPush, payload must already hold exactly cmd.PayLen bytes
// (the caller has finished streaming big-data mode).
func (d *Dispatcher) Execute(cmd protocol.Command, payload []byte) []byte {
	switch cmd.Verb {
	case protocol.RPush:
		if err := d.engine.RPush(cmd.Name, payload); err != nil {
			metrics.PushFailuresTotal.WithLabelValues("right").Inc()
			return protocol.RespFail
		}
		metrics.PushesTotal.WithLabelValues("right").Inc()
		return protocol.RespOK

	case protocol.LPush:
		if err := d.engine.LPush(cmd.Name, payload); err != nil {
			metrics.PushFailuresTotal.WithLabelValues("left").Inc()
			return protocol.RespFail
		}
		metrics.PushesTotal.WithLabelValues("left").Inc()
		return protocol.RespOK

	case protocol.RPop:
		v, ok := d.engine.RPop(cmd.Name)
		if !ok {
			metrics.PopsTotal.WithLabelValues("right", "empty").Inc()
			return protocol.RespEmpty
		}
		metrics.PopsTotal.WithLabelValues("right", "hit").Inc()
		return protocol.EncodePayload(v)

	case protocol.LPop:
		v, ok := d.engine.LPop(cmd.Name)
		if !ok {
			metrics.PopsTotal.WithLabelValues("left", "empty").Inc()
			return protocol.RespEmpty
		}
		metrics.PopsTotal.WithLabelValues("left", "hit").Inc()
		return protocol.EncodePayload(v)

	case protocol.Count:
		return protocol.EncodeCount(d.engine.Count(cmd.Name))

	default:
		return protocol.RespFail
	}
}
