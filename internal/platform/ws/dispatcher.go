package ws

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrDisconnect tells the dispatcher the client must be dropped after
// the processor already sent its own goodbye.
var ErrDisconnect = errors.New("ws: disconnect client")

// Inbound is one message read off a client connection, queued for
// processing.
type Inbound struct {
	Client *Client
	Msg    Message
}

// Processor applies one inbound message to the domain state. A
// returned error is reported to the sender as a typed error message;
// ErrDisconnect (possibly wrapped) additionally drops the client.
type Processor interface {
	Process(ctx context.Context, in Inbound) error
}

// Dispatcher serializes message processing through a single consumer
// goroutine, so domain state behind it needs no locking of its own.
type Dispatcher struct {
	queue   chan Inbound
	proc    Processor
	hub     *Hub
	errType int
	logger  zerolog.Logger
}

// NewDispatcher wires a processor to a hub. errType is the hub's
// numeric error message type, used when processing fails.
func NewDispatcher(hub *Hub, proc Processor, errType int, queueSize int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		queue:   make(chan Inbound, queueSize),
		proc:    proc,
		hub:     hub,
		errType: errType,
		logger:  logger.With().Str("component", "ws_dispatcher").Logger(),
	}
}

// Enqueue queues an inbound message. It reports false when the queue
// is full, in which case the caller should drop the message.
func (d *Dispatcher) Enqueue(in Inbound) bool {
	select {
	case d.queue <- in:
		return true
	default:
		d.logger.Warn().
			Int64("clinic_id", in.Client.ClinicID).
			Int("message_type", in.Msg.Type).
			Msg("dispatch queue full, message dropped")
		return false
	}
}

// Run consumes the queue until the context is canceled. Processing
// errors are pushed back to the sender as typed error messages and the
// loop keeps going.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-d.queue:
			if err := d.proc.Process(ctx, in); err != nil {
				d.logger.Warn().
					Err(err).
					Int64("clinic_id", in.Client.ClinicID).
					Int("message_type", in.Msg.Type).
					Msg("message processing failed")
				if errors.Is(err, ErrDisconnect) {
					d.hub.Unregister(in.Client)
					continue
				}
				msg, merr := NewMessage(d.errType, in.Client.ClinicID, ErrorData{Error: err.Error()})
				if merr != nil {
					continue
				}
				in.Client.Push(msg)
			}
		}
	}
}
