package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster handles broadcasting events to all connected clients
type Broadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all connected clients. A client whose send
// queue is full has the frame dropped instead of stalling the fan-out.
func (b *Broadcaster) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Seq:       b.nextSeq(),
		Timestamp: time.Now().UnixMilli(),
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", event).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetAll()
	if len(clients) == 0 {
		return
	}

	delivered := 0
	dropped := 0

	for _, client := range clients {
		if client.enqueue(frame) {
			delivered++
		} else {
			dropped++
			b.logger.Warn().
				Str("clientId", client.ID).
				Str("event", event).
				Int64("seq", msg.Seq).
				Msg("Client send queue full, dropping event")
		}
	}

	b.logger.Debug().
		Str("event", event).
		Int64("seq", msg.Seq).
		Int("delivered", delivered).
		Int("dropped", dropped).
		Msg("Event broadcast complete")
}

func (b *Broadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
