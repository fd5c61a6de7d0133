package gateway

import (
	"context"
	"encoding/json"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"signal-monitor/internal/model"
	redisstore "signal-monitor/internal/store/redis"
)

// Relay feeds signals published on Redis into the hub, so clients of every
// API instance see signals detected by any of them.
type Relay struct {
	rdb *goredis.Client
	hub *Hub
}

// NewRelay creates a relay from rdb to hub.
func NewRelay(rdb *goredis.Client, hub *Hub) *Relay {
	return &Relay{rdb: rdb, hub: hub}
}

// Pattern is the PSUBSCRIBE pattern covering every indicator channel.
func Pattern() string {
	return redisstore.SignalChannel("*")
}

// Run subscribes to the signal channels and relays messages until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, Pattern())
	defer pubsub.Close()

	log.Printf("[gateway] relaying %s", Pattern())

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	var rec model.SignalRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		log.Printf("[gateway] drop malformed signal payload: %v", err)
		return
	}
	r.hub.Broadcast(rec.Symbol, rec.Indicator, []byte(payload))
}
