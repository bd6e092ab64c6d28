package gateway

import (
	"context"
	"encoding/json"

	"MProject/logger"
	storage "MProject/service/storage/redis"
)

// Subscriber bridges broker pub/sub into the router. One goroutine, one
// subscription covering every known event channel; payloads are bare JSON
// objects, not wire frames.
type Subscriber struct {
	router *Router
	broker *storage.Manager
}

func NewSubscriber(router *Router, broker *storage.Manager) *Subscriber {
	return &Subscriber{router: router, broker: broker}
}

// Run consumes until ctx is cancelled. Payloads that fail to decode or
// arrive on an unmapped channel are logged and skipped; the loop never
// stops over one bad event.
func (s *Subscriber) Run(ctx context.Context) {
	msgs := s.broker.Subscribe(ctx, Channels()...)
	logger.Infof("[subscriber] listening on %d channels", len(Channels()))

	for msg := range msgs {
		kind, ok := KindForChannel(msg.Channel)
		if !ok {
			logger.Warnf("[subscriber] unmapped channel %s", msg.Channel)
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			logger.Warnf("[subscriber] bad payload on %s: %v", msg.Channel, err)
			continue
		}

		s.router.RouteExternalEvent(ctx, kind, payload)
	}
	logger.Infof("[subscriber] stopped")
}
