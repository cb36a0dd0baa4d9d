package cache

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubscribeFlush empties c whenever a message arrives on subj. The ingestion
// job publishes there after a load so stale lookups are not served.
func SubscribeFlush(nc *nats.Conn, subj string, c Cache, log *zap.Logger) (*nats.Subscription, error) {
	return nc.Subscribe(subj, func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Flush(ctx); err != nil {
			log.Warn("cache flush failed", zap.String("subject", m.Subject), zap.Error(err))
			return
		}
		log.Info("cache flushed", zap.String("subject", m.Subject))
	})
}
