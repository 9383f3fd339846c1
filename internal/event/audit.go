package event

import (
	"context"
	"log/slog"
)

// AuditLogger writes every session event to the structured log until ctx is done.
type AuditLogger struct {
	bus    Bus
	logger *slog.Logger
}

func NewAuditLogger(bus Bus, logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{bus: bus, logger: logger.With("component", "audit")}
}

// Start subscribes before it returns, so no event published afterwards is missed, then logs
// in a goroutine. The returned channel closes once the logger has stopped.
func (a *AuditLogger) Start(ctx context.Context) <-chan struct{} {
	events, unsubscribe := a.bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer unsubscribe()
		a.consume(ctx, events)
	}()

	return done
}

func (a *AuditLogger) Run(ctx context.Context) {
	events, unsubscribe := a.bus.Subscribe()
	defer unsubscribe()

	a.consume(ctx, events)
}

func (a *AuditLogger) consume(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log(ctx, e)
		}
	}
}

func (a *AuditLogger) log(ctx context.Context, e Event) {
	attrs := []any{"event_id", e.ID, "type", string(e.Type)}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	for key, value := range e.Payload {
		attrs = append(attrs, key, value)
	}

	level := slog.LevelInfo
	switch e.Type {
	case TypeSessionReuseDetected:
		level = slog.LevelWarn
	case TypeAccessRotated:
		level = slog.LevelDebug
	}

	a.logger.Log(ctx, level, "auth event", attrs...)
}
