package notify

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"video_tracker/internal/metrics"
)

// Sender delivers one message to a channel-specific target.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, subject, body string) error

func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Dispatcher routes messages to the sender registered for the subscriber's
// address kind.
type Dispatcher struct {
	senders map[Kind]Sender
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewDispatcher creates a Dispatcher. ratePerSecond <= 0 disables rate limiting.
func NewDispatcher(ratePerSecond float64, log *slog.Logger) *Dispatcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Dispatcher{
		senders: make(map[Kind]Sender),
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Register sets the sender for a kind. Call before the first Send.
func (d *Dispatcher) Register(kind Kind, s Sender) {
	d.senders[kind] = s
}

// Has reports whether a sender is registered for kind.
func (d *Dispatcher) Has(kind Kind) bool {
	_, ok := d.senders[kind]
	return ok
}

// Send delivers a message and reports whether it succeeded. Failures,
// including sender panics, are logged and never propagated.
func (d *Dispatcher) Send(ctx context.Context, subscriber, subject, body string) (ok bool) {
	addr, err := ParseAddress(subscriber)
	if err != nil {
		d.log.Error("dispatch rejected", "subscriber", subscriber, "error", err)
		metrics.RecordNotification("invalid", false)
		return false
	}
	channel := string(addr.Kind)

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("sender panicked", "subscriber", subscriber, "channel", channel, "panic", r)
			ok = false
		}
		metrics.RecordNotification(channel, ok)
	}()

	sender, found := d.senders[addr.Kind]
	if !found {
		d.log.Warn("no sender configured", "subscriber", subscriber, "channel", channel)
		return false
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.log.Error("dispatch rate limit wait", "subscriber", subscriber, "error", err)
		return false
	}

	if err := sender.Send(ctx, addr.Target, subject, body); err != nil {
		d.log.Error("dispatch failed", "subscriber", subscriber, "channel", channel, "error", err)
		return false
	}

	d.log.Info("notification sent", "subscriber", subscriber, "channel", channel)
	return true
}
