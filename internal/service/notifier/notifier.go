package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel deliveries within one broadcast.
const DefaultConcurrency = 8

// Sender delivers a text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, recipient int64, text string) error
}

type subscriberLister interface {
	List(ctx context.Context) ([]int64, error)
}

// BroadcastResult counts the delivery attempts of one broadcast.
type BroadcastResult struct {
	Recipients int
	Delivered  int
	Failed     int
	// Err is set when the subscriber list could not be read.
	Err error
}

type Notifier struct {
	sender      Sender
	subscribers subscriberLister
	concurrency int
}

func New(sender Sender, subscribers subscriberLister, concurrency int) *Notifier {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Notifier{
		sender:      sender,
		subscribers: subscribers,
		concurrency: concurrency,
	}
}

// Message renders the change notification text.
func Message(checkpoint, status string) string {
	return fmt.Sprintf("Traffic change at %s: %s", checkpoint, status)
}

// Notify makes a single delivery attempt to one recipient.
func (n *Notifier) Notify(ctx context.Context, recipient int64, message string) error {
	if err := n.sender.Send(ctx, recipient, message); err != nil {
		return fmt.Errorf("notify %d: %w", recipient, err)
	}
	return nil
}

// Broadcast reads the subscriber list once and delivers the change message
// to every subscriber independently. A failed delivery is logged and does
// not stop the others.
func (n *Notifier) Broadcast(ctx context.Context, checkpoint, status string) BroadcastResult {
	logger := slog.With("checkpoint", checkpoint)

	recipients, err := n.subscribers.List(ctx)
	if err != nil {
		logger.Error("failed to list subscribers", "error", err)
		return BroadcastResult{Err: err}
	}
	if len(recipients) == 0 {
		logger.Info("no subscribers to notify")
		return BroadcastResult{}
	}

	message := Message(checkpoint, status)
	var delivered, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, id := range recipients {
		id := id
		g.Go(func() error {
			if err := n.Notify(ctx, id, message); err != nil {
				failed.Add(1)
				logger.Error("failed to notify subscriber", "recipient", id, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	g.Wait()

	res := BroadcastResult{
		Recipients: len(recipients),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
	}
	if res.Delivered == 0 {
		logger.Warn("all deliveries failed", "recipients", res.Recipients)
	} else {
		logger.Info("broadcast finished",
			"recipients", res.Recipients, "delivered", res.Delivered, "failed", res.Failed)
	}
	return res
}
