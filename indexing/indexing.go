// Package indexing tells search engines and downstream consumers that a
// public article URL changed. Notifications are best effort: callers hand
// them to a Dispatcher and never wait for the outcome.
package indexing

import (
	"context"
	"errors"
)

// Kind is the change being announced.
type Kind string

const (
	URLUpdated Kind = "URL_UPDATED"
	URLDeleted Kind = "URL_DELETED"
)

// Notifier announces a single URL change.
type Notifier interface {
	Notify(ctx context.Context, url string, kind Kind) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, url string, kind Kind) error

func (f NotifierFunc) Notify(ctx context.Context, url string, kind Kind) error {
	return f(ctx, url, kind)
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, url string, kind Kind) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, url, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards notifications. It is used when no backend is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, Kind) error { return nil }
