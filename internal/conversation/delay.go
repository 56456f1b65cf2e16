package conversation

import (
	"context"
	"math/rand/v2"
	"time"
	"unicode/utf8"
)

// Delayer pauses before a reply is sent, imitating typing.
type Delayer interface {
	Wait(ctx context.Context, text string) error
}

// NoDelay replies immediately.
type NoDelay struct{}

// Wait returns at once.
func (NoDelay) Wait(context.Context, string) error { return nil }

// TypingDelay waits Min plus PerChar for each character, capped at Max,
// with up to Jitter added at random.
type TypingDelay struct {
	Min     time.Duration
	Max     time.Duration
	PerChar time.Duration
	Jitter  time.Duration
}

// Duration returns the pause for text, without jitter.
func (d TypingDelay) Duration(text string) time.Duration {
	wait := d.Min + time.Duration(utf8.RuneCountInString(text))*d.PerChar
	if d.Max > 0 && wait > d.Max {
		wait = d.Max
	}
	return wait
}

// Wait sleeps for the typing duration or until ctx is done.
func (d TypingDelay) Wait(ctx context.Context, text string) error {
	wait := d.Duration(text)
	if d.Jitter > 0 {
		wait += rand.N(d.Jitter)
	}
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
