// Package mail delivers verification emails through an ordered chain of
// senders: SMTP first, then an S3 outbox spool, then (development only) the log.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/apperr"
)

// Message is a rendered email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Sender delivers a single message.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// DefaultTimeout bounds each sender attempt when the chain is built without one.
const DefaultTimeout = 5 * time.Second

// Chain tries each sender in order until one succeeds.
type Chain struct {
	senders []Sender
	timeout time.Duration
	logger  *zap.Logger
}

// NewChain builds a chain. Each attempt runs under its own timeout.
func NewChain(logger *zap.Logger, timeout time.Duration, senders ...Sender) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chain{senders: senders, timeout: timeout, logger: logger}
}

// Name lists the senders in order.
func (c *Chain) Name() string {
	name := "chain("
	for i, s := range c.senders {
		if i > 0 {
			name += ","
		}
		name += s.Name()
	}
	return name + ")"
}

// Send returns apperr.ErrDeliveryFailure when every sender fails.
func (c *Chain) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range c.senders {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := s.Send(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		c.logger.Warn("mail sender failed", zap.String("sender", s.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("%w: no mail sender configured", apperr.ErrDeliveryFailure)
	}
	return fmt.Errorf("%w: %w", apperr.ErrDeliveryFailure, errors.Join(errs...))
}
