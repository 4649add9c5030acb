package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/videocampaign/internal/pkg/logger"
)

// Chain tries each generator in order and returns the first success.
type Chain struct {
	generators []TextGenerator
}

// NewChain builds a chain over the non-nil generators.
func NewChain(generators ...TextGenerator) *Chain {
	c := &Chain{}
	for _, g := range generators {
		if g != nil {
			c.generators = append(c.generators, g)
		}
	}
	return c
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int { return len(c.generators) }

// GenerateText returns the first successful provider answer. When every
// provider fails the errors are joined. A canceled context stops the chain.
func (c *Chain) GenerateText(ctx context.Context, prompt string, mode ResponseMode) (string, error) {
	if len(c.generators) == 0 {
		return "", ErrNoProvider
	}
	var errs []error
	for _, g := range c.generators {
		text, err := g.GenerateText(ctx, prompt, mode)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		logger.Warn("ai provider failed, trying next", "provider", nameOf(g), "mode", mode.String(), "error", err)
	}
	return "", fmt.Errorf("ai: all providers failed: %w", errors.Join(errs...))
}

func nameOf(g TextGenerator) string {
	if n, ok := g.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", g)
}
