package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnconfigured is returned by a collaborator that was never given usable
// credentials or settings.
var ErrUnconfigured = errors.New("llm collaborator not configured")

// Unconfigured stands in for a provider whose settings are incomplete. It lets
// the process start and fails every call with ErrUnconfigured, so stages
// degrade instead of talking to a provider with placeholder credentials.
type Unconfigured struct {
	Provider string
	Reason   string
}

func (u *Unconfigured) Generate(ctx context.Context, prompt string) (string, error) {
	return "", u.err()
}

func (u *Unconfigured) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, u.err()
}

func (u *Unconfigured) err() error {
	return fmt.Errorf("%w: provider %q: %s", ErrUnconfigured, u.Provider, u.Reason)
}
