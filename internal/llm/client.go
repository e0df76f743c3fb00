package llm

import "context"

// Client is the minimal generation contract every provider satisfies.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
