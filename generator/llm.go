package generator

import "context"

// LLMClient abstracts the model backend so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings is the provider-neutral client configuration.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
