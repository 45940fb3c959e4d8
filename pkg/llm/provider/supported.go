package provider

import (
	"fmt"

	"github.com/spoolworks/spool/pkg/llm/provider/anthropic"
	"github.com/spoolworks/spool/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI}
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string) (Provider, error) {
	switch providerType {
	case Anthropic:
		return anthropic.New(), nil
	case OpenAI:
		return openai.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
