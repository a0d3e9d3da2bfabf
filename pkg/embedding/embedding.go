package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
Provider turns text into a fixed-length vector.
*/
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

/*
Config selects and parameterizes a Provider.
*/
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	OllamaHost string
}

/*
New builds the provider named by config. An empty provider name means
similarity support runs on the deterministic mock.
*/
func New(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(
			WithOpenAIModel(config.Model),
			WithOpenAIDimensions(config.Dimensions),
		), nil
	case "ollama":
		return NewOllamaProvider(
			WithOllamaHost(config.OllamaHost),
			WithOllamaModel(config.Model),
		)
	case "", "mock":
		return NewMockProvider(config.Dimensions), nil
	}

	return nil, fmt.Errorf("embedding: unknown provider %q", config.Provider)
}

/*
VersioningText joins the descriptive fields that decide whether two cards
are versions of the same model. Blank fields are skipped.
*/
func VersioningText(card *types.ModelCard) string {
	if card == nil {
		return ""
	}

	fields := []string{
		card.Author,
		card.ShortDescription,
		card.FullDescription,
		card.Version,
		card.InputType,
		card.Keywords,
		card.Category,
		card.InputData,
	}

	parts := make([]string, 0, len(fields))

	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			parts = append(parts, field)
		}
	}

	return strings.Join(parts, " ")
}
