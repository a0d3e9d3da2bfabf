package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaModel = "nomic-embed-text"

/*
OllamaProvider embeds text with a local Ollama server.
*/
type OllamaProvider struct {
	client *api.Client
	host   string
	model  string
}

type OllamaProviderOption func(*OllamaProvider)

func NewOllamaProvider(options ...OllamaProviderOption) (*OllamaProvider, error) {
	prvdr := &OllamaProvider{model: DefaultOllamaModel}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.host == "" {
		client, err := api.ClientFromEnvironment()

		if err != nil {
			return nil, err
		}

		prvdr.client = client
		return prvdr, nil
	}

	base, err := url.Parse(prvdr.host)

	if err != nil {
		return nil, fmt.Errorf("embedding: invalid ollama host %q: %w", prvdr.host, err)
	}

	prvdr.client = api.NewClient(base, http.DefaultClient)
	return prvdr, nil
}

func (prvdr *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding: empty input")
	}

	res, err := prvdr.client.Embed(ctx, &api.EmbedRequest{
		Model: prvdr.model,
		Input: text,
	})

	if err != nil {
		return nil, err
	}

	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding: no vectors returned by %s", prvdr.model)
	}

	return res.Embeddings[0], nil
}

func WithOllamaHost(host string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.host = host
	}
}

func WithOllamaModel(model string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		if model != "" {
			prvdr.model = model
		}
	}
}
