package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIModel      = "text-embedding-3-small"
	DefaultOpenAIDimensions = 300
)

/*
OpenAIProvider embeds text with the OpenAI embeddings API. The API key is
read from OPENAI_API_KEY unless an option supplies one.
*/
type OpenAIProvider struct {
	client     openai.Client
	options    []option.RequestOption
	model      string
	dimensions int
}

type OpenAIProviderOption func(*OpenAIProvider)

func NewOpenAIProvider(options ...OpenAIProviderOption) *OpenAIProvider {
	prvdr := &OpenAIProvider{
		model:      DefaultOpenAIModel,
		dimensions: DefaultOpenAIDimensions,
	}

	for _, option := range options {
		option(prvdr)
	}

	prvdr.client = openai.NewClient(prvdr.options...)
	return prvdr
}

func (prvdr *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, prvdr.dimensions), nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(prvdr.model),
	}

	if prvdr.dimensions > 0 {
		params.Dimensions = openai.Int(int64(prvdr.dimensions))
	}

	response, err := prvdr.client.Embeddings.New(ctx, params)

	if err != nil {
		return nil, err
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("embedding: no vectors returned by %s", prvdr.model)
	}

	vec := make([]float32, len(response.Data[0].Embedding))

	for i, v := range response.Data[0].Embedding {
		vec[i] = float32(v)
	}

	return vec, nil
}

func WithOpenAIModel(model string) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		if model != "" {
			prvdr.model = model
		}
	}
}

func WithOpenAIDimensions(dimensions int) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		if dimensions > 0 {
			prvdr.dimensions = dimensions
		}
	}
}

/*
WithOpenAIRequestOptions passes options such as a base URL or API key
through to the client.
*/
func WithOpenAIRequestOptions(options ...option.RequestOption) OpenAIProviderOption {
	return func(prvdr *OpenAIProvider) {
		prvdr.options = append(prvdr.options, options...)
	}
}
