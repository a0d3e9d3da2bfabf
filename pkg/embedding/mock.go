package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

/*
MockProvider generates deterministic embeddings for tests and offline
runs. Each lower-cased token is hashed into a bucket, so texts sharing
most of their words end up close in cosine distance.
*/
type MockProvider struct {
	dimensions int
}

func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = DefaultOpenAIDimensions
	}

	return &MockProvider{dimensions: dimensions}
}

func (prvdr *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, prvdr.dimensions)
	tokens := strings.Fields(strings.ToLower(text))

	if len(tokens) == 0 {
		return vec, nil
	}

	for _, token := range tokens {
		hash := fnv.New32a()
		_, _ = hash.Write([]byte(token))
		vec[hash.Sum32()%uint32(prvdr.dimensions)]++
	}

	var norm float64

	for _, v := range vec {
		norm += float64(v * v)
	}

	norm = math.Sqrt(norm)

	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec, nil
}
