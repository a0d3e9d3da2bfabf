package embedding

import (
	"context"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mcgraph/pkg/types"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64

	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestVersioningText(t *testing.T) {
	card := &types.ModelCard{
		Name:             "resnet18",
		Author:           "alice",
		Version:          "1.0",
		ShortDescription: " image classifier ",
		InputType:        "images",
		Category:         "classification",
		InputData:        "https://data/x",
	}

	assert.Equal(t, "alice image classifier 1.0 images classification https://data/x", VersioningText(card))
	assert.Equal(t, "", VersioningText(nil))
}

func TestMockProvider(t *testing.T) {
	Convey("Given a mock provider", t, func() {
		prvdr := NewMockProvider(64)
		ctx := context.Background()

		Convey("It should be deterministic", func() {
			a, err := prvdr.Embed(ctx, "resnet image classifier")
			So(err, ShouldBeNil)
			b, err := prvdr.Embed(ctx, "resnet image classifier")
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
			So(a, ShouldHaveLength, 64)
			So(cosine(a, b), ShouldAlmostEqual, 1.0, 1e-6)
		})

		Convey("It should rank shared vocabulary above disjoint text", func() {
			base, _ := prvdr.Embed(ctx, "alice resnet image classifier images classification")
			near, _ := prvdr.Embed(ctx, "alice resnet image classifier images classification v2")
			far, _ := prvdr.Embed(ctx, "weather forecasting transformer")

			So(cosine(base, near), ShouldBeGreaterThan, cosine(base, far))
		})

		Convey("It should return a zero vector for blank text", func() {
			vec, err := prvdr.Embed(ctx, "   ")
			So(err, ShouldBeNil)
			So(vec, ShouldHaveLength, 64)
			So(vec[0], ShouldEqual, float32(0))
		})
	})
}

func TestNew(t *testing.T) {
	prvdr, err := New(Config{Provider: "mock", Dimensions: 8})
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, prvdr)

	prvdr, err = New(Config{Provider: "OpenAI"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, prvdr)

	prvdr, err = New(Config{Provider: "ollama", OllamaHost: "http://localhost:11434"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, prvdr)

	_, err = New(Config{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestOpenAIOptions(t *testing.T) {
	prvdr := NewOpenAIProvider(WithOpenAIModel(""), WithOpenAIDimensions(0))
	assert.Equal(t, DefaultOpenAIModel, prvdr.model)
	assert.Equal(t, DefaultOpenAIDimensions, prvdr.dimensions)

	prvdr = NewOpenAIProvider(WithOpenAIModel("text-embedding-3-large"), WithOpenAIDimensions(1024))
	assert.Equal(t, "text-embedding-3-large", prvdr.model)
	assert.Equal(t, 1024, prvdr.dimensions)

	vec, err := prvdr.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 1024)
}
