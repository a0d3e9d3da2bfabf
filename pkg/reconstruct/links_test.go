package reconstruct

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/theapemachine/mcgraph/pkg/types"
)

func TestLinkHeaders(t *testing.T) {
	tests := []struct {
		name     string
		doc      types.Document
		contains []string
		excludes []string
	}{
		{
			name: "only absolute urls become items",
			doc: types.Document{
				"external_id": "mc-1",
				"author":      "alice",
				"input_data":  "https://example.org/data",
				"ai_model": map[string]any{
					"location":         "not-a-url",
					"inference_labels": []string{"cat", "dog"},
				},
			},
			contains: []string{
				`<mc-1>; rel="cite-as"`,
				`<http://tapis.com/alice>; rel="author"`,
				`<https://example.org/data>; rel="item"; title="input_data"`,
			},
			excludes: []string{"model_location", "inference_labels"},
		},
		{
			name: "url author is linked directly",
			doc: types.Document{
				"external_id": "mc-2",
				"author":      "https://orcid.org/0000-0001",
				"ai_model": types.Document{
					"location":         "http://models/m.pt",
					"inference_labels": "https://labels/imagenet.txt",
				},
			},
			contains: []string{
				`<https://orcid.org/0000-0001>; rel="author"`,
				`<http://models/m.pt>; rel="item"; title="model_location"`,
				`<https://labels/imagenet.txt>; rel="item"; title="inference_labels"`,
			},
			excludes: []string{"tapis.com", "input_data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := LinkHeaders(tt.doc, "http://tapis.com/")

			assert.Equal(t, "0", headers["Content-Length"])

			for _, want := range tt.contains {
				assert.Equal(t, 1, strings.Count(headers["Link"], want), want)
			}

			for _, unwanted := range tt.excludes {
				assert.NotContains(t, headers["Link"], unwanted)
			}
		})
	}
}

func TestLinkHeadersEmptyDocument(t *testing.T) {
	headers := LinkHeaders(types.Document{}, "http://tapis.com/")

	assert.Equal(t, map[string]string{"Content-Length": "0"}, headers)
}

func TestEngineLinkHeadersUsesConfiguredBase(t *testing.T) {
	engine := NewEngine(nil, WithConfig(Config{AuthorBaseURL: "https://people.example/"}))

	headers := engine.LinkHeaders(types.Document{"author": "bob"})

	assert.Equal(t, `<https://people.example/bob>; rel="author"`, headers["Link"])
}
