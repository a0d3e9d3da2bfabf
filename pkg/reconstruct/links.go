package reconstruct

import (
	"fmt"
	"strings"

	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
LinkHeaders builds the Link and Content-Length headers for a
reconstructed card. Item links are only emitted for values that are
absolute http(s) URLs; anything else is left out silently.
*/
func LinkHeaders(doc types.Document, authorBase string) map[string]string {
	var links []string

	if id := doc.String("external_id"); id != "" {
		links = append(links, fmt.Sprintf("<%s>; rel=\"cite-as\"", id))
	}

	if author := doc.String("author"); author != "" {
		if isURL(author) {
			links = append(links, fmt.Sprintf("<%s>; rel=\"author\"", author))
		} else {
			links = append(links, fmt.Sprintf("<%s%s>; rel=\"author\"", authorBase, author))
		}
	}

	model := doc.Section("ai_model")

	items := []struct {
		title string
		value any
	}{
		{"input_data", doc["input_data"]},
		{"model_location", model["location"]},
		{"inference_labels", model["inference_labels"]},
	}

	for _, item := range items {
		if target, ok := item.value.(string); ok && isURL(target) {
			links = append(links, fmt.Sprintf("<%s>; rel=\"item\"; title=%q", target, item.title))
		}
	}

	headers := map[string]string{"Content-Length": "0"}

	if len(links) > 0 {
		headers["Link"] = strings.Join(links, ", ")
	}

	return headers
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}
