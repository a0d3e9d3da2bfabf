package types

/*
Document is a reconstructed model card: the ModelCard node's properties
with sub-entities nested under ai_model, bias_analysis, xai_analysis and
deployments.
*/
type Document map[string]any

/*
Clone deep-copies nested maps and slices so cached documents cannot be
mutated through a returned reference.
*/
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}

	return cloneValue(map[string]any(doc)).(map[string]any)
}

/*
String returns the string value at key, or "" when it is absent or not a string.
*/
func (doc Document) String(key string) string {
	value, _ := doc[key].(string)
	return value
}

/*
Section returns a nested object such as ai_model.
*/
func (doc Document) Section(key string) map[string]any {
	switch section := doc[key].(type) {
	case map[string]any:
		return section
	case Document:
		return section
	}

	return nil
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(value)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(value))

		for k, inner := range value {
			out[k] = cloneValue(inner)
		}

		return out
	case []map[string]any:
		out := make([]map[string]any, len(value))

		for i, inner := range value {
			out[i] = cloneValue(inner).(map[string]any)
		}

		return out
	case []any:
		out := make([]any, len(value))

		for i, inner := range value {
			out[i] = cloneValue(inner)
		}

		return out
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out
	case []float64:
		out := make([]float64, len(value))
		copy(out, value)
		return out
	default:
		return v
	}
}
