package types

import (
	"encoding/json"
	"strings"
)

/*
ModelCard is the document accepted by ingestion and update. Optional
sub-objects are nil when absent.
*/
type ModelCard struct {
	ID                string         `json:"id,omitempty"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ShortDescription  string         `json:"short_description"`
	FullDescription   string         `json:"full_description"`
	Keywords          string         `json:"keywords"`
	Author            string         `json:"author"`
	Citation          string         `json:"citation,omitempty"`
	InputType         string         `json:"input_type"`
	Category          string         `json:"category"`
	InputData         string         `json:"input_data"`
	OutputData        string         `json:"output_data"`
	FoundationalModel *string        `json:"foundational_model"`
	AIModel           *AIModel       `json:"ai_model,omitempty"`
	BiasAnalysis      map[string]any `json:"bias_analysis,omitempty"`
	XAIAnalysis       map[string]any `json:"xai_analysis,omitempty"`
	ModelRequirements []string       `json:"model_requirements,omitempty"`
}

/*
AIModel describes the trained artifact. Metrics are flattened onto the
Model node as individual properties.
*/
type AIModel struct {
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Description     string          `json:"description"`
	Owner           string          `json:"owner"`
	Location        string          `json:"location"`
	License         string          `json:"license"`
	Framework       string          `json:"framework"`
	ModelType       string          `json:"model_type"`
	TestAccuracy    *float64        `json:"test_accuracy,omitempty"`
	InferenceLabels InferenceLabels `json:"inference_labels"`
	Metrics         map[string]any  `json:"metrics,omitempty"`
}

/*
InferenceLabels is either a URL pointing at a label file or an inline
list of labels.
*/
type InferenceLabels struct {
	URL    string
	Labels []string
}

func (labels InferenceLabels) MarshalJSON() ([]byte, error) {
	if labels.URL != "" {
		return json.Marshal(labels.URL)
	}

	if labels.Labels == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(labels.Labels)
}

func (labels *InferenceLabels) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))

	switch {
	case trimmed == "null":
		*labels = InferenceLabels{}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		labels.Labels = nil
		return json.Unmarshal(data, &labels.URL)
	default:
		labels.URL = ""
		return json.Unmarshal(data, &labels.Labels)
	}
}

/*
Value is the form stored on the Model node.
*/
func (labels InferenceLabels) Value() any {
	if labels.URL != "" {
		return labels.URL
	}

	if labels.Labels == nil {
		return []string{}
	}

	return labels.Labels
}

/*
Summary is one row of a search or listing.
*/
type Summary struct {
	ID               string   `json:"mc_id"`
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	ShortDescription string   `json:"short_description"`
	Score            *float64 `json:"score,omitempty"`
}

/*
ModelLocation is where a model's artifact can be downloaded from.
*/
type ModelLocation struct {
	ModelID     string `json:"model_id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
}

/*
NodeRef addresses a node by label and key for explicit linking.
*/
type NodeRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}
