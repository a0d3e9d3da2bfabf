package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mcgraph/pkg/errors"
)

func TestModelCardDecode(t *testing.T) {
	raw := `{
		"name": "resnet18",
		"version": "1.0",
		"author": "alice",
		"input_data": "https://data/x",
		"output_data": "https://out/y",
		"input_type": "images",
		"category": "classification",
		"foundational_model": null,
		"ai_model": {"name": "resnet18", "inference_labels": "https://labels/x.txt", "metrics": {"Top1 Accuracy": 0.70}},
		"model_requirements": ["torch==2.1", "numpy==1.26"]
	}`

	var card ModelCard
	require.NoError(t, json.Unmarshal([]byte(raw), &card))

	assert.Equal(t, "resnet18", card.Name)
	assert.Nil(t, card.FoundationalModel)
	require.NotNil(t, card.AIModel)
	assert.Equal(t, "https://labels/x.txt", card.AIModel.InferenceLabels.URL)
	assert.Equal(t, 0.70, card.AIModel.Metrics["Top1 Accuracy"])
	assert.Len(t, card.ModelRequirements, 2)
	assert.NoError(t, card.Validate())
}

func TestInferenceLabels(t *testing.T) {
	var labels InferenceLabels

	require.NoError(t, json.Unmarshal([]byte(`["cat","dog"]`), &labels))
	assert.Equal(t, []string{"cat", "dog"}, labels.Value())

	require.NoError(t, json.Unmarshal([]byte(`"https://x/labels"`), &labels))
	assert.Equal(t, "https://x/labels", labels.Value())
	assert.Nil(t, labels.Labels)

	require.NoError(t, json.Unmarshal([]byte(`null`), &labels))
	assert.Equal(t, []string{}, labels.Value())

	out, err := json.Marshal(InferenceLabels{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestModelCardValidate(t *testing.T) {
	err := (&ModelCard{Version: "1.0"}).Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "author")

	err = (&ModelCard{
		Name:              "x",
		Version:           "1",
		Author:            "a",
		ModelRequirements: []string{"torch>=2"},
	}).Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_requirements[0]")

	var nilCard *ModelCard
	assert.Error(t, nilCard.Validate())
}

func TestRequirement(t *testing.T) {
	key, value, ok := Requirement("scikit-learn == 1.3.0")

	assert.True(t, ok)
	assert.Equal(t, "scikit-learn", key)
	assert.Equal(t, "1.3.0", value)

	_, _, ok = Requirement("==1.0")
	assert.False(t, ok)
}

func TestEntityExtras(t *testing.T) {
	var device Device

	require.NoError(t, json.Unmarshal([]byte(`{"device_id":"jetson","name":"Jetson","gpu":"Orin","ram gb":32}`), &device))
	assert.Equal(t, "jetson", device.ID)
	assert.Equal(t, "Orin", device.Properties["gpu"])
	assert.Equal(t, float64(32), device.Properties["ram gb"])
	assert.NotContains(t, device.Properties, "name")

	out, err := json.Marshal(device)
	require.NoError(t, err)
	assert.JSONEq(t, `{"device_id":"jetson","name":"Jetson","gpu":"Orin","ram gb":32}`, string(out))

	var deployment Deployment

	require.NoError(t, json.Unmarshal([]byte(`{
		"deployment_id": "d1",
		"model_card_id": "mc",
		"start_time": "2024-01-01T10:00:00Z",
		"requests_served": 10
	}`), &deployment))
	require.NotNil(t, deployment.StartTime)
	assert.Equal(t, 2024, deployment.StartTime.Year())
	assert.Equal(t, float64(10), deployment.Properties["requests_served"])
	assert.NoError(t, deployment.Validate())

	assert.Error(t, (&Deployment{ID: "d"}).Validate())
	assert.Error(t, (&Experiment{ID: "e"}).Validate())
	assert.NoError(t, (&Experiment{ID: "e", SubmittedBy: "u"}).Validate())
}

func TestDocumentClone(t *testing.T) {
	doc := Document{
		"external_id": "mc",
		"ai_model":    map[string]any{"name": "x"},
		"deployments": []map[string]any{{"deployment": map[string]any{"id": "d"}}},
	}

	clone := doc.Clone()
	clone.Section("ai_model")["name"] = "changed"
	clone["deployments"].([]map[string]any)[0]["deployment"] = nil

	assert.Equal(t, "x", doc.Section("ai_model")["name"])
	assert.NotNil(t, doc["deployments"].([]map[string]any)[0]["deployment"])
	assert.Equal(t, "mc", clone.String("external_id"))
	assert.Equal(t, "", clone.String("missing"))
}

func TestValidatePID(t *testing.T) {
	assert.NoError(t, ValidatePID("alice", "resnet", "1.0"))
	assert.True(t, errors.Is(ValidatePID("", "resnet", "1.0"), errors.ErrValidation))
}
