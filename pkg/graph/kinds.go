package graph

import "strings"

/*
Kind is a node label in the model-card graph. Labels are only ever taken
from this closed set, which is what makes it safe for the store to place
them into query text.
*/
type Kind string

const (
	KindModelCard              Kind = "ModelCard"
	KindModel                  Kind = "Model"
	KindBiasAnalysis           Kind = "BiasAnalysis"
	KindExplainabilityAnalysis Kind = "ExplainabilityAnalysis"
	KindModelRequirements      Kind = "ModelRequirements"
	KindDatasheet              Kind = "Datasheet"
	KindDevice                 Kind = "Device"
	KindDeployment             Kind = "Deployment"
	KindExperiment             Kind = "Experiment"
	KindUser                   Kind = "User"
	KindRawImage               Kind = "RawImage"
	KindServer                 Kind = "Server"
)

// Edges between two model cards are owned by the engine, not the resolver.
const (
	RelRevisionOf          = "REVISION_OF"
	RelTransformativeUseOf = "TRANSFORMATIVE_USE_OF"
)

var kinds = []Kind{
	KindModelCard,
	KindModel,
	KindBiasAnalysis,
	KindExplainabilityAnalysis,
	KindModelRequirements,
	KindDatasheet,
	KindDevice,
	KindDeployment,
	KindExperiment,
	KindUser,
	KindRawImage,
	KindServer,
}

var keyProperties = map[Kind]string{
	KindModel:      "model_id",
	KindDevice:     "device_id",
	KindDeployment: "deployment_id",
	KindExperiment: "experiment_id",
	KindUser:       "user_id",
}

var synonyms = map[string]Kind{
	"DataSheet":  KindDatasheet,
	"EdgeDevice": KindDevice,
}

/*
Kinds returns every known node kind.
*/
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

func (kind Kind) Valid() bool {
	for _, known := range kinds {
		if kind == known {
			return true
		}
	}

	return false
}

/*
KeyProperty is the property that identifies a node within its kind.
*/
func (kind Kind) KeyProperty() string {
	if key, ok := keyProperties[kind]; ok {
		return key
	}

	return "external_id"
}

/*
NormalizeLabel strips spaces and folds known spellings onto the canonical
label, so "Bias Analysis" becomes "BiasAnalysis".
*/
func NormalizeLabel(label string) string {
	label = strings.ReplaceAll(strings.TrimSpace(label), " ", "")

	if kind, ok := synonyms[label]; ok {
		return string(kind)
	}

	return label
}

/*
ParseKind normalizes label and reports whether it names a known kind.
*/
func ParseKind(label string) (Kind, bool) {
	kind := Kind(NormalizeLabel(label))
	return kind, kind.Valid()
}

// Sub-entity keys derived from the owning card id.
func ModelID(cardID string) string        { return cardID + "-model" }
func BiasID(cardID string) string         { return cardID + "-bias" }
func XAIID(cardID string) string          { return cardID + "-xai" }
func RequirementsID(cardID string) string { return cardID + "-requirements" }

/*
CardIDOfModel reverses ModelID. ok is false for ids that were not derived
from a card.
*/
func CardIDOfModel(modelID string) (cardID string, ok bool) {
	cardID, ok = strings.CutSuffix(modelID, "-model")
	return cardID, ok && cardID != ""
}
