package ingest

import (
	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/types"
)

var modelKeys = []string{
	"model_id", "name", "version", "description", "owner", "location",
	"license", "framework", "model_type", "test_accuracy", "inference_labels",
}

/*
plan holds every property map an ingestion writes, built and sanitized
before the first write so a bad key never leaves a partial card behind.
*/
type plan struct {
	id           string
	card         map[string]any
	model        map[string]any
	bias         map[string]any
	xai          map[string]any
	requirements map[string]any
}

func newPlan(id string, card *types.ModelCard) (*plan, error) {
	p := &plan{id: id, card: cardProperties(id, card)}

	var err error

	if card.AIModel != nil {
		if p.model, err = modelProperties(graph.ModelID(id), card.AIModel); err != nil {
			return nil, err
		}
	}

	if card.BiasAnalysis != nil {
		if p.bias, err = analysisProperties(graph.BiasID(id), id+"-bias_analysis", card.BiasAnalysis); err != nil {
			return nil, err
		}
	}

	if card.XAIAnalysis != nil {
		if p.xai, err = analysisProperties(graph.XAIID(id), id+"-xai_analysis", card.XAIAnalysis); err != nil {
			return nil, err
		}
	}

	if card.ModelRequirements != nil {
		if p.requirements, err = requirementProperties(graph.RequirementsID(id), card.ModelRequirements); err != nil {
			return nil, err
		}
	}

	return p, nil
}

/*
subEntities lists the nodes the plan owns besides the card itself.
*/
func (p *plan) subEntities() []graph.Ref {
	refs := make([]graph.Ref, 0, 4)

	if p.model != nil {
		refs = append(refs, graph.Ref{Kind: graph.KindModel, ID: graph.ModelID(p.id)})
	}

	if p.bias != nil {
		refs = append(refs, graph.Ref{Kind: graph.KindBiasAnalysis, ID: graph.BiasID(p.id)})
	}

	if p.xai != nil {
		refs = append(refs, graph.Ref{Kind: graph.KindExplainabilityAnalysis, ID: graph.XAIID(p.id)})
	}

	if p.requirements != nil {
		refs = append(refs, graph.Ref{Kind: graph.KindModelRequirements, ID: graph.RequirementsID(p.id)})
	}

	return refs
}

func cardProperties(id string, card *types.ModelCard) map[string]any {
	props := map[string]any{
		"external_id":       id,
		"name":              card.Name,
		"version":           card.Version,
		"short_description": card.ShortDescription,
		"full_description":  card.FullDescription,
		"keywords":          card.Keywords,
		"author":            card.Author,
		"citation":          card.Citation,
		"input_type":        card.InputType,
		"category":          card.Category,
		"input_data":        card.InputData,
		"output_data":       card.OutputData,
	}

	if card.FoundationalModel != nil && *card.FoundationalModel != "" {
		props["foundational_model"] = *card.FoundationalModel
	}

	return props
}

/*
naturalKey is the field tuple that makes two submissions the same card.
*/
func naturalKey(card *types.ModelCard) map[string]any {
	return map[string]any{
		"name":              card.Name,
		"version":           card.Version,
		"short_description": card.ShortDescription,
		"full_description":  card.FullDescription,
		"keywords":          card.Keywords,
		"author":            card.Author,
		"input_data":        card.InputData,
		"output_data":       card.OutputData,
		"input_type":        card.InputType,
		"category":          card.Category,
	}
}

// updateKey is looser than naturalKey so descriptions can change.
func updateKey(card *types.ModelCard) map[string]any {
	return map[string]any{
		"name":        card.Name,
		"version":     card.Version,
		"author":      card.Author,
		"input_data":  card.InputData,
		"output_data": card.OutputData,
	}
}

func modelProperties(modelID string, model *types.AIModel) (map[string]any, error) {
	props := map[string]any{
		"model_id":         modelID,
		"name":             model.Name,
		"version":          model.Version,
		"description":      model.Description,
		"owner":            model.Owner,
		"location":         model.Location,
		"license":          model.License,
		"framework":        model.Framework,
		"model_type":       model.ModelType,
		"inference_labels": model.InferenceLabels.Value(),
	}

	if model.TestAccuracy != nil {
		props["test_accuracy"] = *model.TestAccuracy
	}

	if err := graph.FlattenProperties(props, model.Metrics, modelKeys...); err != nil {
		return nil, err
	}

	return props, nil
}

/*
analysisProperties builds a bias or explainability node. Values from the
document may replace the generated name but never the key.
*/
func analysisProperties(id, name string, analysis map[string]any) (map[string]any, error) {
	props := map[string]any{
		"external_id": id,
		"name":        name,
	}

	if err := graph.FlattenProperties(props, analysis, "external_id"); err != nil {
		return nil, err
	}

	return props, nil
}

func requirementProperties(id string, pins []string) (map[string]any, error) {
	props := map[string]any{
		"external_id": id,
		"name":        id,
	}

	seen := make(map[string]string, len(pins))

	for _, pin := range pins {
		key, value, ok := types.Requirement(pin)

		if !ok {
			return nil, errors.Validation("requirement %q must have the form name==version", pin)
		}

		clean, err := graph.SanitizeKey(key)

		if err != nil {
			return nil, err
		}

		if clean == "external_id" || clean == "name" {
			return nil, errors.Validation("requirement %q uses a reserved name", pin)
		}

		if previous, dup := seen[clean]; dup {
			return nil, errors.Validation("requirements %q and %q collide as %q", previous, pin, clean)
		}

		seen[clean] = pin
		props[clean] = value
	}

	return props, nil
}
