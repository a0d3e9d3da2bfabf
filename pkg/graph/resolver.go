package graph

import "strings"

var constraints = map[Kind][]Kind{
	KindModelCard: {
		KindDatasheet,
		KindModelRequirements,
		KindBiasAnalysis,
		KindExplainabilityAnalysis,
		KindModel,
	},
	KindModel:                  {KindDeployment, KindExperiment},
	KindServer:                 {KindDeployment},
	KindDeployment:             {KindExperiment, KindDevice},
	KindExperiment:             {KindRawImage, KindUser, KindDevice, KindModel},
	KindDatasheet:              {KindModelCard},
	KindModelRequirements:      {KindModelCard},
	KindBiasAnalysis:           {KindModelCard},
	KindExplainabilityAnalysis: {KindModelCard},
	KindUser:                   {KindExperiment},
	KindRawImage:               {KindExperiment},
	KindDevice:                 {KindDeployment, KindExperiment},
}

type pair struct {
	source Kind
	target Kind
}

var relationshipTypes = map[pair]string{
	{KindModelCard, KindModel}:                  "USED",
	{KindModelCard, KindDatasheet}:              "TRAINED_ON",
	{KindModelCard, KindModelRequirements}:      "REQUIREMENTS",
	{KindModelCard, KindBiasAnalysis}:           "BIAS_ANALYSIS",
	{KindModelCard, KindExplainabilityAnalysis}: "XAI_ANALYSIS",
	{KindModel, KindDeployment}:                 "hasDeployment",
	{KindModel, KindExperiment}:                 "used",
	{KindServer, KindDeployment}:                "hosts",
	{KindDeployment, KindExperiment}:            "deploymentInfo",
	{KindDeployment, KindDevice}:                "deployedIn",
	{KindExperiment, KindRawImage}:              "processes",
	{KindExperiment, KindUser}:                  "submittedBy",
	{KindExperiment, KindDevice}:                "executedOn",
	{KindExperiment, KindModel}:                 "uses",
	{KindUser, KindExperiment}:                  "submits",
	{KindRawImage, KindExperiment}:              "processedBy",
	{KindDevice, KindDeployment}:                "hosts",
	{KindDevice, KindExperiment}:                "executes",
}

/*
Resolve returns the relationship type for an edge from source to target.
Labels are normalized first. ok is false when the pairing is not in the
constraint table; permitted pairs without an explicit type fall back to the
upper-cased target label.
*/
func Resolve(source, target string) (string, bool) {
	src := Kind(NormalizeLabel(source))
	dst := Kind(NormalizeLabel(target))

	permitted, ok := constraints[src]

	if !ok {
		return "", false
	}

	for _, candidate := range permitted {
		if candidate != dst {
			continue
		}

		if relType, ok := relationshipTypes[pair{src, dst}]; ok {
			return relType, true
		}

		return strings.ToUpper(string(dst)), true
	}

	return "", false
}

/*
Permitted lists every target kind source may link to.
*/
func Permitted(source Kind) []Kind {
	out := make([]Kind, len(constraints[source]))
	copy(out, constraints[source])
	return out
}
