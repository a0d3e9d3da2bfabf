package ingest

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
)

type revision struct {
	id    string
	score float64
}

/*
selectRevisions keeps the matches scoring strictly above threshold, minus
the card itself, highest score first.
*/
func selectRevisions(selfID string, matches []graph.Match, threshold float64) []revision {
	out := make([]revision, 0, len(matches))

	for _, match := range matches {
		id, _ := match.Node["external_id"].(string)

		if id == "" || id == selfID || match.Score <= threshold {
			continue
		}

		out = append(out, revision{id: id, score: match.Score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})

	return out
}

/*
inferVersions links the card to every stored card whose embedding is close
enough to count as another version of it. Edges are written in both
directions and carry the score as confidence.

Edges go through MergeEdge, so each ordered pair holds at most one
REVISION_OF edge and a repeat run only updates its confidence. This is a
deliberate departure from a plain CREATE, which would add a duplicate pair
of edges every time the same card is ingested again.
*/
func (engine *Engine) inferVersions(ctx context.Context, id string, vector []float32) error {
	matches, err := engine.store.VectorSearch(ctx, vector, engine.config.VersionCandidates)

	if err != nil {
		return errors.Store("infer_versioning", err)
	}

	self := graph.Ref{Kind: graph.KindModelCard, ID: id}

	for _, rev := range selectRevisions(id, matches, engine.config.VersionThreshold) {
		other := graph.Ref{Kind: graph.KindModelCard, ID: rev.id}
		props := map[string]any{"confidence": rev.score}

		for _, edge := range []graph.Edge{
			{From: self, To: other, Type: graph.RelRevisionOf, Props: props},
			{From: other, To: self, Type: graph.RelRevisionOf, Props: props},
		} {
			if _, err = engine.store.MergeEdge(ctx, edge); err != nil {
				return errors.Store("infer_versioning", err)
			}
		}

		log.Debug("revision inferred", "id", id, "revision_of", rev.id, "confidence", rev.score)
	}

	return nil
}
