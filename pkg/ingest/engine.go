package ingest

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mcgraph/pkg/embedding"
	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/metrics"
	"github.com/theapemachine/mcgraph/pkg/stores"
	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
Config is fixed for the lifetime of an Engine.
*/
type Config struct {
	// Similarity enables embeddings and versioning inference.
	Similarity bool
	// IDStrategy defaults to hash with similarity support and random without.
	IDStrategy        IDStrategy
	VersionThreshold  float64
	VersionCandidates int
}

func DefaultConfig() Config {
	return Config{
		VersionThreshold:  0.95,
		VersionCandidates: 1000,
	}
}

func (config Config) strategy() IDStrategy {
	if config.IDStrategy != "" {
		return config.IDStrategy
	}

	if config.Similarity {
		return IDStrategyHash
	}

	return IDStrategyRandom
}

/*
Engine writes model cards and their surrounding entities into the graph.
Each operation is a sequence of independent store calls; a failure part
way leaves earlier writes in place and is reported with the failing step.
Every step after the base write is keyed by a deterministic id, so calling
Ingest again with the same document completes the card.
*/
type Engine struct {
	store    graph.Store
	embedder embedding.Provider
	cache    stores.CardCache
	metrics  *metrics.EngineMetrics
	config   Config
}

type EngineOption func(*Engine)

func NewEngine(store graph.Store, options ...EngineOption) *Engine {
	engine := &Engine{
		store:  store,
		config: DefaultConfig(),
	}

	for _, option := range options {
		option(engine)
	}

	if engine.config.Similarity && engine.embedder == nil {
		engine.embedder = embedding.NewMockProvider(0)
	}

	return engine
}

func WithConfig(config Config) EngineOption {
	return func(engine *Engine) {
		if config.VersionThreshold <= 0 {
			config.VersionThreshold = DefaultConfig().VersionThreshold
		}

		if config.VersionCandidates <= 0 {
			config.VersionCandidates = DefaultConfig().VersionCandidates
		}

		engine.config = config
	}
}

func WithEmbedder(embedder embedding.Provider) EngineOption {
	return func(engine *Engine) {
		engine.embedder = embedder
	}
}

/*
WithCache makes writes drop the affected card from a reconstruction cache.
*/
func WithCache(cache stores.CardCache) EngineOption {
	return func(engine *Engine) {
		engine.cache = cache
	}
}

func WithMetrics(m *metrics.EngineMetrics) EngineOption {
	return func(engine *Engine) {
		engine.metrics = m
	}
}

/*
Ingest stores a model card. When a card with the same natural key exists
it returns that card's id with existed set and writes nothing, unless an
earlier ingestion of it stopped before all sub-entities were written; the
missing parts are then completed.
*/
func (engine *Engine) Ingest(ctx context.Context, card *types.ModelCard) (existed bool, id string, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("ingest", started, err)
	}(time.Now())

	if err = card.Validate(); err != nil {
		return false, "", err
	}

	existing, found, err := engine.store.FindNode(ctx, graph.KindModelCard, naturalKey(card))

	if err != nil {
		return false, "", errors.Store("dedup_check", err)
	}

	if found {
		return engine.resume(ctx, card, existing)
	}

	id = engine.assignID(card)
	p, err := newPlan(id, card)

	if err != nil {
		return false, "", err
	}

	if card.ID != "" || engine.config.strategy() != IDStrategyRandom {
		var taken bool

		if _, taken, err = engine.store.GetNode(ctx, graph.Ref{Kind: graph.KindModelCard, ID: id}); err != nil {
			return false, "", errors.Store("check_id", err)
		}

		if taken {
			return false, "", errors.AlreadyExists("model card id %q belongs to a different card", id)
		}
	}

	var vector []float32

	if engine.config.Similarity {
		if vector, err = engine.embedder.Embed(ctx, embedding.VersioningText(card)); err != nil {
			return false, "", errors.Embedding(err)
		}

		p.card["embedding"] = vector
	}

	if err = engine.store.CreateNode(ctx, graph.KindModelCard, p.card); err != nil {
		return false, "", errors.Store("create_model_card", err)
	}

	log.Debug("model card created", "id", id)

	if err = engine.attach(ctx, card, p); err != nil {
		return false, id, err
	}

	if engine.config.Similarity {
		if err = engine.inferVersions(ctx, id, vector); err != nil {
			return false, id, err
		}
	}

	log.Info("model card ingested", "id", id, "name", card.Name, "version", card.Version)
	return false, id, nil
}

func (engine *Engine) resume(ctx context.Context, card *types.ModelCard, existing graph.Node) (bool, string, error) {
	id, _ := existing["external_id"].(string)
	p, err := newPlan(id, card)

	if err != nil {
		return true, id, err
	}

	missing := false

	for _, ref := range p.subEntities() {
		_, ok, err := engine.store.GetNode(ctx, ref)

		if err != nil {
			return true, id, errors.Store("dedup_check", err)
		}

		if !ok {
			missing = true
			break
		}
	}

	if !missing {
		log.Debug("model card already exists", "id", id)
		return true, id, nil
	}

	log.Warn("model card is incomplete, resuming ingestion", "id", id)

	if err = engine.attach(ctx, card, p); err != nil {
		return true, id, err
	}

	if vector := vectorOf(existing["embedding"]); engine.config.Similarity && len(vector) > 0 {
		if err = engine.inferVersions(ctx, id, vector); err != nil {
			return true, id, err
		}
	}

	engine.invalidate(id)
	return true, id, nil
}

/*
attach writes everything owned by or linked from the card node, in order.
*/
func (engine *Engine) attach(ctx context.Context, card *types.ModelCard, p *plan) error {
	cardRef := graph.Ref{Kind: graph.KindModelCard, ID: p.id}

	if card.InputData != "" {
		datasheet := graph.Ref{Kind: graph.KindDatasheet, ID: card.InputData}

		if _, err := engine.store.MergeNode(ctx, datasheet, map[string]any{"name": "Default Datasheet"}); err != nil {
			return errors.Store("create_datasheet", err)
		}

		if err := engine.link(ctx, "link_datasheet", cardRef, datasheet, nil); err != nil {
			return err
		}
	}

	if err := engine.writeSubEntities(ctx, cardRef, p); err != nil {
		return err
	}

	return engine.linkFoundational(ctx, card, p.id)
}

func (engine *Engine) writeSubEntities(ctx context.Context, cardRef graph.Ref, p *plan) error {
	steps := []struct {
		name  string
		kind  graph.Kind
		id    string
		props map[string]any
	}{
		{"model", graph.KindModel, graph.ModelID(p.id), p.model},
		{"bias_analysis", graph.KindBiasAnalysis, graph.BiasID(p.id), p.bias},
		{"xai_analysis", graph.KindExplainabilityAnalysis, graph.XAIID(p.id), p.xai},
		{"requirements", graph.KindModelRequirements, graph.RequirementsID(p.id), p.requirements},
	}

	for _, step := range steps {
		if step.props == nil {
			continue
		}

		ref := graph.Ref{Kind: step.kind, ID: step.id}

		if err := engine.upsert(ctx, "write_"+step.name, ref, step.props); err != nil {
			return err
		}

		if err := engine.link(ctx, "link_"+step.name, cardRef, ref, nil); err != nil {
			return err
		}
	}

	return nil
}

func (engine *Engine) linkFoundational(ctx context.Context, card *types.ModelCard, id string) error {
	if card.FoundationalModel == nil || *card.FoundationalModel == "" {
		return nil
	}

	foundational := graph.Ref{Kind: graph.KindModelCard, ID: *card.FoundationalModel}
	_, ok, err := engine.store.GetNode(ctx, foundational)

	if err != nil {
		return errors.Store("link_foundational_model", err)
	}

	if !ok {
		log.Debug("foundational model not found, skipping link", "id", id, "foundational_model", foundational.ID)
		return nil
	}

	if _, err = engine.store.MergeEdge(ctx, graph.Edge{
		From: graph.Ref{Kind: graph.KindModelCard, ID: id},
		To:   foundational,
		Type: graph.RelTransformativeUseOf,
	}); err != nil {
		return errors.Store("link_foundational_model", err)
	}

	return nil
}

/*
Update overwrites a stored card and its sub-entities in place. The card
is located by name, version, author, input and output data; when id is
given it must be the id of that card.
*/
func (engine *Engine) Update(ctx context.Context, id string, card *types.ModelCard) (resolved string, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("update", started, err)
	}(time.Now())

	if err = card.Validate(); err != nil {
		return "", err
	}

	existing, found, err := engine.store.FindNode(ctx, graph.KindModelCard, updateKey(card))

	if err != nil {
		return "", errors.Store("update_check", err)
	}

	if !found {
		log.Debug("no model card to update", "name", card.Name, "version", card.Version)
		return "", errors.NotFound("no model card matches %s %s by %s", card.Name, card.Version, card.Author)
	}

	resolved, _ = existing["external_id"].(string)

	if id != "" && id != resolved {
		return "", errors.NotFound("model card %q does not match the submitted document", id)
	}

	p, err := newPlan(resolved, card)

	if err != nil {
		return "", err
	}

	if card.FoundationalModel == nil || *card.FoundationalModel == "" {
		p.card["foundational_model"] = nil
	}

	cardRef := graph.Ref{Kind: graph.KindModelCard, ID: resolved}

	if _, err = engine.store.SetProperties(ctx, cardRef, p.card); err != nil {
		return "", errors.Store("update_model_card", err)
	}

	if err = engine.writeSubEntities(ctx, cardRef, p); err != nil {
		return "", err
	}

	if err = engine.linkFoundational(ctx, card, resolved); err != nil {
		return "", err
	}

	engine.invalidate(resolved)
	log.Info("model card updated", "id", resolved)

	return resolved, nil
}

/*
upsert creates ref with props, or overwrites props on an existing node.
*/
func (engine *Engine) upsert(ctx context.Context, step string, ref graph.Ref, props map[string]any) error {
	created, err := engine.store.MergeNode(ctx, ref, props)

	if err != nil {
		return errors.Store(step, err)
	}

	if created {
		return nil
	}

	if _, err = engine.store.SetProperties(ctx, ref, props); err != nil {
		return errors.Store(step, err)
	}

	return nil
}

/*
link creates the resolver-typed edge from source to target.
*/
func (engine *Engine) link(ctx context.Context, step string, source, target graph.Ref, props map[string]any) error {
	relType, ok := graph.Resolve(string(source.Kind), string(target.Kind))

	if !ok {
		return errors.NotPermitted(string(source.Kind), string(target.Kind))
	}

	if _, err := engine.store.MergeEdge(ctx, graph.Edge{
		From:  source,
		To:    target,
		Type:  relType,
		Props: props,
	}); err != nil {
		return errors.Store(step, err)
	}

	return nil
}

func (engine *Engine) invalidate(id string) {
	if engine.cache != nil {
		engine.cache.Delete(id)
	}
}

func (engine *Engine) invalidateModel(modelID string) {
	if cardID, ok := graph.CardIDOfModel(modelID); ok {
		engine.invalidate(cardID)
	}
}

/*
invalidateRef drops the cached document whose deployments section can
change when ref gains an edge. Experiment and user edges reach a card only
through deployments and are left to the cache TTL.
*/
func (engine *Engine) invalidateRef(ctx context.Context, ref graph.Ref) {
	if engine.cache == nil {
		return
	}

	switch ref.Kind {
	case graph.KindModelCard:
		engine.invalidate(ref.ID)
	case graph.KindModel:
		engine.invalidateModel(ref.ID)
	case graph.KindDeployment:
		node, ok, err := engine.store.GetNode(ctx, ref)

		if err != nil || !ok {
			return
		}

		if modelID, _ := node["model_id"].(string); modelID != "" {
			engine.invalidateModel(modelID)
		}
	}
}

func vectorOf(value any) []float32 {
	switch v := value.(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))

		for i, f := range v {
			out[i] = float32(f)
		}

		return out
	case []any:
		out := make([]float32, 0, len(v))

		for _, f := range v {
			if n, ok := f.(float64); ok {
				out = append(out, float32(n))
			}
		}

		return out
	}

	return nil
}
