package reconstruct

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/metrics"
	"github.com/theapemachine/mcgraph/pkg/stores"
	"github.com/theapemachine/mcgraph/pkg/types"
)

type Config struct {
	SearchLimit   int
	AuthorBaseURL string
	// IncludeDeployments nests the deployment list under "deployments".
	IncludeDeployments bool
}

func DefaultConfig() Config {
	return Config{
		SearchLimit:   10,
		AuthorBaseURL: "http://tapis.com/",
	}
}

/*
Engine reads model cards back out of the graph as nested documents.
*/
type Engine struct {
	store   graph.Store
	cache   stores.CardCache
	metrics *metrics.EngineMetrics
	config  Config
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

	return engine
}

func WithConfig(config Config) EngineOption {
	return func(engine *Engine) {
		if config.SearchLimit <= 0 {
			config.SearchLimit = DefaultConfig().SearchLimit
		}

		if config.AuthorBaseURL == "" {
			config.AuthorBaseURL = DefaultConfig().AuthorBaseURL
		}

		engine.config = config
	}
}

/*
WithCache serves repeated Reconstruct calls from cache until the entry
expires or a write invalidates it.
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
Reconstruct assembles the card's document: its own properties minus the
embedding, with the model, bias and explainability analyses nested under
ai_model, bias_analysis and xai_analysis when they exist.
*/
func (engine *Engine) Reconstruct(ctx context.Context, id string) (doc types.Document, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("reconstruct", started, err)
	}(time.Now())

	var generation uint64

	if engine.cache != nil {
		if cached, ok := engine.cache.Get(id); ok {
			log.Debug("model card served from cache", "id", id)
			return cached, nil
		}

		generation = engine.cache.Generation()
	}

	card, found, err := engine.store.GetNode(ctx, graph.Ref{Kind: graph.KindModelCard, ID: id})

	if err != nil {
		return nil, errors.Store("fetch_model_card", err)
	}

	if !found {
		log.Debug("model card not found", "id", id)
		return nil, errors.NotFound("model card %q not found", id)
	}

	doc = types.Document(textual(card))
	delete(doc, "embedding")

	sections := []struct {
		key string
		ref graph.Ref
	}{
		{"ai_model", graph.Ref{Kind: graph.KindModel, ID: graph.ModelID(id)}},
		{"bias_analysis", graph.Ref{Kind: graph.KindBiasAnalysis, ID: graph.BiasID(id)}},
		{"xai_analysis", graph.Ref{Kind: graph.KindExplainabilityAnalysis, ID: graph.XAIID(id)}},
	}

	fetched := make([]map[string]any, len(sections))
	var deployments []map[string]any

	g, gCtx := errgroup.WithContext(ctx)

	for i, section := range sections {
		g.Go(func() error {
			node, ok, err := engine.store.GetNode(gCtx, section.ref)

			if err != nil {
				return errors.Store("fetch_"+section.key, err)
			}

			if ok {
				fetched[i] = textual(node)
			}

			return nil
		})
	}

	if engine.config.IncludeDeployments {
		g.Go(func() error {
			rows, err := engine.store.Deployments(gCtx, graph.ModelID(id))

			if err != nil {
				return errors.Store("fetch_deployments", err)
			}

			deployments = deploymentDocuments(rows)
			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return nil, err
	}

	for i, section := range sections {
		if fetched[i] != nil {
			doc[section.key] = fetched[i]
		}
	}

	if engine.config.IncludeDeployments {
		doc["deployments"] = deployments
	}

	if engine.cache != nil && !engine.cache.SetIfCurrent(id, doc, generation) {
		log.Debug("card cache invalidated during reconstruct, not caching", "id", id)
	}

	return doc, nil
}

/*
Search runs the full-text index and returns the best matches first.
*/
func (engine *Engine) Search(ctx context.Context, query string) (out []types.Summary, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("search", started, err)
	}(time.Now())

	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("search query is empty")
	}

	found, err := engine.store.FullTextSearch(ctx, query, engine.config.SearchLimit)

	if err != nil {
		return nil, errors.Store("search", err)
	}

	out = make([]types.Summary, 0, len(found))

	for _, match := range found {
		summary := summarize(match.Node)
		score := match.Score
		summary.Score = &score
		out = append(out, summary)
	}

	return out, nil
}

/*
ListAll returns up to limit cards in store order; limit <= 0 means 1000.
*/
func (engine *Engine) ListAll(ctx context.Context, limit int) (out []types.Summary, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("list", started, err)
	}(time.Now())

	if limit <= 0 {
		limit = 1000
	}

	nodes, err := engine.store.ListNodes(ctx, graph.KindModelCard, limit)

	if err != nil {
		return nil, errors.Store("list_model_cards", err)
	}

	out = make([]types.Summary, 0, len(nodes))

	for _, node := range nodes {
		out = append(out, summarize(node))
	}

	return out, nil
}

/*
Deployments lists every deployment of the card's model, newest first, each
joined with its device, experiment and the experiment's user. Absent parts
are empty objects.
*/
func (engine *Engine) Deployments(ctx context.Context, id string) (out []map[string]any, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("deployments", started, err)
	}(time.Now())

	model := graph.Ref{Kind: graph.KindModel, ID: graph.ModelID(id)}
	_, found, err := engine.store.GetNode(ctx, model)

	if err != nil {
		return nil, errors.Store("fetch_model", err)
	}

	if !found {
		log.Debug("model not found", "id", id)
		return nil, errors.NotFound("model card %q has no model", id)
	}

	rows, err := engine.store.Deployments(ctx, model.ID)

	if err != nil {
		return nil, errors.Store("fetch_deployments", err)
	}

	return deploymentDocuments(rows), nil
}

func (engine *Engine) ModelLocation(ctx context.Context, id string) (location *types.ModelLocation, err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("model_location", started, err)
	}(time.Now())

	node, found, err := engine.store.GetNode(ctx, graph.Ref{Kind: graph.KindModel, ID: graph.ModelID(id)})

	if err != nil {
		return nil, errors.Store("fetch_model", err)
	}

	if !found {
		log.Debug("model not found", "id", id)
		return nil, errors.NotFound("model card %q has no model", id)
	}

	str := func(key string) string {
		value, _ := node[key].(string)
		return value
	}

	return &types.ModelLocation{
		ModelID:     graph.ModelID(id),
		Name:        str("name"),
		Version:     str("version"),
		DownloadURL: str("location"),
	}, nil
}

/*
SetModelLocation points the card's model at a new absolute URL.
*/
func (engine *Engine) SetModelLocation(ctx context.Context, id, location string) (err error) {
	defer func(started time.Time) {
		engine.metrics.Observe("set_model_location", started, err)
	}(time.Now())

	parsed, perr := url.Parse(location)

	if perr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.Validation("location %q is not an absolute URL", location)
	}

	matched, err := engine.store.SetProperties(ctx,
		graph.Ref{Kind: graph.KindModel, ID: graph.ModelID(id)},
		map[string]any{"location": location},
	)

	if err != nil {
		return errors.Store("update_model_location", err)
	}

	if !matched {
		log.Debug("model not found", "id", id)
		return errors.NotFound("model card %q has no model", id)
	}

	if engine.cache != nil {
		engine.cache.Delete(id)
	}

	log.Info("model location updated", "id", id, "location", location)
	return nil
}

/*
LinkHeaders derives the link headers for doc using the configured author
base URL.
*/
func (engine *Engine) LinkHeaders(doc types.Document) map[string]string {
	return LinkHeaders(doc, engine.config.AuthorBaseURL)
}

func summarize(node graph.Node) types.Summary {
	str := func(key string) string {
		value, _ := node[key].(string)
		return value
	}

	return types.Summary{
		ID:               str("external_id"),
		Name:             str("name"),
		Version:          str("version"),
		ShortDescription: str("short_description"),
	}
}

func deploymentDocuments(rows []graph.DeploymentRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		out = append(out, map[string]any{
			"deployment": textual(row.Deployment),
			"device":     textual(row.Device),
			"experiment": textual(row.Experiment),
			"user":       textual(row.User),
		})
	}

	return out
}

/*
textual copies node into a plain map, rendering times as RFC 3339 text.
A nil node becomes an empty map.
*/
func textual(node graph.Node) map[string]any {
	out := make(map[string]any, len(node))

	for key, value := range node {
		switch v := value.(type) {
		case time.Time:
			out[key] = v.Format(time.RFC3339)
		case fmt.Stringer:
			out[key] = v.String()
		default:
			out[key] = value
		}
	}

	return out
}
