package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/theapemachine/mcgraph/pkg/embedding"
	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/ingest"
	"github.com/theapemachine/mcgraph/pkg/metrics"
	"github.com/theapemachine/mcgraph/pkg/reconstruct"
	"github.com/theapemachine/mcgraph/pkg/stores"
	neo4jstore "github.com/theapemachine/mcgraph/pkg/stores/neo4j"
)

/*
application holds the engines every command works with. It is built once
per process from the loaded configuration.
*/
type application struct {
	store         graph.Store
	ingester      *ingest.Engine
	reconstructor *reconstruct.Engine
	metrics       *metrics.EngineMetrics
}

func newApplication(ctx context.Context) (*application, error) {
	v := viper.GetViper()

	store, err := openStore(ctx, v)

	if err != nil {
		return nil, err
	}

	strategy, err := ingest.ParseIDStrategy(v.GetString("engine.idStrategy"))

	if err != nil {
		return nil, err
	}

	m := metrics.NewEngineMetrics()

	ingestOptions := []ingest.EngineOption{
		ingest.WithMetrics(m),
		ingest.WithConfig(ingest.Config{
			Similarity:        v.GetBool("engine.similarity"),
			IDStrategy:        strategy,
			VersionThreshold:  v.GetFloat64("engine.versionThreshold"),
			VersionCandidates: v.GetInt("engine.versionCandidates"),
		}),
	}

	reconstructOptions := []reconstruct.EngineOption{
		reconstruct.WithMetrics(m),
		reconstruct.WithConfig(reconstruct.Config{
			SearchLimit:        v.GetInt("engine.searchLimit"),
			AuthorBaseURL:      v.GetString("engine.authorBaseURL"),
			IncludeDeployments: v.GetBool("engine.includeDeployments"),
		}),
	}

	if v.GetBool("engine.similarity") {
		embedder, err := embedding.New(embedding.Config{
			Provider:   v.GetString("embedding.provider"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetInt("embedding.dimensions"),
			OllamaHost: v.GetString("embedding.ollamaHost"),
		})

		if err != nil {
			return nil, err
		}

		ingestOptions = append(ingestOptions, ingest.WithEmbedder(embedder))
	}

	if v.GetBool("cache.enabled") {
		cache := stores.NewInMemoryCardCache(ctx, v.GetDuration("cache.ttl"), v.GetInt("cache.maxEntries"))
		ingestOptions = append(ingestOptions, ingest.WithCache(cache))
		reconstructOptions = append(reconstructOptions, reconstruct.WithCache(cache))
	}

	return &application{
		store:         store,
		ingester:      ingest.NewEngine(store, ingestOptions...),
		reconstructor: reconstruct.NewEngine(store, reconstructOptions...),
		metrics:       m,
	}, nil
}

/*
openStore connects to the configured graph and waits for it to answer.
The memory transport keeps everything in process and is lost on exit.
*/
func openStore(ctx context.Context, v *viper.Viper) (graph.Store, error) {
	var (
		runner    neo4jstore.Runner
		err       error
		transport = strings.ToLower(v.GetString("neo4j.transport"))
		uri       = v.GetString("neo4j.uri")
		timeout   = v.GetDuration("neo4j.timeout")
	)

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	switch transport {
	case "memory":
		log.Warn("using the in-memory graph, nothing will be persisted")
		return graph.NewMemoryStore(), nil
	case "http":
		runner = neo4jstore.NewHTTPRunner(
			uri, v.GetString("neo4j.database"), v.GetString("neo4j.username"), v.GetString("neo4j.password"), timeout,
		)
	case "", "bolt":
		if runner, err = neo4jstore.NewBoltRunner(
			uri, v.GetString("neo4j.username"), v.GetString("neo4j.password"), v.GetString("neo4j.database"),
		); err != nil {
			return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown neo4j transport %q", transport)
	}

	store := neo4jstore.NewStore(runner, neo4jstore.Options{
		VectorIndex:   v.GetString("engine.vectorIndex"),
		FullTextIndex: v.GetString("engine.fulltextIndex"),
	})

	if err = errors.RetryWithBackoff(errors.DefaultRetryConfig(), func() error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := store.Ping(pingCtx); err != nil {
			log.Warn("graph store not ready", "uri", uri, "error", err)
			return err
		}

		return nil
	}); err != nil {
		return nil, err
	}

	log.Info("connected to graph store", "uri", uri, "transport", transport)
	return store, nil
}

func (app *application) close(ctx context.Context) {
	if err := app.store.Close(ctx); err != nil {
		log.Warn("failed to close graph store", "error", err)
	}

	log.Debug("engine metrics", "operations", app.metrics.Snapshot())
}
