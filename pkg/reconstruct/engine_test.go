package reconstruct

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/ingest"
	"github.com/theapemachine/mcgraph/pkg/metrics"
	"github.com/theapemachine/mcgraph/pkg/stores"
	"github.com/theapemachine/mcgraph/pkg/types"
)

func resnetCard() *types.ModelCard {
	return &types.ModelCard{
		Name:             "resnet18",
		Version:          "1.0",
		Author:           "alice",
		ShortDescription: "image classifier",
		Keywords:         "vision resnet",
		InputData:        "https://data/x",
		OutputData:       "https://out/y",
		InputType:        "images",
		Category:         "classification",
		AIModel: &types.AIModel{
			Name:     "resnet18",
			Version:  "1.0",
			Location: "https://models/resnet18.pt",
			Metrics:  map[string]any{"Top1 Accuracy": 0.70},
		},
		BiasAnalysis: map[string]any{"demographic_parity_diff": 0.12},
		XAIAnalysis:  map[string]any{"method": "grad-cam"},
	}
}

func ingestCard(t *testing.T, store graph.Store, card *types.ModelCard, options ...ingest.EngineOption) string {
	t.Helper()

	_, id, err := ingest.NewEngine(store, options...).Ingest(context.Background(), card)
	require.NoError(t, err)

	return id
}

func TestReconstructRoundTrip(t *testing.T) {
	Convey("Given a card ingested with similarity support", t, func() {
		ctx := context.Background()
		store := graph.NewMemoryStore()
		id := ingestCard(t, store, resnetCard(), ingest.WithConfig(ingest.Config{Similarity: true}))

		engine := NewEngine(store)

		Convey("When it is reconstructed", func() {
			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the card fields come back without the embedding", func() {
				So(doc.String("external_id"), ShouldEqual, id)
				So(doc.String("name"), ShouldEqual, "resnet18")
				So(doc.String("category"), ShouldEqual, "classification")
				So(doc, ShouldNotContainKey, "embedding")
			})

			Convey("Then the sub-entities are nested", func() {
				model := doc.Section("ai_model")
				So(model, ShouldNotBeNil)
				So(model["Top1_Accuracy"], ShouldEqual, 0.70)
				So(model["location"], ShouldEqual, "https://models/resnet18.pt")

				So(doc.Section("bias_analysis")["demographic_parity_diff"], ShouldEqual, 0.12)
				So(doc.Section("xai_analysis")["method"], ShouldEqual, "grad-cam")
			})

			Convey("Then deployments are only present when configured", func() {
				So(doc, ShouldNotContainKey, "deployments")
			})
		})
	})
}

func TestReconstructOptionalSections(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	card := resnetCard()
	card.BiasAnalysis = nil
	card.XAIAnalysis = nil

	id := ingestCard(t, store, card)
	doc, err := NewEngine(store).Reconstruct(ctx, id)
	require.NoError(t, err)

	assert.NotNil(t, doc.Section("ai_model"))
	assert.NotContains(t, doc, "bias_analysis")
	assert.NotContains(t, doc, "xai_analysis")
}

func TestReconstructNotFound(t *testing.T) {
	engine := NewEngine(graph.NewMemoryStore())

	doc, err := engine.Reconstruct(context.Background(), "missing")
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReconstructCache(t *testing.T) {
	Convey("Given a reconstruction engine with a cache", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := graph.NewMemoryStore()
		cache := stores.NewInMemoryCardCache(ctx, time.Minute, 16)
		id := ingestCard(t, store, resnetCard(), ingest.WithCache(cache))

		m := metrics.NewEngineMetrics()
		engine := NewEngine(store, WithCache(cache), WithMetrics(m))

		first, err := engine.Reconstruct(ctx, id)
		So(err, ShouldBeNil)

		Convey("When the store changes behind the cache", func() {
			_, err := store.SetProperties(ctx, graph.Ref{Kind: graph.KindModelCard, ID: id}, map[string]any{"name": "changed"})
			So(err, ShouldBeNil)

			second, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the cached document is served", func() {
				So(second.String("name"), ShouldEqual, first.String("name"))
				So(m.Stats("reconstruct").Calls, ShouldEqual, 2)
			})
		})

		Convey("When the model location is changed", func() {
			So(engine.SetModelLocation(ctx, id, "https://models/v2.pt"), ShouldBeNil)

			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the card is read again", func() {
				So(doc.Section("ai_model")["location"], ShouldEqual, "https://models/v2.pt")
			})
		})

		Convey("When a returned document is modified", func() {
			first["name"] = "mutated"

			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the cache is unaffected", func() {
				So(doc.String("name"), ShouldEqual, "resnet18")
			})
		})
	})
}

func TestReconstructCacheFollowsDeployments(t *testing.T) {
	Convey("Given a cached card that reconstructs with its deployments", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := graph.NewMemoryStore()
		cache := stores.NewInMemoryCardCache(ctx, time.Minute, 16)
		writer := ingest.NewEngine(store, ingest.WithCache(cache))

		_, id, err := writer.Ingest(ctx, resnetCard())
		So(err, ShouldBeNil)

		engine := NewEngine(store, WithCache(cache), WithConfig(Config{IncludeDeployments: true}))

		before, err := engine.Reconstruct(ctx, id)
		So(err, ShouldBeNil)
		So(before["deployments"], ShouldBeEmpty)

		Convey("When a deployment is added by card id", func() {
			_, err := writer.AddDeployment(ctx, &types.Deployment{ID: "dep-1", ModelCardID: id})
			So(err, ShouldBeNil)

			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the next reconstruct lists it", func() {
				So(doc["deployments"], ShouldHaveLength, 1)
			})
		})

		Convey("When a deployment is added by model id", func() {
			_, err := writer.AddDeployment(ctx, &types.Deployment{ID: "dep-2", ModelID: graph.ModelID(id)})
			So(err, ShouldBeNil)

			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the next reconstruct lists it", func() {
				So(doc["deployments"], ShouldHaveLength, 1)
			})
		})

		Convey("When a deployment is linked to a device afterwards", func() {
			_, err := writer.AddDeployment(ctx, &types.Deployment{ID: "dep-3", ModelCardID: id})
			So(err, ShouldBeNil)
			So(writer.AddDevice(ctx, &types.Device{ID: "jetson-1", Name: "Jetson"}), ShouldBeNil)

			_, err = engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			_, _, err = writer.Link(ctx,
				types.NodeRef{Kind: "Deployment", ID: "dep-3"},
				types.NodeRef{Kind: "Device", ID: "jetson-1"},
			)
			So(err, ShouldBeNil)

			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the device shows up in the cached card", func() {
				rows := doc["deployments"].([]map[string]any)
				So(rows, ShouldHaveLength, 1)
				So(rows[0]["device"].(map[string]any)["name"], ShouldEqual, "Jetson")
			})
		})
	})
}

func TestSearchAndList(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()

	resnet := ingestCard(t, store, resnetCard())

	other := resnetCard()
	other.Name = "bert-base"
	other.ShortDescription = "language model"
	other.Keywords = "nlp transformer"
	ingestCard(t, store, other)

	engine := NewEngine(store)

	results, err := engine.Search(ctx, "resnet18")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, resnet, results[0].ID)
	require.NotNil(t, results[0].Score)
	assert.Greater(t, *results[0].Score, 0.0)

	_, err = engine.Search(ctx, "   ")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	all, err := engine.ListAll(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := engine.ListAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.Nil(t, one[0].Score)
}

func TestDeployments(t *testing.T) {
	Convey("Given a card with two deployments", t, func() {
		ctx := context.Background()
		store := graph.NewMemoryStore()
		id := ingestCard(t, store, resnetCard())
		writer := ingest.NewEngine(store)

		So(writer.AddDevice(ctx, &types.Device{ID: "jetson-1", Name: "Jetson"}), ShouldBeNil)

		_, err := writer.AddExperiment(ctx, &types.Experiment{ID: "exp-1", SubmittedBy: "bob", DeviceID: "jetson-1"})
		So(err, ShouldBeNil)

		older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

		_, err = writer.AddDeployment(ctx, &types.Deployment{
			ID: "dep-old", ModelCardID: id, DeviceID: "jetson-1", ExperimentID: "exp-1", StartTime: &older,
		})
		So(err, ShouldBeNil)

		_, err = writer.AddDeployment(ctx, &types.Deployment{ID: "dep-new", ModelCardID: id, StartTime: &newer})
		So(err, ShouldBeNil)

		engine := NewEngine(store, WithConfig(Config{IncludeDeployments: true}))

		Convey("When the deployments are listed", func() {
			rows, err := engine.Deployments(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then they are newest first with times as text", func() {
				So(rows, ShouldHaveLength, 2)
				So(rows[0]["deployment"].(map[string]any)["deployment_id"], ShouldEqual, "dep-new")
				So(rows[0]["deployment"].(map[string]any)["start_time"], ShouldEqual, "2024-06-01T00:00:00Z")
				So(rows[0]["device"], ShouldBeEmpty)
				So(rows[1]["device"].(map[string]any)["name"], ShouldEqual, "Jetson")
				So(rows[1]["user"].(map[string]any)["user_id"], ShouldEqual, "bob")
			})
		})

		Convey("When the card is reconstructed", func() {
			doc, err := engine.Reconstruct(ctx, id)
			So(err, ShouldBeNil)

			Convey("Then the deployments are nested", func() {
				So(doc["deployments"], ShouldHaveLength, 2)
			})
		})

		Convey("When an unknown card is asked for", func() {
			_, err := engine.Deployments(ctx, "missing")

			Convey("Then it is not found", func() {
				So(errors.Is(err, errors.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestModelLocation(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	id := ingestCard(t, store, resnetCard())
	engine := NewEngine(store)

	location, err := engine.ModelLocation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, graph.ModelID(id), location.ModelID)
	assert.Equal(t, "https://models/resnet18.pt", location.DownloadURL)

	for _, bad := range []string{"", "not-a-url", "/relative/path", "https://"} {
		err = engine.SetModelLocation(ctx, id, bad)
		assert.True(t, errors.Is(err, errors.ErrValidation), bad)
	}

	require.NoError(t, engine.SetModelLocation(ctx, id, "s3://bucket/model.pt"))

	location, err = engine.ModelLocation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/model.pt", location.DownloadURL)

	_, err = engine.ModelLocation(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(engine.SetModelLocation(ctx, "missing", "https://x/y"), errors.ErrNotFound))
}
