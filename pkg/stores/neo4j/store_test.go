package neo4j

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
)

type recordingRunner struct {
	mu         sync.Mutex
	statements []Statement
	responses  [][]Record
	err        error
	closed     bool
}

func (runner *recordingRunner) Run(ctx context.Context, statement Statement) ([]Record, error) {
	runner.mu.Lock()
	defer runner.mu.Unlock()

	runner.statements = append(runner.statements, statement)

	if runner.err != nil {
		return nil, runner.err
	}

	if len(runner.responses) == 0 {
		return nil, nil
	}

	next := runner.responses[0]
	runner.responses = runner.responses[1:]
	return next, nil
}

func (runner *recordingRunner) Close(ctx context.Context) error {
	runner.closed = true
	return nil
}

func (runner *recordingRunner) last() Statement {
	return runner.statements[len(runner.statements)-1]
}

func TestCreateNodePassesPropertiesAsParameter(t *testing.T) {
	runner := &recordingRunner{}
	store := NewStore(runner, Options{})

	err := store.CreateNode(context.Background(), graph.KindModelCard, map[string]any{
		"external_id": "mc",
		"embedding":   []float32{0.5, 1},
	})

	require.NoError(t, err)
	assert.Equal(t, "CREATE (n:`ModelCard`) SET n = $props", runner.last().Cypher)

	props := runner.last().Params["props"].(map[string]any)
	assert.Equal(t, "mc", props["external_id"])
	assert.Equal(t, []float64{0.5, 1}, props["embedding"])
}

func TestUnknownKindNeverReachesQueryText(t *testing.T) {
	runner := &recordingRunner{}
	store := NewStore(runner, Options{})

	err := store.CreateNode(context.Background(), graph.Kind("X) DETACH DELETE (y"), map[string]any{})

	assert.Error(t, err)
	assert.Empty(t, runner.statements)
}

func TestGetNodeUsesKeyProperty(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{{{"n": map[string]any{"model_id": "mc-model", "name": "x"}}}},
	}
	store := NewStore(runner, Options{})

	node, ok, err := store.GetNode(context.Background(), graph.Ref{Kind: graph.KindModel, ID: "mc-model"})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", node["name"])
	assert.Equal(t, "MATCH (n:`Model` {`model_id`: $n_id}) RETURN n LIMIT 1", runner.last().Cypher)
	assert.Equal(t, "mc-model", runner.last().Params["n_id"])
	assert.True(t, runner.last().Read)

	_, ok, err = store.GetNode(context.Background(), graph.Ref{Kind: graph.KindModel, ID: "other"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindNodeBuildsSortedPredicates(t *testing.T) {
	runner := &recordingRunner{}
	store := NewStore(runner, Options{})

	_, ok, err := store.FindNode(context.Background(), graph.KindModelCard, map[string]any{
		"version": "1.0",
		"name":    "resnet18",
	})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t,
		"MATCH (n:`ModelCard`) WHERE n.`name` = $w0 AND n.`version` = $w1 RETURN n LIMIT 1",
		runner.last().Cypher,
	)
	assert.Equal(t, "resnet18", runner.last().Params["w0"])

	_, _, err = store.FindNode(context.Background(), graph.KindModelCard, map[string]any{"a` = 1 OR true //": 1})
	assert.Error(t, err)
}

func TestMergeNodeReportsCreation(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{{{"created": true}}, {{"created": false}}},
	}
	store := NewStore(runner, Options{})
	ref := graph.Ref{Kind: graph.KindUser, ID: "alice"}

	created, err := store.MergeNode(context.Background(), ref, map[string]any{"username": "alice"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, runner.last().Cypher, "MERGE (n:`User` {`user_id`: $n_id}) ON CREATE SET n += $props")

	created, err = store.MergeNode(context.Background(), ref, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotNil(t, runner.last().Params["props"])
}

func TestSetProperties(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{{{"matched": int64(1)}}, {{"matched": float64(0)}}},
	}
	store := NewStore(runner, Options{})
	ref := graph.Ref{Kind: graph.KindModel, ID: "mc-model"}

	ok, err := store.SetProperties(context.Background(), ref, map[string]any{"location": "https://x"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "MATCH (n:`Model` {`model_id`: $n_id}) SET n += $props RETURN count(n) AS matched", runner.last().Cypher)

	ok, err = store.SetProperties(context.Background(), ref, map[string]any{"location": "https://x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeEdge(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{{{"created": true}}, nil},
	}
	store := NewStore(runner, Options{})
	edge := graph.Edge{
		From:  graph.Ref{Kind: graph.KindModelCard, ID: "a"},
		To:    graph.Ref{Kind: graph.KindModelCard, ID: "b"},
		Type:  graph.RelRevisionOf,
		Props: map[string]any{"confidence": 0.96},
	}

	created, err := store.MergeEdge(context.Background(), edge)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, runner.last().Cypher, "MERGE (a)-[r:`REVISION_OF`]->(b)")
	assert.Equal(t, "a", runner.last().Params["a_id"])
	assert.Equal(t, "b", runner.last().Params["b_id"])

	_, err = store.MergeEdge(context.Background(), edge)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	edge.Type = "X]->(c"
	_, err = store.MergeEdge(context.Background(), edge)
	assert.Error(t, err)
	assert.Len(t, runner.statements, 2)
}

func TestSearchPrimitives(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{
			{{"node": map[string]any{"external_id": "a"}, "score": 2.5}},
			{{"node": map[string]any{"external_id": "b"}, "score": 0.97}, {"node": nil, "score": 0.5}},
		},
	}
	store := NewStore(runner, Options{FullTextIndex: "ft", VectorIndex: "vec"})

	found, err := store.FullTextSearch(context.Background(), "resnet", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2.5, found[0].Score)
	assert.Equal(t, "ft", runner.last().Params["index"])
	assert.Equal(t, 10, runner.last().Params["limit"])

	similar, err := store.VectorSearch(context.Background(), []float32{1, 0}, 1000)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "b", similar[0].Node["external_id"])
	assert.Equal(t, "vec", runner.last().Params["index"])
	assert.Equal(t, []float64{1, 0}, runner.last().Params["vector"])
}

func TestDeploymentsMapsOptionalColumns(t *testing.T) {
	runner := &recordingRunner{
		responses: [][]Record{{
			{"d": map[string]any{"deployment_id": "d1"}, "dev": nil, "exp": map[string]any{"experiment_id": "e"}, "u": nil},
		}},
	}
	store := NewStore(runner, Options{})

	rows, err := store.Deployments(context.Background(), "mc-model")

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "d1", rows[0].Deployment["deployment_id"])
	assert.Nil(t, rows[0].Device)
	assert.Equal(t, "e", rows[0].Experiment["experiment_id"])
	assert.Equal(t, "mc-model", runner.last().Params["model_id"])
}

func TestRunnerErrorsPropagate(t *testing.T) {
	boom := stderrors.New("connection refused")
	runner := &recordingRunner{err: boom}
	store := NewStore(runner, Options{})

	err := store.Ping(context.Background())
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.Close(context.Background()))
	assert.True(t, runner.closed)
}
