package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
)

/*
Options names the indexes the search primitives query. Both are
provisioned outside this package.
*/
type Options struct {
	VectorIndex   string
	FullTextIndex string
}

/*
Store implements graph.Store in Cypher. Labels, property names and
relationship types are the only values placed into query text; each is
checked against the known kinds or the identifier pattern first, and
every value travels as a parameter.
*/
type Store struct {
	runner Runner
	opts   Options
}

func NewStore(runner Runner, opts Options) *Store {
	if opts.VectorIndex == "" {
		opts.VectorIndex = "modelEmbeddings"
	}

	if opts.FullTextIndex == "" {
		opts.FullTextIndex = "mcFullIndex"
	}

	return &Store{runner: runner, opts: opts}
}

func (store *Store) CreateNode(ctx context.Context, kind graph.Kind, props map[string]any) error {
	label, err := labelOf(kind)

	if err != nil {
		return err
	}

	_, err = store.run(ctx, Statement{
		Cypher: fmt.Sprintf("CREATE (n:%s) SET n = $props", label),
		Params: map[string]any{"props": normalize(props)},
	})

	return err
}

func (store *Store) GetNode(ctx context.Context, ref graph.Ref) (graph.Node, bool, error) {
	match, err := matchRef("n", ref)

	if err != nil {
		return nil, false, err
	}

	records, err := store.run(ctx, Statement{
		Cypher: fmt.Sprintf("MATCH %s RETURN n LIMIT 1", match),
		Params: map[string]any{"n_id": ref.ID},
		Read:   true,
	})

	return firstNode(records, "n", err)
}

func (store *Store) FindNode(ctx context.Context, kind graph.Kind, where map[string]any) (graph.Node, bool, error) {
	label, err := labelOf(kind)

	if err != nil {
		return nil, false, err
	}

	keys := make([]string, 0, len(where))

	for key := range where {
		if !graph.IsIdentifier(key) {
			return nil, false, fmt.Errorf("neo4j: invalid property name %q", key)
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	clauses := make([]string, len(keys))
	params := make(map[string]any, len(keys))

	for i, key := range keys {
		param := fmt.Sprintf("w%d", i)
		clauses[i] = fmt.Sprintf("n.`%s` = $%s", key, param)
		params[param] = normalizeValue(where[key])
	}

	cypher := fmt.Sprintf("MATCH (n:%s)", label)

	if len(clauses) > 0 {
		cypher += " WHERE " + strings.Join(clauses, " AND ")
	}

	records, err := store.run(ctx, Statement{
		Cypher: cypher + " RETURN n LIMIT 1",
		Params: params,
		Read:   true,
	})

	return firstNode(records, "n", err)
}

func (store *Store) MergeNode(ctx context.Context, ref graph.Ref, onCreate map[string]any) (bool, error) {
	match, err := matchRef("n", ref)

	if err != nil {
		return false, err
	}

	props := normalize(onCreate)

	if props == nil {
		props = map[string]any{}
	}

	records, err := store.run(ctx, Statement{
		Cypher: fmt.Sprintf(
			"MERGE %s ON CREATE SET n += $props, n._created = true "+
				"WITH n, coalesce(n._created, false) AS created REMOVE n._created RETURN created",
			match,
		),
		Params: map[string]any{"n_id": ref.ID, "props": props},
	})

	if err != nil {
		return false, err
	}

	return len(records) > 0 && records[0]["created"] == true, nil
}

func (store *Store) SetProperties(ctx context.Context, ref graph.Ref, props map[string]any) (bool, error) {
	match, err := matchRef("n", ref)

	if err != nil {
		return false, err
	}

	records, err := store.run(ctx, Statement{
		Cypher: fmt.Sprintf("MATCH %s SET n += $props RETURN count(n) AS matched", match),
		Params: map[string]any{"n_id": ref.ID, "props": normalize(props)},
	})

	if err != nil {
		return false, err
	}

	return len(records) > 0 && toInt(records[0]["matched"]) > 0, nil
}

func (store *Store) MergeEdge(ctx context.Context, edge graph.Edge) (bool, error) {
	from, err := matchRef("a", edge.From)

	if err != nil {
		return false, err
	}

	to, err := matchRef("b", edge.To)

	if err != nil {
		return false, err
	}

	if !graph.IsIdentifier(edge.Type) {
		return false, fmt.Errorf("neo4j: invalid relationship type %q", edge.Type)
	}

	props := normalize(edge.Props)

	if props == nil {
		props = map[string]any{}
	}

	records, err := store.run(ctx, Statement{
		Cypher: fmt.Sprintf(
			"MATCH %s WITH a LIMIT 1 MATCH %s WITH a, b LIMIT 1 "+
				"MERGE (a)-[r:`%s`]->(b) ON CREATE SET r._created = true SET r += $props "+
				"WITH r, coalesce(r._created, false) AS created REMOVE r._created RETURN created",
			from, to, edge.Type,
		),
		Params: map[string]any{"a_id": edge.From.ID, "b_id": edge.To.ID, "props": props},
	})

	if err != nil {
		return false, err
	}

	if len(records) == 0 {
		return false, errors.NotFound(
			"cannot link %s %q to %s %q: node not found",
			edge.From.Kind, edge.From.ID, edge.To.Kind, edge.To.ID,
		)
	}

	return records[0]["created"] == true, nil
}

func (store *Store) ListNodes(ctx context.Context, kind graph.Kind, limit int) ([]graph.Node, error) {
	label, err := labelOf(kind)

	if err != nil {
		return nil, err
	}

	records, err := store.run(ctx, Statement{
		Cypher: fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT $limit", label),
		Params: map[string]any{"limit": limit},
		Read:   true,
	})

	if err != nil {
		return nil, err
	}

	nodes := make([]graph.Node, 0, len(records))

	for _, record := range records {
		if node := asNode(record["n"]); node != nil {
			nodes = append(nodes, node)
		}
	}

	return nodes, nil
}

func (store *Store) FullTextSearch(ctx context.Context, query string, limit int) ([]graph.Match, error) {
	records, err := store.run(ctx, Statement{
		Cypher: "CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score " +
			"RETURN node, score ORDER BY score DESC LIMIT $limit",
		Params: map[string]any{
			"index": store.opts.FullTextIndex,
			"query": query,
			"limit": limit,
		},
		Read: true,
	})

	return matches(records, err)
}

func (store *Store) VectorSearch(ctx context.Context, vector []float32, k int) ([]graph.Match, error) {
	records, err := store.run(ctx, Statement{
		Cypher: "CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node, score " +
			"RETURN node, score",
		Params: map[string]any{
			"index":  store.opts.VectorIndex,
			"k":      k,
			"vector": normalizeValue(vector),
		},
		Read: true,
	})

	return matches(records, err)
}

const deploymentsCypher = "MATCH (m:`Model` {model_id: $model_id})-[:hasDeployment]->(d:`Deployment`) " +
	"OPTIONAL MATCH (d)-[:deployedIn]->(dev:`Device`) " +
	"OPTIONAL MATCH (d)-[:deploymentInfo]->(exp:`Experiment`) " +
	"OPTIONAL MATCH (exp)-[:submittedBy]->(u:`User`) " +
	"RETURN d, dev, exp, u ORDER BY d.start_time DESC"

func (store *Store) Deployments(ctx context.Context, modelID string) ([]graph.DeploymentRow, error) {
	records, err := store.run(ctx, Statement{
		Cypher: deploymentsCypher,
		Params: map[string]any{"model_id": modelID},
		Read:   true,
	})

	if err != nil {
		return nil, err
	}

	rows := make([]graph.DeploymentRow, 0, len(records))

	for _, record := range records {
		rows = append(rows, graph.DeploymentRow{
			Deployment: asNode(record["d"]),
			Device:     asNode(record["dev"]),
			Experiment: asNode(record["exp"]),
			User:       asNode(record["u"]),
		})
	}

	return rows, nil
}

func (store *Store) Ping(ctx context.Context) error {
	_, err := store.run(ctx, Statement{Cypher: "RETURN 1 AS ok", Read: true})
	return err
}

func (store *Store) Close(ctx context.Context) error {
	return store.runner.Close(ctx)
}

func (store *Store) run(ctx context.Context, statement Statement) ([]Record, error) {
	records, err := store.runner.Run(ctx, statement)

	if err != nil {
		log.Debug("cypher statement failed", "cypher", statement.Cypher, "error", err)
	}

	return records, err
}

func labelOf(kind graph.Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("neo4j: unknown node kind %q", kind)
	}

	return "`" + string(kind) + "`", nil
}

/*
matchRef renders "(v:`Label` {`key`: $v_id})".
*/
func matchRef(variable string, ref graph.Ref) (string, error) {
	label, err := labelOf(ref.Kind)

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("(%s:%s {`%s`: $%s_id})", variable, label, ref.Kind.KeyProperty(), variable), nil
}

func firstNode(records []Record, column string, err error) (graph.Node, bool, error) {
	if err != nil {
		return nil, false, err
	}

	if len(records) == 0 {
		return nil, false, nil
	}

	node := asNode(records[0][column])
	return node, node != nil, nil
}

func matches(records []Record, err error) ([]graph.Match, error) {
	if err != nil {
		return nil, err
	}

	out := make([]graph.Match, 0, len(records))

	for _, record := range records {
		node := asNode(record["node"])

		if node == nil {
			continue
		}

		out = append(out, graph.Match{Node: node, Score: toFloat(record["score"])})
	}

	return out, nil
}

func asNode(value any) graph.Node {
	switch v := value.(type) {
	case map[string]any:
		return graph.Node(v)
	case graph.Node:
		return v
	}

	return nil
}

// normalize widens float32 vectors to float64 before they are sent.
func normalize(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}

	out := make(map[string]any, len(props))

	for k, v := range props {
		out[k] = normalizeValue(v)
	}

	return out
}

func normalizeValue(value any) any {
	if vec, ok := value.([]float32); ok {
		out := make([]float64, len(vec))

		for i, f := range vec {
			out[i] = float64(f)
		}

		return out
	}

	return value
}

func toInt(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}

	return 0
}

func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	}

	return 0
}
