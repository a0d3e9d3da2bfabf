package graph

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/theapemachine/mcgraph/pkg/errors"
)

type memoryEdge struct {
	from  Ref
	to    Ref
	typ   string
	props map[string]any
}

/*
MemoryStore is an in-process Store used by tests and the "memory" store
transport. Like CREATE in Cypher, CreateNode does not enforce key
uniqueness, so duplicated writes stay observable through Count.
*/
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[Kind][]Node
	edges []*memoryEdge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[Kind][]Node),
	}
}

func (store *MemoryStore) CreateNode(ctx context.Context, kind Kind, props map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := props[kind.KeyProperty()]; !ok {
		return fmt.Errorf("memory store: %s node without %s", kind, kind.KeyProperty())
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.nodes[kind] = append(store.nodes[kind], Node(props).Clone())
	return nil
}

func (store *MemoryStore) GetNode(ctx context.Context, ref Ref) (Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	node := store.lookup(ref)

	if node == nil {
		return nil, false, nil
	}

	return node.Clone(), true, nil
}

func (store *MemoryStore) FindNode(ctx context.Context, kind Kind, where map[string]any) (Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, node := range store.nodes[kind] {
		if matches(node, where) {
			return node.Clone(), true, nil
		}
	}

	return nil, false, nil
}

func (store *MemoryStore) MergeNode(ctx context.Context, ref Ref, onCreate map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.lookup(ref) != nil {
		return false, nil
	}

	node := Node(onCreate).Clone()

	if node == nil {
		node = Node{}
	}

	node[ref.Kind.KeyProperty()] = ref.ID
	store.nodes[ref.Kind] = append(store.nodes[ref.Kind], node)
	return true, nil
}

func (store *MemoryStore) SetProperties(ctx context.Context, ref Ref, props map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	node := store.lookup(ref)

	if node == nil {
		return false, nil
	}

	for k, v := range props {
		if v == nil {
			delete(node, k)
			continue
		}

		node[k] = v
	}

	return true, nil
}

func (store *MemoryStore) MergeEdge(ctx context.Context, edge Edge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if !IsIdentifier(edge.Type) {
		return false, fmt.Errorf("memory store: invalid relationship type %q", edge.Type)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.lookup(edge.From) == nil || store.lookup(edge.To) == nil {
		return false, errors.NotFound(
			"cannot link %s %q to %s %q: node not found",
			edge.From.Kind, edge.From.ID, edge.To.Kind, edge.To.ID,
		)
	}

	for _, existing := range store.edges {
		if existing.from == edge.From && existing.to == edge.To && existing.typ == edge.Type {
			for k, v := range edge.Props {
				existing.props[k] = v
			}

			return false, nil
		}
	}

	props := make(map[string]any, len(edge.Props))

	for k, v := range edge.Props {
		props[k] = v
	}

	store.edges = append(store.edges, &memoryEdge{
		from:  edge.From,
		to:    edge.To,
		typ:   edge.Type,
		props: props,
	})

	return true, nil
}

func (store *MemoryStore) ListNodes(ctx context.Context, kind Kind, limit int) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	out := make([]Node, 0)

	for _, node := range store.nodes[kind] {
		if limit > 0 && len(out) >= limit {
			break
		}

		out = append(out, node.Clone())
	}

	return out, nil
}

var fullTextFields = []string{"name", "short_description", "full_description", "keywords"}

/*
FullTextSearch scores each ModelCard by how many query terms occur in its
indexed text fields.
*/
func (store *MemoryStore) FullTextSearch(ctx context.Context, query string, limit int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))

	store.mu.RLock()
	defer store.mu.RUnlock()

	out := make([]Match, 0)

	for _, node := range store.nodes[KindModelCard] {
		words := make(map[string]bool)

		for _, field := range fullTextFields {
			if text, ok := node[field].(string); ok {
				for _, word := range strings.Fields(strings.ToLower(text)) {
					words[strings.Trim(word, ".,;:!?()\"'")] = true
				}
			}
		}

		score := 0.0

		for _, term := range terms {
			if words[term] {
				score++
			}
		}

		if score > 0 {
			out = append(out, Match{Node: node.Clone(), Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

/*
VectorSearch returns the k ModelCards whose embedding has the highest
cosine similarity with vector.
*/
func (store *MemoryStore) VectorSearch(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	out := make([]Match, 0)

	for _, node := range store.nodes[KindModelCard] {
		embedding := toFloat64s(node["embedding"])

		if len(embedding) == 0 || len(embedding) != len(vector) {
			continue
		}

		out = append(out, Match{Node: node.Clone(), Score: cosine(vector, embedding)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if k > 0 && len(out) > k {
		out = out[:k]
	}

	return out, nil
}

func (store *MemoryStore) Deployments(ctx context.Context, modelID string) ([]DeploymentRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	model := Ref{Kind: KindModel, ID: modelID}
	rows := make([]DeploymentRow, 0)

	for _, edge := range store.edges {
		if edge.from != model || edge.typ != "hasDeployment" || edge.to.Kind != KindDeployment {
			continue
		}

		row := DeploymentRow{Deployment: store.lookup(edge.to).Clone()}
		row.Device = store.follow(edge.to, "deployedIn", KindDevice)
		row.Experiment = store.follow(edge.to, "deploymentInfo", KindExperiment)

		if row.Experiment != nil {
			experiment := Ref{Kind: KindExperiment, ID: fmt.Sprint(row.Experiment["experiment_id"])}
			row.User = store.follow(experiment, "submittedBy", KindUser)
		}

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return startTime(rows[i].Deployment).After(startTime(rows[j].Deployment))
	})

	return rows, nil
}

func (store *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (store *MemoryStore) Close(ctx context.Context) error {
	return nil
}

/*
Count returns how many nodes of kind carry the given key, duplicates included.
*/
func (store *MemoryStore) Count(ref Ref) int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	count := 0

	for _, node := range store.nodes[ref.Kind] {
		if fmt.Sprint(node[ref.Kind.KeyProperty()]) == ref.ID {
			count++
		}
	}

	return count
}

/*
CountKind returns the number of nodes stored under kind.
*/
func (store *MemoryStore) CountKind(kind Kind) int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return len(store.nodes[kind])
}

/*
Edges returns every edge leaving from, in insertion order.
*/
func (store *MemoryStore) Edges(from Ref) []Edge {
	store.mu.RLock()
	defer store.mu.RUnlock()

	out := make([]Edge, 0)

	for _, edge := range store.edges {
		if edge.from != from {
			continue
		}

		props := make(map[string]any, len(edge.props))

		for k, v := range edge.props {
			props[k] = v
		}

		out = append(out, Edge{From: edge.from, To: edge.to, Type: edge.typ, Props: props})
	}

	return out
}

func (store *MemoryStore) lookup(ref Ref) Node {
	key := ref.Kind.KeyProperty()

	for _, node := range store.nodes[ref.Kind] {
		if id, ok := node[key]; ok && fmt.Sprint(id) == ref.ID {
			return node
		}
	}

	return nil
}

func (store *MemoryStore) follow(from Ref, typ string, kind Kind) Node {
	for _, edge := range store.edges {
		if edge.from == from && edge.typ == typ && edge.to.Kind == kind {
			return store.lookup(edge.to).Clone()
		}
	}

	return nil
}

func matches(node Node, where map[string]any) bool {
	for k, want := range where {
		got, ok := node[k]

		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}

	return true
}

func startTime(node Node) time.Time {
	switch v := node["start_time"].(type) {
	case time.Time:
		return v
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed
		}
	}

	return time.Time{}
}

func toFloat64s(v any) []float64 {
	switch vec := v.(type) {
	case []float64:
		return vec
	case []float32:
		out := make([]float64, len(vec))
		for i, f := range vec {
			out[i] = float64(f)
		}
		return out
	case []any:
		out := make([]float64, 0, len(vec))
		for _, f := range vec {
			if n, ok := f.(float64); ok {
				out = append(out, n)
			}
		}
		return out
	}

	return nil
}

func cosine(a []float32, b []float64) float64 {
	var dot, na, nb float64

	for i := range a {
		x := float64(a[i])
		dot += x * b[i]
		na += x * x
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
