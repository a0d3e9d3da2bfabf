package graph

import "context"

/*
Ref addresses a single node by kind and key value.
*/
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

/*
Node is the property map of a stored node.
*/
type Node map[string]any

/*
Clone returns a shallow copy of the node's properties.
*/
func (node Node) Clone() Node {
	if node == nil {
		return nil
	}

	out := make(Node, len(node))

	for k, v := range node {
		out[k] = v
	}

	return out
}

/*
Edge is a typed, directed relationship between two existing nodes.
*/
type Edge struct {
	From  Ref
	To    Ref
	Type  string
	Props map[string]any
}

/*
Match is a search hit.
*/
type Match struct {
	Node  Node
	Score float64
}

/*
DeploymentRow is one deployment joined with its optional device,
experiment and the experiment's submitting user. Absent parts are nil.
*/
type DeploymentRow struct {
	Deployment Node
	Device     Node
	Experiment Node
	User       Node
}

/*
Store is the graph access layer. It is the only component that talks to
the graph database, and every method must be safe for concurrent use.
Missing nodes are reported through the bool results, never as errors,
except for MergeEdge which needs both endpoints to exist.
*/
type Store interface {
	// CreateNode always creates a new node, even when one with the same key exists.
	CreateNode(ctx context.Context, kind Kind, props map[string]any) error
	GetNode(ctx context.Context, ref Ref) (Node, bool, error)
	// FindNode matches on exact equality of every property in where.
	FindNode(ctx context.Context, kind Kind, where map[string]any) (Node, bool, error)
	// MergeNode creates ref with onCreate properties if it does not exist.
	MergeNode(ctx context.Context, ref Ref, onCreate map[string]any) (bool, error)
	// SetProperties overwrites the given properties; false when ref is absent.
	SetProperties(ctx context.Context, ref Ref, props map[string]any) (bool, error)
	// MergeEdge keeps at most one edge of a type per ordered pair and updates its properties.
	MergeEdge(ctx context.Context, edge Edge) (bool, error)
	ListNodes(ctx context.Context, kind Kind, limit int) ([]Node, error)
	FullTextSearch(ctx context.Context, query string, limit int) ([]Match, error)
	VectorSearch(ctx context.Context, vector []float32, k int) ([]Match, error)
	Deployments(ctx context.Context, modelID string) ([]DeploymentRow, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
