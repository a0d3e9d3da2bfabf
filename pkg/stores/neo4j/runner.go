package neo4j

import "context"

/*
Statement is a single parametrized Cypher statement. Read statements may be
routed to followers by runners that support it.
*/
type Statement struct {
	Cypher string
	Params map[string]any
	Read   bool
}

/*
Record maps each returned column to its value. Node values arrive as their
property maps and temporal values as time.Time.
*/
type Record map[string]any

/*
Runner executes statements against Neo4j. Implementations must be safe for
concurrent use.
*/
type Runner interface {
	Run(ctx context.Context, statement Statement) ([]Record, error)
	Close(ctx context.Context) error
}
