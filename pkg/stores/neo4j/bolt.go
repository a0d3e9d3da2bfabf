package neo4j

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

/*
BoltRunner runs statements over the official driver. The driver owns a
connection pool shared by every session.
*/
type BoltRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewBoltRunner(uri, username, password, database string) (*BoltRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))

	if err != nil {
		return nil, err
	}

	return &BoltRunner{driver: driver, database: database}, nil
}

func (runner *BoltRunner) Run(ctx context.Context, statement Statement) ([]Record, error) {
	mode := neo4j.AccessModeWrite

	if statement.Read {
		mode = neo4j.AccessModeRead
	}

	session := runner.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: runner.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement.Cypher, statement.Params)

	if err != nil {
		return nil, err
	}

	records := make([]Record, 0)

	for result.Next(ctx) {
		raw := result.Record()
		record := make(Record, len(raw.Keys))

		for i, key := range raw.Keys {
			record[key] = fromBolt(raw.Values[i])
		}

		records = append(records, record)
	}

	if err := result.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

/*
Verify checks that the server is reachable with the configured credentials.
*/
func (runner *BoltRunner) Verify(ctx context.Context) error {
	return runner.driver.VerifyConnectivity(ctx)
}

func (runner *BoltRunner) Close(ctx context.Context) error {
	return runner.driver.Close(ctx)
}

func fromBolt(value any) any {
	switch v := value.(type) {
	case dbtype.Node:
		props := make(map[string]any, len(v.Props))

		for k, inner := range v.Props {
			props[k] = fromBolt(inner)
		}

		return props
	case dbtype.Date:
		return time.Time(v)
	case dbtype.LocalDateTime:
		return time.Time(v)
	case dbtype.LocalTime:
		return time.Time(v)
	case dbtype.Time:
		return time.Time(v)
	case dbtype.Duration:
		return v.String()
	case []any:
		out := make([]any, len(v))

		for i, inner := range v {
			out[i] = fromBolt(inner)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(v))

		for k, inner := range v {
			out[k] = fromBolt(inner)
		}

		return out
	}

	return value
}
