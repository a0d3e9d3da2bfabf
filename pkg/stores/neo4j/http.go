package neo4j

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiberClient "github.com/gofiber/fiber/v3/client"
)

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []any `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

/*
HTTPRunner sends each statement to the transactional HTTP endpoint as a
single auto-committed transaction.
*/
type HTTPRunner struct {
	conn     *fiberClient.Client
	path     string
	username string
	password string
}

func NewHTTPRunner(endpoint, database, username, password string, timeout time.Duration) *HTTPRunner {
	if database == "" {
		database = "neo4j"
	}

	return &HTTPRunner{
		conn:     fiberClient.New().SetBaseURL(endpoint).SetTimeout(timeout),
		path:     "/db/" + url.PathEscape(database) + "/tx/commit",
		username: username,
		password: password,
	}
}

// Run sends a single Cypher statement with optional parameters and
// returns the rows of its only result set.
func (runner *HTTPRunner) Run(ctx context.Context, statement Statement) ([]Record, error) {
	header := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}

	if runner.username != "" {
		header["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString(
			[]byte(runner.username+":"+runner.password),
		)
	}

	resp, err := runner.conn.Post(runner.path, fiberClient.Config{
		Ctx:    ctx,
		Header: header,
		Body: txRequest{
			Statements: []txStatement{{
				Statement:  statement.Cypher,
				Parameters: statement.Params,
			}},
		},
	})

	if err != nil {
		return nil, err
	}

	defer resp.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("neo4j: status %d", resp.StatusCode())
	}

	var out txResponse

	if err := resp.JSON(&out); err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("neo4j: %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}

	if len(out.Results) == 0 {
		return nil, nil
	}

	result := out.Results[0]
	records := make([]Record, 0, len(result.Data))

	for _, data := range result.Data {
		record := make(Record, len(result.Columns))

		for i, column := range result.Columns {
			if i < len(data.Row) {
				record[column] = data.Row[i]
			}
		}

		records = append(records, record)
	}

	return records, nil
}

func (runner *HTTPRunner) Close(ctx context.Context) error {
	return nil
}
