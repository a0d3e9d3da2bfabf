package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/theapemachine/mcgraph/pkg/errors"
	"github.com/theapemachine/mcgraph/pkg/graph"
	"github.com/theapemachine/mcgraph/pkg/types"
)

/*
IDStrategy decides how a model card without an id gets one. A deployment
uses exactly one strategy for its lifetime.
*/
type IDStrategy string

const (
	// IDStrategyHash derives "<name>-<version>-<8 hex of sha256(author:name:version)>".
	IDStrategyHash IDStrategy = "hash"
	// IDStrategyRandom assigns a random UUID.
	IDStrategyRandom IDStrategy = "random"
	// IDStrategyComposite derives "<author>-<name>-<version>", lower-cased.
	IDStrategyComposite IDStrategy = "composite"
	// IDStrategyNatural joins the parts as given: "<author>_<name>_<version>".
	IDStrategyNatural IDStrategy = "natural"
)

func ParseIDStrategy(value string) (IDStrategy, error) {
	switch strategy := IDStrategy(strings.ToLower(strings.TrimSpace(value))); strategy {
	case "", IDStrategyHash, IDStrategyRandom, IDStrategyComposite, IDStrategyNatural:
		return strategy, nil
	}

	return "", errors.Validation("unknown id strategy %q", value)
}

/*
PID is the hash-based persistent identifier of a model card.
*/
func PID(author, name, version string) string {
	sum := sha256.Sum256([]byte(author + ":" + name + ":" + version))
	return fmt.Sprintf("%s-%s-%s", name, version, hex.EncodeToString(sum[:])[:8])
}

/*
CompositeID is the readable persistent identifier: author, name and
version lower-cased, spaces replaced by underscores, joined by dashes.
*/
func CompositeID(author, name, version string) string {
	parts := []string{author, name, version}

	for i, part := range parts {
		parts[i] = strings.ReplaceAll(strings.ToLower(part), " ", "_")
	}

	return strings.Join(parts, "-")
}

/*
NaturalID joins author, name and version with underscores, unchanged.
*/
func NaturalID(author, name, version string) string {
	return author + "_" + name + "_" + version
}

/*
GeneratePID returns the persistent identifier for the given parts and
whether a model card with that id is already stored.
*/
func (engine *Engine) GeneratePID(ctx context.Context, author, name, version string) (pid string, exists bool, err error) {
	if err = types.ValidatePID(author, name, version); err != nil {
		return "", false, err
	}

	pid = PID(author, name, version)

	_, exists, err = engine.store.GetNode(ctx, graph.Ref{Kind: graph.KindModelCard, ID: pid})

	if err != nil {
		return "", false, errors.Store("check_pid", err)
	}

	return pid, exists, nil
}

func (engine *Engine) assignID(card *types.ModelCard) string {
	if card.ID != "" {
		return card.ID
	}

	switch engine.config.strategy() {
	case IDStrategyHash:
		return PID(card.Author, card.Name, card.Version)
	case IDStrategyComposite:
		return CompositeID(card.Author, card.Name, card.Version)
	case IDStrategyNatural:
		return NaturalID(card.Author, card.Name, card.Version)
	}

	return uuid.NewString()
}
