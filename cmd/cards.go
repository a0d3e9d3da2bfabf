package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/theapemachine/mcgraph/pkg/types"
)

var (
	updateFlag bool
	linksFlag  bool
	limitFlag  int

	ingestCmd = &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest one or more model card JSON files",
		Long:  longIngest,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, app *application) error {
				results := make([]map[string]any, 0, len(args))

				for _, path := range args {
					card, err := readCard(path)

					if err != nil {
						return err
					}

					if updateFlag {
						id, err := app.ingester.Update(ctx, card.ID, card)

						if err != nil {
							return err
						}

						results = append(results, map[string]any{"file": path, "model_card_id": id})
						continue
					}

					existed, id, err := app.ingester.Ingest(ctx, card)

					if err != nil {
						return err
					}

					log.Info("ingested model card", "file", path, "id", id, "existed", existed)
					results = append(results, map[string]any{"file": path, "model_card_id": id, "existed": existed})
				}

				return writeJSON(cmd.OutOrStdout(), results)
			})
		},
	}

	reconstructCmd = &cobra.Command{
		Use:   "reconstruct <id>",
		Short: "Print a model card as a nested document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, app *application) error {
				doc, err := app.reconstructor.Reconstruct(ctx, args[0])

				if err != nil {
					return err
				}

				if linksFlag {
					return writeJSON(cmd.OutOrStdout(), app.reconstructor.LinkHeaders(doc))
				}

				return writeJSON(cmd.OutOrStdout(), doc)
			})
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over model cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, app *application) error {
				summaries, err := app.reconstructor.Search(ctx, args[0])

				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), summaries)
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List model cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd, func(ctx context.Context, app *application) error {
				summaries, err := app.reconstructor.ListAll(ctx, limitFlag)

				if err != nil {
					return err
				}

				return writeJSON(cmd.OutOrStdout(), summaries)
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(ingestCmd, reconstructCmd, searchCmd, listCmd)

	ingestCmd.Flags().BoolVarP(&updateFlag, "update", "u", false, "Update the card named by each file's id")
	reconstructCmd.Flags().BoolVarP(&linksFlag, "links", "l", false, "Print the link headers instead of the document")
	listCmd.Flags().IntVarP(&limitFlag, "limit", "n", 100, "Maximum number of cards to list")
}

func withApplication(cmd *cobra.Command, fn func(context.Context, *application) error) error {
	ctx := cmd.Context()

	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApplication(ctx)

	if err != nil {
		return err
	}

	defer app.close(context.Background())

	return fn(ctx, app)
}

func readCard(path string) (*types.ModelCard, error) {
	buf, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	card := &types.ModelCard{}

	if err := json.Unmarshal(buf, card); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return card, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

var longIngest = `
Ingest model card JSON files into the graph.

Examples:
  # Ingest a single card
  mcgraph ingest resnet18.json

  # Replace an existing card's properties
  mcgraph ingest --update resnet18.json
`
