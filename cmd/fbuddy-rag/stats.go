package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fbuddy/rag/internal/app"
	"github.com/fbuddy/rag/internal/vectorindex"
)

const (
	probeValue     = 0.1
	previewLen     = 50
	defaultInspect = 5
)

var (
	inspectSource string
	inspectLimit  int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print vector index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		services, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer services.Close()
		return printStats(cmd, services)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List stored chunks of one source document",
	Long: `Probes the index with a constant vector filtered to --source and
prints the matching chunk IDs with a short preview, then the index stats.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectSource, "source", "", "source document name, e.g. context.pdf")
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", defaultInspect, "maximum number of chunks")
	inspectCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(statsCmd, inspectCmd)
}

func printStats(cmd *cobra.Command, services *app.Services) error {
	stats, err := services.Index.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	cmd.Printf("Index: %s\n", services.IndexName)
	cmd.Printf("Total vectors: %d\n", stats.TotalVectorCount)
	cmd.Printf("Dimension: %d\n", stats.Dimension)
	return nil
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	probe := make([]float32, cfg.VectorStore.Dimension)
	for i := range probe {
		probe[i] = probeValue
	}

	matches, err := services.Index.Query(ctx, vectorindex.Query{
		Vector: probe,
		TopK:   inspectLimit,
		Filter: vectorindex.Filter{Source: inspectSource},
	})
	if err != nil {
		return fmt.Errorf("failed to query index: %w", err)
	}

	if len(matches) == 0 {
		cmd.Printf("%q is not in the index.\n", inspectSource)
	} else {
		cmd.Printf("Found %d chunks from %q\n", len(matches), inspectSource)
		for _, m := range matches {
			cmd.Printf("  - %s: %s...\n", m.ID, preview(m.Text))
		}
	}
	cmd.Println()
	return printStats(cmd, services)
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}
