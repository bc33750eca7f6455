package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestUser string

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest PDF or Word documents into the index",
	Long: `Splits, embeds and stores each file. Chunks are global unless --user
is given, in which case only that user can retrieve them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "owner user ID for the ingested chunks")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	failed := 0
	total := 0
	for _, path := range args {
		n, err := services.Processor.IngestFile(ctx, path, ingestUser)
		total += n
		if err != nil {
			failed++
			cmd.Printf("  FAIL %s (%d chunks stored): %v\n", path, n, err)
			continue
		}
		cmd.Printf("  OK   %s (%d chunks)\n", path, n)
	}

	cmd.Printf("Processed %d files, ingested %d chunks\n", len(args), total)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
