package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fbuddy/rag/internal/logger"
	"github.com/fbuddy/rag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Serves /health, /upload-documents, /chat, /stats and /scan-bill.
When the index holds fewer than bootstrap.min_vectors vectors, the
bootstrap seed document is ingested before listening.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	logger.Section("Startup")
	if n, err := services.Seed(ctx); err != nil {
		logger.Warn("Startup seeding failed: %v", err)
	} else if n > 0 {
		logger.Info("Seeded index with %d chunks", n)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(server.Deps{
		Ingester:  services.Processor,
		Answerer:  services.Pipeline,
		Bills:     services.Bills,
		Index:     services.Index,
		IndexName: services.IndexName,
	}, cfg.Server.MaxUploadBytes)

	return srv.Run(ctx, addr)
}
