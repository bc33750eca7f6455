package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var scanBillCmd = &cobra.Command{
	Use:   "scan-bill IMAGE",
	Short: "Extract merchant, amount, category and date from a bill photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanBill,
}

func init() {
	rootCmd.AddCommand(scanBillCmd)
}

func runScanBill(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx := cmd.Context()
	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	rec, err := services.Bills.Extract(ctx, image)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
