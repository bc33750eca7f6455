package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fbuddy/rag/internal/rag"
)

var (
	askUser    string
	askContext []string
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer one question through the retrieval pipeline",
	Example: `  fbuddy-rag ask "Can I afford a 20000 phone?" --user u1 \
    --context current_balance=15000 --context monthly_budget=30000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "", "user ID whose private documents are searched")
	askCmd.Flags().StringArrayVar(&askContext, "context", nil, "realtime value as key=value (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	realtime, err := parseContext(askContext)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	services, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer services.Close()

	answer, err := services.Pipeline.Answer(ctx, rag.Request{
		Query:    strings.Join(args, " "),
		UserID:   askUser,
		Realtime: realtime,
	})
	if err != nil {
		return err
	}

	cmd.Println(answer.Answer)
	cmd.Println()
	cmd.Printf("Sources: %s\n", strings.Join(answer.Sources, ", "))
	cmd.Printf("Context chunks: %d\n", answer.ContextUsed)
	return nil
}

// parseContext turns key=value pairs into realtime values. Numeric values
// become float64 so they render like JSON numbers.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --context %q, want key=value", pair)
		}
		value = strings.TrimSpace(value)
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = f
		} else {
			out[key] = value
		}
	}
	return out, nil
}
