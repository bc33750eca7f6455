package main

import (
	"github.com/spf13/cobra"

	"github.com/fbuddy/rag/internal/tui"
)

var (
	chatUser    string
	chatContext []string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal chat over the indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "", "user ID whose private documents are searched")
	chatCmd.Flags().StringArrayVar(&chatContext, "context", nil, "realtime value as key=value (repeatable)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	realtime, err := parseContext(chatContext)
	if err != nil {
		return err
	}

	services, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer services.Close()

	deps := tui.Deps{
		Answerer:  services.Pipeline,
		Index:     services.Index,
		IndexName: services.IndexName,
		UserID:    chatUser,
		Realtime:  realtime,
	}
	if switcher, ok := services.Generator.(tui.ModelSwitcher); ok {
		deps.Models = switcher
	}

	return tui.NewApp(deps).Run()
}
