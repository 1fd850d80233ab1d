package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatMinFiles     int
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a prompt and report which document context reached the model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "conversation id")
	chatCmd.Flags().IntVar(&chatMinFiles, "min-files", 0, "fail unless at least this many files were in the context")
}

func runChat(cmd *cobra.Command, args []string) error {
	res, err := newClient().Chat(cmd.Context(), strings.Join(args, " "), chatConversation)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "conversation: %s\n", res.ConversationID)
	fmt.Fprintf(out, "context:      stage=%q files=%d chars=%d placement=%s\n",
		res.Context.Stage, res.Context.FileCount, res.Context.Chars, res.Context.Placement)
	fmt.Fprintf(out, "dashboard:    %t\n\n", res.HasDashboard())
	fmt.Fprintln(out, res.Reply)

	if res.Context.FileCount < chatMinFiles {
		return fmt.Errorf("expected at least %d files in context, got %d", chatMinFiles, res.Context.FileCount)
	}
	if chatMinFiles > 0 && res.Context.Placement == "none" {
		return errors.New("document context was not placed in the prompt")
	}
	return nil
}
