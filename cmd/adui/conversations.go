// ABOUTME: conversations commands: list stored conversations and create new ones
// ABOUTME: Output is a table by default or the raw JSON records with --json

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// conversationRow is the subset of a conversation record shown in tables
type conversationRow struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage stored conversations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE:  runConversationsList,
	}
	list.Flags().Bool("json", false, "Print raw JSON records")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a conversation and print its id",
		Args:  cobra.NoArgs,
		RunE:  runConversationsCreate,
	}
	create.Flags().String("title", "", "Conversation title (required)")
	create.Flags().String("provider", "", "Provider name")
	create.Flags().String("model", "", "Model name")
	create.Flags().String("system-prompt", "", "System prompt")
	_ = create.MarkFlagRequired("title")

	cmd.AddCommand(list, create)
	return cmd
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.Conversations().List(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPROVIDER\tUPDATED")
	for _, raw := range records {
		var row conversationRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("decoding conversation: %w", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.ID, row.Title, row.Provider, row.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runConversationsCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	title, _ := cmd.Flags().GetString("title")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	systemPrompt, _ := cmd.Flags().GetString("system-prompt")

	payload, err := json.Marshal(map[string]string{
		"title":         title,
		"provider":      provider,
		"model":         model,
		"system_prompt": systemPrompt,
	})
	if err != nil {
		return err
	}

	id, err := a.Conversations().Create(cmd.Context(), payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
