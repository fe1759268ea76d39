package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

func newEventsCmd() *cobra.Command {
	var sessionID string
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List a session's recorded events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			events, err := st.ListEvents(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}
			for _, e := range events {
				tool := "-"
				if e.ToolName != nil {
					tool = *e.ToolName
				}
				detail := ""
				if e.FilePath != nil {
					detail = *e.FilePath
				}
				if e.Error != nil {
					detail = "error: " + *e.Error
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-12s %s\n",
					e.CreatedAt.Format("15:04:05"), e.Kind, tool, detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().IntVar(&limit, "limit", models.DefaultEventListLimit, "Max events to list")
	return cmd
}
