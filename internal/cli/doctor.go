package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pedropauloai/claude-agent-monitor/internal/config"
	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the home directory and store are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home directory %s not writable: %v", home, err))
			} else if st, err := store.Open(home); err != nil {
				problems = append(problems, fmt.Sprintf("store open failed: %v", err))
			} else {
				if _, err := st.ListProjects(cmd.Context()); err != nil {
					problems = append(problems, fmt.Sprintf("store query failed: %v", err))
				}
				_ = st.Close()
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}
