package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pedropauloai/claude-agent-monitor/internal/config"
	"github.com/pedropauloai/claude-agent-monitor/internal/router"
	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their directory registrations",
	}
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectRegisterCmd())
	cmd.AddCommand(newProjectUnregisterCmd())
	cmd.AddCommand(newProjectResolveCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	home := config.MustHomeFrom(cmd.Context())
	return store.Open(home)
}

func newProjectCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			p, err := st.CreateProject(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s)\n", p.Name, p.ProjectID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			projects, err := st.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range projects {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ProjectID, p.Name)
			}
			return nil
		},
	}
	return cmd
}

func newProjectRegisterCmd() *cobra.Command {
	var projectID, dir, planningPath string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Map a working directory to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || dir == "" {
				return fmt.Errorf("--project and --dir are required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if p, err := st.GetProject(cmd.Context(), projectID); err != nil {
				return err
			} else if p == nil {
				return fmt.Errorf("unknown project: %s", projectID)
			}
			var planning *string
			if planningPath != "" {
				planning = &planningPath
			}
			rt := router.New(st)
			if err := rt.RegisterDirectory(cmd.Context(), dir, projectID, planning); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", dir, projectID)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory to register")
	cmd.Flags().StringVar(&planningPath, "planning-path", "", "Optional path to the project's planning file")
	return cmd
}

func newProjectUnregisterCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Remove a directory mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return fmt.Errorf("--dir is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rt := router.New(st)
			if err := rt.UnregisterDirectory(cmd.Context(), dir); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unregistered %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Registered directory")
	return cmd
}

func newProjectResolveCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which project a directory resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return fmt.Errorf("--dir is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rt := router.New(st)
			projectID, ok, err := rt.ResolveProject(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no project registered for %s", dir)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), projectID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to resolve")
	return cmd
}
