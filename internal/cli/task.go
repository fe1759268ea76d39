package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pedropauloai/claude-agent-monitor/internal/store"
	"github.com/pedropauloai/claude-agent-monitor/pkg/models"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskStatusCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		projectID   string
		title       string
		description string
		priority    string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || title == "" {
				return fmt.Errorf("--project and --title are required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			t, err := st.CreateTask(cmd.Context(), store.Task{
				ProjectID:   projectID,
				Title:       title,
				Description: description,
				Priority:    priority,
				Tags:        tags,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (%s)\n", t.TaskID, t.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (low, medium, high)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags used for event correlation (e.g. auth,backend)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var projectID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tasks, err := st.ListTasks(cmd.Context(), projectID, limit)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				assignee := "-"
				if t.AssignedAgent != nil {
					assignee = *t.AssignedAgent
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", t.TaskID, t.Status, assignee, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max tasks to list (0 = all)")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a task and its activity trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" {
				return fmt.Errorf("--id is required")
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			t, err := st.GetTask(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("task not found: %s", taskID)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Task:    %s\n", t.TaskID)
			_, _ = fmt.Fprintf(out, "Title:   %s\n", t.Title)
			_, _ = fmt.Fprintf(out, "Status:  %s\n", t.Status)
			if len(t.Tags) > 0 {
				_, _ = fmt.Fprintf(out, "Tags:    %s\n", strings.Join(t.Tags, ", "))
			}
			if t.AssignedAgent != nil {
				_, _ = fmt.Fprintf(out, "Agent:   %s\n", *t.AssignedAgent)
			}
			if t.ExternalID != nil {
				_, _ = fmt.Fprintf(out, "External: %s\n", *t.ExternalID)
			}

			acts, err := st.ListActivity(cmd.Context(), t.TaskID)
			if err != nil {
				return err
			}
			if len(acts) > 0 {
				_, _ = fmt.Fprintln(out, "Activity:")
				for _, a := range acts {
					_, _ = fmt.Fprintf(out, "  %s  %s  %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Kind, a.Detail)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var taskID, status, assignee string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set task status (manual override; can move backwards and unblock)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID == "" || status == "" {
				return fmt.Errorf("--id and --status are required")
			}
			if !models.ValidStatus(status) {
				return fmt.Errorf("invalid status: %s", status)
			}
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var a *string
			if assignee != "" {
				a = &assignee
			}
			if err := st.UpdateTaskStatus(cmd.Context(), taskID, status, a); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s set to %s\n", taskID, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee to set alongside the status")
	return cmd
}
