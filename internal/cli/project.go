package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  `Create, list, edit and delete the projects on the board.`,
}

var projectNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a new project",
	Long: `Create a new project on the board.

Examples:
  cowork project new "Launch"
  cowork project new "Launch" --color "#FF6B6B" --deadline 2026-11-30
  cowork project new "Offsite" --deadline "next friday"`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectNew,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects by priority",
	RunE:    runProjectList,
}

var projectEditCmd = &cobra.Command{
	Use:   "edit [project]",
	Short: "Change a project's name, color or deadline",
	Long: `Change a project's fields. The project can be given by ID, ID prefix or name.

Examples:
  cowork project edit launch --deadline 2026-12-15
  cowork project edit 3f2a --name "Launch v2" --color "#4ECDC4"`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectEdit,
}

var projectDeleteCmd = &cobra.Command{
	Use:     "delete [project]",
	Aliases: []string{"rm"},
	Short:   "Delete a project and all of its tasks",
	Args:    cobra.ExactArgs(1),
	RunE:    runProjectDelete,
}

var (
	projectName     string
	projectColor    string
	projectDeadline string
)

func init() {
	projectNewCmd.Flags().StringVarP(&projectColor, "color", "c", "", "Project color (hex), defaults to default_color")
	projectNewCmd.Flags().StringVarP(&projectDeadline, "deadline", "d", "", "Deadline (YYYY-MM-DD or e.g. \"next friday\")")

	projectEditCmd.Flags().StringVarP(&projectName, "name", "n", "", "New name")
	projectEditCmd.Flags().StringVarP(&projectColor, "color", "c", "", "New color (hex)")
	projectEditCmd.Flags().StringVarP(&projectDeadline, "deadline", "d", "", "New deadline, empty to clear")

	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectEditCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

func runProjectNew(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("project name is required")
	}
	deadline, err := normalizeDeadline(projectDeadline, time.Now())
	if err != nil {
		return err
	}

	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.store.NewProject(cmd.Context(), name, s.cfg.ProjectColor(projectColor), deadline)
	if err != nil {
		logger.Error("Failed to save project", logger.F("project_id", p.ID), logger.F("error", err))
		return fmt.Errorf("project %s created locally but not saved: %w", p.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created project: %s (id: %s)\n", p.Name, shortID(p.ID))
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	projects := s.store.Projects()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found. Add one with: cowork project new \"Name\"")
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-8s  %-24s  %-3s  %-12s  %s\n", "ID", "Name", "Pri", "Deadline", "Tasks")
	fmt.Fprintln(out, strings.Repeat("─", 64))

	total := 0
	for _, p := range model.RankByDeadline(projects, time.Now()) {
		tasks := s.store.TasksForProject(p.ID)
		total += len(tasks)
		fmt.Fprintf(out, "  %-8s  %-24s  P%-2d  %-12s  %d\n",
			shortID(p.ID), clip(p.Name, 24), p.Priority, deadlineLabel(p), len(tasks))
	}

	fmt.Fprintln(out, strings.Repeat("─", 64))
	fmt.Fprintf(out, "  %d projects, %d tasks\n\n", len(projects), total)
	return nil
}

func runProjectEdit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("name") && !flags.Changed("color") && !flags.Changed("deadline") {
		return fmt.Errorf("nothing to change, use --name, --color or --deadline")
	}

	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	p, err := resolveProject(s.store, args[0])
	if err != nil {
		return err
	}

	if flags.Changed("name") {
		name := strings.TrimSpace(projectName)
		if name == "" {
			return fmt.Errorf("project name cannot be empty")
		}
		p.Name = name
	}
	if flags.Changed("color") {
		p.Color = s.cfg.ProjectColor(projectColor)
	}
	if flags.Changed("deadline") {
		if p.Deadline, err = normalizeDeadline(projectDeadline, time.Now()); err != nil {
			return err
		}
	}

	if _, err := s.store.SaveProject(cmd.Context(), p); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated project: %s\n", p.Name)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	p, err := resolveProject(s.store, args[0])
	if err != nil {
		return err
	}
	tasks := len(s.store.TasksForProject(p.ID))

	if err := s.store.DeleteProject(cmd.Context(), p.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted project: %s (%d tasks)\n", p.Name, tasks)
	return nil
}

// normalizeDeadline stores natural language deadlines as YYYY-MM-DD
func normalizeDeadline(deadline string, now time.Time) (string, error) {
	deadline = strings.TrimSpace(deadline)
	if deadline == "" {
		return "", nil
	}
	t, ok := model.ParseDeadline(deadline, now)
	if !ok {
		return "", fmt.Errorf("cannot read deadline %q, use YYYY-MM-DD", deadline)
	}
	return t.Format(model.DeadlineLayout), nil
}

func deadlineLabel(p model.RankedProject) string {
	if p.DaysLeft == nil {
		if p.Deadline == "" {
			return "-"
		}
		return "?"
	}
	return p.Deadline
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
