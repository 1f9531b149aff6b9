package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/cowork/internal/model"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  `Create, list, show, edit and delete the tasks of a project.`,
}

var taskNewCmd = &cobra.Command{
	Use:   "new [project] [name]",
	Short: "Add a task to a project",
	Long: `Add a task to a project. The project can be given by ID, ID prefix or name.

Examples:
  cowork task new launch "Write press release"
  cowork task new launch "Book venue" --assign Ricky --item "Get quotes" --item "Sign"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTaskNew,
}

var taskListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List tasks, newest first",
	Long: `List the tasks of one project, or of every project.

Examples:
  cowork task list
  cowork task list launch --mine`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task]",
	Short: "Show a task with its checklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task]",
	Short: "Edit a task",
	Long: `Edit a task's fields and checklist. Checklist items are numbered from 1,
as printed by 'cowork task show'.

Examples:
  cowork task edit 3f2a --goal "Ship by Friday" --assign Ricky --assign Moe
  cowork task edit 3f2a --add-item "Send invites" --check 1 --remove-item 2`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskEdit,
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete [task]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskDelete,
}

var (
	taskName        string
	taskGoal        string
	taskDescription string
	taskAttention   string
	taskAssignees   []string
	taskItems       []string
	taskAddItems    []string
	taskCheck       []int
	taskUncheck     []int
	taskRemoveItems []int
	taskMine        bool
)

func init() {
	for _, c := range []*cobra.Command{taskNewCmd, taskEditCmd} {
		c.Flags().StringVar(&taskGoal, "goal", "", "Goal")
		c.Flags().StringVar(&taskDescription, "description", "", "Description")
		c.Flags().StringVar(&taskAttention, "attention", "", "Attention note")
		c.Flags().StringArrayVarP(&taskAssignees, "assign", "a", nil, "Assignee from the roster, repeat up to 4 times")
	}
	taskNewCmd.Flags().StringArrayVarP(&taskItems, "item", "i", nil, "Checklist item, repeatable")

	taskEditCmd.Flags().StringVarP(&taskName, "name", "n", "", "New name")
	taskEditCmd.Flags().StringArrayVar(&taskAddItems, "add-item", nil, "Append a checklist item, repeatable")
	taskEditCmd.Flags().IntSliceVar(&taskCheck, "check", nil, "Mark checklist items done")
	taskEditCmd.Flags().IntSliceVar(&taskUncheck, "uncheck", nil, "Mark checklist items not done")
	taskEditCmd.Flags().IntSliceVar(&taskRemoveItems, "remove-item", nil, "Remove checklist items")

	taskListCmd.Flags().BoolVarP(&taskMine, "mine", "m", false, "Only tasks assigned to current_user")

	taskCmd.AddCommand(taskNewCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}

// taskEdit collects the changes requested on the command line. Nil fields
// are left alone.
type taskEdit struct {
	name        *string
	goal        *string
	description *string
	attention   *string
	assignees   []string
	setAssignee bool
	addItems    []string
	check       []int
	uncheck     []int
	remove      []int
}

func (e taskEdit) empty() bool {
	return e.name == nil && e.goal == nil && e.description == nil && e.attention == nil &&
		!e.setAssignee && len(e.addItems) == 0 && len(e.check) == 0 && len(e.uncheck) == 0 && len(e.remove) == 0
}

// editFromFlags reads the task flags that were actually given
func editFromFlags(cmd *cobra.Command) taskEdit {
	flags := cmd.Flags()
	var e taskEdit
	str := func(name string, v string) *string {
		if !flags.Changed(name) {
			return nil
		}
		return &v
	}
	e.name = str("name", taskName)
	e.goal = str("goal", taskGoal)
	e.description = str("description", taskDescription)
	e.attention = str("attention", taskAttention)
	if flags.Changed("assign") {
		e.assignees, e.setAssignee = taskAssignees, true
	}
	if flags.Changed("item") {
		e.addItems = taskItems
	}
	if flags.Changed("add-item") {
		e.addItems = taskAddItems
	}
	if flags.Changed("check") {
		e.check = taskCheck
	}
	if flags.Changed("uncheck") {
		e.uncheck = taskUncheck
	}
	if flags.Changed("remove-item") {
		e.remove = taskRemoveItems
	}
	return e
}

// apply returns t with the edit applied. Checklist positions are 1-based and
// refer to the list before any item is removed or added. A task left with no
// assignees gets the current user when they are on the roster.
func (e taskEdit) apply(t model.Task, roster model.Roster, currentUser string) (model.Task, error) {
	t = t.Clone()

	if e.name != nil {
		name := strings.TrimSpace(*e.name)
		if name == "" {
			return t, fmt.Errorf("task name cannot be empty")
		}
		t.Name = name
	}
	if e.goal != nil {
		t.Goal = *e.goal
	}
	if e.description != nil {
		t.Description = *e.description
	}
	if e.attention != nil {
		t.Attention = *e.attention
	}

	if e.setAssignee {
		var assignees []string
		for _, a := range e.assignees {
			if a = strings.TrimSpace(a); a != "" {
				assignees = append(assignees, a)
			}
		}
		if err := roster.Validate(assignees); err != nil {
			return t, err
		}
		t.Assignee = append([]string{}, assignees...)
	}
	t.Assignee = roster.DefaultAssignees(t.Assignee, currentUser)
	if t.Assignee == nil {
		t.Assignee = []string{}
	}

	n := len(t.Checklist)
	for _, set := range []struct {
		positions []int
		done      bool
	}{{e.check, true}, {e.uncheck, false}} {
		for _, pos := range set.positions {
			if pos < 1 || pos > n {
				return t, fmt.Errorf("checklist item %d does not exist (task has %d)", pos, n)
			}
			t.Checklist[pos-1].Done = set.done
		}
	}

	if len(e.remove) > 0 {
		drop := make(map[int]bool, len(e.remove))
		for _, pos := range e.remove {
			if pos < 1 || pos > n {
				return t, fmt.Errorf("checklist item %d does not exist (task has %d)", pos, n)
			}
			drop[pos-1] = true
		}
		kept := make([]model.ChecklistItem, 0, n-len(drop))
		for i, item := range t.Checklist {
			if !drop[i] {
				kept = append(kept, item)
			}
		}
		t.Checklist = kept
	}

	for _, text := range e.addItems {
		if text = strings.TrimSpace(text); text != "" {
			t.Checklist = append(t.Checklist, model.ChecklistItem{Text: text})
		}
	}
	if t.Checklist == nil {
		t.Checklist = []model.ChecklistItem{}
	}
	return t, nil
}

func runTaskNew(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 1 {
		name = strings.TrimSpace(args[1])
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

	// Validate before anything is written
	edit := editFromFlags(cmd)
	draft, err := edit.apply(model.NewTask("", p.ID, name, ""), s.cfg.Roster(), "")
	if err != nil {
		return err
	}

	t, err := s.store.NewTask(cmd.Context(), p.ID, name)
	if err != nil {
		return fmt.Errorf("task %s created locally but not saved: %w", t.ID, err)
	}
	if !edit.empty() {
		draft.ID, draft.LastUpdate = t.ID, t.LastUpdate
		if t, err = s.store.SaveTask(cmd.Context(), draft); err != nil {
			return fmt.Errorf("failed to save task details: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added task to %s: %s (id: %s)\n", p.Name, t.Name, shortID(t.ID))
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	if taskMine && appConfig.CurrentUser == "" {
		return fmt.Errorf("--mine needs current_user (set it with: cowork config set current_user <name>)")
	}

	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	projects := s.store.Projects()
	if len(args) == 1 {
		p, err := resolveProject(s.store, args[0])
		if err != nil {
			return err
		}
		projects = []model.Project{p}
	}

	out := cmd.OutOrStdout()
	shown := 0
	for _, p := range projects {
		var tasks []model.Task
		for _, t := range s.store.TasksForProject(p.ID) {
			if taskMine && !t.IsAssignedTo(appConfig.CurrentUser) {
				continue
			}
			tasks = append(tasks, t)
		}
		if len(tasks) == 0 && len(args) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n● %s\n", p.Name)
		fmt.Fprintln(out, strings.Repeat("─", 72))
		for _, t := range tasks {
			fmt.Fprintf(out, "  %-8s  %-28s  %4d%%  %-20s  %s\n",
				shortID(t.ID), clip(t.Name, 28), t.Progress(), clip(assigneeLabel(t), 20), t.LastUpdate)
		}
		shown += len(tasks)
	}

	if shown == 0 {
		fmt.Fprintln(out, "No tasks found. Add one with: cowork task new <project> \"Your task\"")
		return nil
	}
	fmt.Fprintf(out, "\n  %d tasks\n\n", shown)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	t, err := resolveTask(s.store, args[0])
	if err != nil {
		return err
	}
	projectName := t.ProjectID
	if p, ok := s.store.Project(t.ProjectID); ok {
		projectName = p.Name
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n", t.Name)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	fmt.Fprintf(out, "  ID:          %s\n", t.ID)
	fmt.Fprintf(out, "  Project:     %s\n", projectName)
	fmt.Fprintf(out, "  Assignees:   %s\n", assigneeLabel(t))
	for _, field := range [][2]string{{"Goal", t.Goal}, {"Description", t.Description}, {"Attention", t.Attention}} {
		if field[1] != "" {
			fmt.Fprintf(out, "  %-12s %s\n", field[0]+":", field[1])
		}
	}
	fmt.Fprintf(out, "  Updated:     %s\n", t.LastUpdate)

	if len(t.Checklist) > 0 {
		fmt.Fprintf(out, "\n  Checklist (%d%%)\n", t.Progress())
		for i, item := range t.Checklist {
			mark := "[ ]"
			if item.Done {
				mark = "[x]"
			}
			fmt.Fprintf(out, "  %2d. %s %s\n", i+1, mark, item.Text)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	edit := editFromFlags(cmd)
	if edit.empty() {
		return fmt.Errorf("nothing to change, see 'cowork task edit --help'")
	}

	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	t, err := resolveTask(s.store, args[0])
	if err != nil {
		return err
	}
	t, err = edit.apply(t, s.cfg.Roster(), s.cfg.CurrentUser)
	if err != nil {
		return err
	}
	if t, err = s.store.SaveTask(cmd.Context(), t); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated task: %s (%d%% done)\n", t.Name, t.Progress())
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	t, err := resolveTask(s.store, args[0])
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(cmd.Context(), t.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted task: %s\n", t.Name)
	return nil
}

func assigneeLabel(t model.Task) string {
	if len(t.Assignee) == 0 {
		return "-"
	}
	return strings.Join(t.Assignee, ", ")
}
