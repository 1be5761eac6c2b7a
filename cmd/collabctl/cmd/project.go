package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

var (
	projectStatus string
	projectLimit  int
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect and manage projects",
	Long: `Commands for inspecting projects and moving them through their
lifecycle (Open, In Progress, Completed).

Examples:
  collabctl project list --status Open
  collabctl project show <project-id>
  collabctl project status <project-id> "In Progress"`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.ProjectFilter{Limit: projectLimit}
		if projectStatus != "" {
			s, ok := models.ParseProjectStatus(projectStatus)
			if !ok {
				return fmt.Errorf("invalid status %q (want Open, In Progress, or Completed)", projectStatus)
			}
			filter.Status = s
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		projects, total, err := store.Projects().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(w, projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(w, "No projects found.")
			return nil
		}

		ids := make([]string, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.IdeaID)
		}
		ideas, err := store.Ideas().GetByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("load ideas: %w", err)
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tIDEA\tSTATUS\tMEMBERS\tCREATED")
		for _, p := range projects {
			title := p.IdeaID
			if idea := ideas[p.IdeaID]; idea != nil {
				title = truncate(idea.Title, 40)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				p.ID, title, p.Status, len(p.Members), p.CreatedAt.Format("2006-01-02 15:04"))
		}
		tw.Flush()
		fmt.Fprintf(w, "\nShowing %d of %d project(s)\n", len(projects), total)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project with its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		project, err := store.Projects().GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project '%s' not found", args[0])
		}

		idea, err := store.Ideas().GetByID(ctx, project.IdeaID)
		if err != nil {
			return fmt.Errorf("get idea: %w", err)
		}
		refs, err := store.Users().GetRefs(ctx, append([]string{project.CreatorID}, project.Members...))
		if err != nil {
			return fmt.Errorf("load members: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			members := make([]*models.UserRef, 0, len(project.Members))
			for _, id := range project.Members {
				if ref := refs[id]; ref != nil {
					members = append(members, ref)
				}
			}
			return printJSON(w, struct {
				*models.Project
				Idea    *models.Idea      `json:"idea"`
				Creator *models.UserRef   `json:"creator"`
				Members []*models.UserRef `json:"members"`
			}{project, idea, refs[project.CreatorID], members})
		}

		fmt.Fprintf(w, "ID:       %s\n", project.ID)
		if idea != nil {
			fmt.Fprintf(w, "Idea:     %s (%s)\n", idea.Title, idea.ID)
		}
		fmt.Fprintf(w, "Creator:  %s\n", refLabel(refs, project.CreatorID))
		fmt.Fprintf(w, "Status:   %s\n", project.Status)
		fmt.Fprintf(w, "Created:  %s\n", project.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Members:  %d\n", len(project.Members))
		for _, id := range project.Members {
			fmt.Fprintf(w, "  - %s\n", refLabel(refs, id))
		}
		return nil
	},
}

var projectStatusCmd = &cobra.Command{
	Use:   "status <id> <Open|In Progress|Completed>",
	Short: "Change a project's status",
	Long: `Move a project to a new status. The usual lifecycle rules apply:
Open and In Progress may swap, In Progress may become Completed, and
Completed is final.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := models.ParseProjectStatus(args[1])
		if !ok {
			return fmt.Errorf("invalid status %q (want Open, In Progress, or Completed)", args[1])
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		project, err := store.Projects().UpdateStatus(cmd.Context(), args[0], status)
		switch {
		case errors.Is(err, storage.ErrProjectNotFound):
			return fmt.Errorf("project '%s' not found", args[0])
		case errors.Is(err, storage.ErrInvalidTransition):
			return fmt.Errorf("cannot change status to %s: %w", status, err)
		case err != nil:
			return fmt.Errorf("update status: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Project %s is now %s.\n", project.ID, project.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd, projectShowCmd, projectStatusCmd)

	projectListCmd.Flags().StringVar(&projectStatus, "status", "", "only projects with this status")
	projectListCmd.Flags().IntVar(&projectLimit, "limit", 50, "maximum number of projects to show")
}

func refLabel(refs map[string]*models.UserRef, id string) string {
	if ref := refs[id]; ref != nil {
		return fmt.Sprintf("%s <%s>", ref.Name, ref.Email)
	}
	return id
}
