package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

var (
	ideaDomain string
	ideaAuthor string
	ideaLimit  int
)

var ideaCmd = &cobra.Command{
	Use:   "idea",
	Short: "Inspect ideas",
}

var ideaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ideas, newest first",
	Long: `List ideas, optionally narrowed to a domain or an author.

Examples:
  collabctl idea list --domain Design
  collabctl idea list --author ada@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.IdeaFilter{Limit: ideaLimit}
		if ideaDomain != "" {
			d, ok := models.ParseDomain(ideaDomain)
			if !ok {
				return fmt.Errorf("invalid domain %q", ideaDomain)
			}
			filter.Domain = d
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		if ideaAuthor != "" {
			author, err := resolveUser(ctx, store.Users(), ideaAuthor)
			if err != nil {
				return err
			}
			filter.CreatedBy = author.ID
		}

		ideas, total, err := store.Ideas().List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list ideas: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(w, ideas)
		}
		if len(ideas) == 0 {
			fmt.Fprintln(w, "No ideas found.")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tDOMAINS\tAUTHOR\tCREATED")
		for _, idea := range ideas {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				idea.ID, truncate(idea.Title, 40), joinDomains(idea.Domains),
				creatorEmail(idea), idea.CreatedAt.Format("2006-01-02 15:04"))
		}
		tw.Flush()
		fmt.Fprintf(w, "\nShowing %d of %d idea(s)\n", len(ideas), total)
		return nil
	},
}

var ideaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an idea and its project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		idea, err := store.Ideas().GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get idea: %w", err)
		}
		if idea == nil {
			return fmt.Errorf("idea '%s' not found", args[0])
		}
		project, err := store.Projects().GetByIdeaID(ctx, idea.ID)
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(w, struct {
				*models.Idea
				Project *models.Project `json:"project"`
			}{idea, project})
		}

		fmt.Fprintf(w, "ID:          %s\n", idea.ID)
		fmt.Fprintf(w, "Title:       %s\n", idea.Title)
		fmt.Fprintf(w, "Author:      %s\n", creatorEmail(idea))
		fmt.Fprintf(w, "Domains:     %s\n", joinDomains(idea.Domains))
		fmt.Fprintf(w, "Roles:       %s\n", strings.Join(idea.RolesNeeded, ", "))
		fmt.Fprintf(w, "Created:     %s\n", idea.CreatedAt.Format("2006-01-02 15:04:05"))
		if project == nil {
			fmt.Fprintln(w, "Project:     none yet")
		} else {
			fmt.Fprintf(w, "Project:     %s (%s, %d member(s))\n", project.ID, project.Status, len(project.Members))
		}
		fmt.Fprintf(w, "\n%s\n", idea.Description)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ideaCmd)
	ideaCmd.AddCommand(ideaListCmd, ideaShowCmd)

	ideaListCmd.Flags().StringVar(&ideaDomain, "domain", "", "only ideas tagged with this domain")
	ideaListCmd.Flags().StringVar(&ideaAuthor, "author", "", "only ideas by this user (id or email)")
	ideaListCmd.Flags().IntVar(&ideaLimit, "limit", 50, "maximum number of ideas to show")
}

func joinDomains(domains []models.Domain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func creatorEmail(idea *models.Idea) string {
	if idea.Creator == nil {
		return idea.CreatedBy
	}
	return idea.Creator.Email
}
