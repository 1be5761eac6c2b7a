package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/api/validate"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

var (
	userName   string
	userEmail  string
	userDomain string
	userRole   string
	userDemote bool
	userLimit  int
	userForce  bool
)

// newUserInput is validated with the same rules the register endpoint uses.
type newUserInput struct {
	Name   string `json:"name" validate:"notblank,max=100"`
	Email  string `json:"email" validate:"required,email,max=254"`
	Domain string `json:"domain" validate:"domain"`
	Role   string `json:"role" validate:"oneof=member admin"`
}

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing CollabHub accounts.

These commands operate directly on the database file and are intended
for operators managing accounts outside of the API.

Examples:
  # List users
  collabctl user list

  # Create an admin
  collabctl user create --name Ada --email ada@example.com --domain Tech --role admin

  # Reset a password
  collabctl user passwd ada@example.com`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Long: `List users, newest first. Passwords are never displayed.

Example:
  collabctl user list --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		list, total, err := store.Users().List(cmd.Context(), userLimit, 0)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(w, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No users found.")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tDOMAIN\tROLE\tCREATED")
		for _, u := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				u.ID, truncate(u.Name, 24), u.Email, u.Domain, u.Role,
				u.CreatedAt.Format("2006-01-02 15:04"))
		}
		tw.Flush()
		fmt.Fprintf(w, "\nShowing %d of %d user(s)\n", len(list), total)
		return nil
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create an account. The password is prompted for so it never ends up
in shell history. Passwords must be 6 to 72 bytes long.

Example:
  collabctl user create --name Ada --email ada@example.com --domain Tech`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := newUserInput{Name: userName, Email: userEmail, Domain: userDomain, Role: strings.ToLower(userRole)}
		if err := validate.Struct(in); err != nil {
			return err
		}
		domain, _ := models.ParseDomain(in.Domain)

		hash, err := newPasswordPrompter(cmd).newPassword("Enter password: ")
		if err != nil {
			return err
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		user := models.NewUser(in.Name, in.Email, domain)
		user.ID = uuid.New().String()
		user.Role = models.ParseRole(in.Role)
		user.PasswordHash = hash

		if err := store.Users().Create(cmd.Context(), user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return fmt.Errorf("email '%s' is already registered", user.Email)
			}
			return fmt.Errorf("create user: %w", err)
		}

		w := cmd.OutOrStdout()
		if GetOutput() == "json" {
			return printJSON(w, user)
		}
		fmt.Fprintf(w, "\nUser created:\n")
		fmt.Fprintf(w, "  ID:     %s\n", user.ID)
		fmt.Fprintf(w, "  Name:   %s\n", user.Name)
		fmt.Fprintf(w, "  Email:  %s\n", user.Email)
		fmt.Fprintf(w, "  Domain: %s\n", user.Domain)
		fmt.Fprintf(w, "  Role:   %s\n", user.Role)
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <id|email>",
	Short: "Set a user's password",
	Long: `Set a new password for an existing user and revoke their sessions.

Example:
  collabctl user passwd ada@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		user, err := resolveUser(ctx, store.Users(), args[0])
		if err != nil {
			return err
		}

		hash, err := newPasswordPrompter(cmd).newPassword("Enter new password: ")
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		user.UpdatedAt = time.Now().UTC()
		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		w := cmd.OutOrStdout()
		if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			PrintVerbose(w, "Warning: could not revoke existing sessions: %v", err)
		}

		fmt.Fprintf(w, "\nPassword changed for %s.\n", user.Email)
		fmt.Fprintln(w, "All existing sessions have been revoked.")
		return nil
	},
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <id|email>",
	Short: "Grant or remove the admin role",
	Long: `Make a user an admin, or back to a member with --demote.

Examples:
  collabctl user promote ada@example.com
  collabctl user promote ada@example.com --demote`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		user, err := resolveUser(ctx, store.Users(), args[0])
		if err != nil {
			return err
		}

		role := models.RoleAdmin
		if userDemote {
			role = models.RoleMember
		}
		w := cmd.OutOrStdout()
		if user.Role == role {
			fmt.Fprintf(w, "%s already has role %s.\n", user.Email, role)
			return nil
		}

		user.Role = role
		user.UpdatedAt = time.Now().UTC()
		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		fmt.Fprintf(w, "%s now has role %s.\n", user.Email, role)
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <id|email>",
	Short: "Delete a user",
	Long: `Delete an account. Ideas and projects the user created are removed
with it. Requires --force.

Example:
  collabctl user delete ada@example.com --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !userForce {
			return fmt.Errorf("refusing to delete without --force")
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		user, err := resolveUser(ctx, store.Users(), args[0])
		if err != nil {
			return err
		}
		if err := store.Users().Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s (%s).\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd, userCreateCmd, userPasswdCmd, userPromoteCmd, userDeleteCmd)

	userListCmd.Flags().IntVar(&userLimit, "limit", 100, "maximum number of users to show")

	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address (required)")
	userCreateCmd.Flags().StringVar(&userDomain, "domain", string(models.DomainTech), "domain: Tech, Design, Content, or Business")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleMember), "role: member or admin")
	userCreateCmd.MarkFlagRequired("name")
	userCreateCmd.MarkFlagRequired("email")

	userPromoteCmd.Flags().BoolVar(&userDemote, "demote", false, "set the role back to member")
	userDeleteCmd.Flags().BoolVar(&userForce, "force", false, "confirm deletion")
}

// resolveUser looks a user up by email when ref contains '@', otherwise by ID.
func resolveUser(ctx context.Context, repo storage.UserRepository, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	var (
		user *models.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = repo.GetByEmail(ctx, ref)
	} else {
		user, err = repo.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user '%s' not found", ref)
	}
	return user, nil
}
