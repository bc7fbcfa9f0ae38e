package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"volunteer-attendance/internal/records"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage volunteer profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		quietLogger()
		profiles, err := repo.ListProfiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing profiles: %w", err)
		}

		if len(profiles) == 0 {
			fmt.Println("No profiles found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMATCH KEY\tGROUP")
		for _, p := range profiles {
			group := ""
			if p.IsGroup {
				group = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.MatchKey, group)
		}
		w.Flush()
		fmt.Printf("\nTotal profiles: %d\n", len(profiles))
		return nil
	},
}

var profileRenameCmd = &cobra.Command{
	Use:   "rename [id] [name]",
	Short: "Change the display name of a profile",
	Long:  `The match key is kept, so attendees registering under the old name still resolve to this profile.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid ID: %w", err)
		}

		profiles, err := repo.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		i := slices.IndexFunc(profiles, func(p records.Profile) bool { return p.ID == id })
		if i < 0 {
			return fmt.Errorf("profile %d not found", id)
		}

		p := profiles[i]
		old := p.Name
		p.Name = strings.TrimSpace(args[1])
		if err := repo.UpdateProfile(cmd.Context(), p); err != nil {
			return fmt.Errorf("error renaming profile: %w", err)
		}

		fmt.Printf("Profile %d renamed from '%s' to '%s'.\n", id, old, p.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRenameCmd)
}
