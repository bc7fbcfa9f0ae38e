package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"volunteer-attendance/internal/records"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var groupSeriesID string
var groupDescription string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage volunteer groups",
	Long:  `List, create and import the recurring crews that series events are mapped to.`,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		quietLogger()
		groups, err := repo.ListGroups(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing groups: %w", err)
		}

		if len(groups) == 0 {
			fmt.Println("No groups found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tNAME\tSERIES")
		for _, g := range groups {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", g.ID, g.Key, g.Name, g.ExternalSeriesID)
		}
		w.Flush()
		return nil
	},
}

var groupCreateCmd = &cobra.Command{
	Use:   "create [key] [name]",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := repo.CreateGroup(cmd.Context(), records.Group{
			Key:              args[0],
			Name:             args[1],
			Description:      groupDescription,
			ExternalSeriesID: groupSeriesID,
		})
		if err != nil {
			return fmt.Errorf("error creating group: %w", err)
		}

		fmt.Printf("Group '%s' created with ID %d.\n", args[1], id)
		return nil
	},
}

// groupFile is the import format:
//
//	groups:
//	  - key: dig
//	    name: Dig Crew
//	    series_id: "123456789"
type groupFile struct {
	Groups []records.Group `yaml:"groups"`
}

var groupImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Create or update groups from a YAML file",
	Long:  `Groups are matched on key. Existing groups are updated, new ones are created.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var file groupFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("invalid group file: %w", err)
		}

		existing, err := repo.ListGroups(cmd.Context())
		if err != nil {
			return err
		}
		byKey := make(map[string]records.Group, len(existing))
		for _, g := range existing {
			byKey[g.Key] = g
		}

		created, updated := 0, 0
		for _, g := range file.Groups {
			if prev, ok := byKey[g.Key]; ok {
				g.ID = prev.ID
				if err := repo.UpdateGroup(cmd.Context(), g); err != nil {
					return fmt.Errorf("group %s: %w", g.Key, err)
				}
				updated++
				continue
			}
			if _, err := repo.CreateGroup(cmd.Context(), g); err != nil {
				return fmt.Errorf("group %s: %w", g.Key, err)
			}
			created++
		}

		fmt.Printf("%d groups created, %d updated.\n", created, updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupImportCmd)

	groupCreateCmd.Flags().StringVar(&groupSeriesID, "series", "", "external series id of the group's recurring events")
	groupCreateCmd.Flags().StringVar(&groupDescription, "description", "", "group description")
}
