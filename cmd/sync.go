package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"volunteer-attendance/internal/reconcile"

	"github.com/spf13/cobra"
)

var syncJSON bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the ticketing sync",
	Long:  `Discover sessions from live events and pull attendee registrations into the records.`,
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var syncEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Create sessions for new live events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncJSON {
			quietLogger()
		}
		res, err := newEngine(nil).RunEventDiscovery(cmd.Context())
		if err != nil {
			return err
		}
		if syncJSON {
			return printJSON(res)
		}
		fmt.Printf("%d events, %d matched, %d new sessions, %d skipped\n",
			res.TotalEvents, res.MatchedEvents, res.NewSessions, res.SkippedEvents)
		printUnmatched(res.UnmatchedEvents)
		return nil
	},
}

var syncAttendeesCmd = &cobra.Command{
	Use:   "attendees",
	Short: "Pull attendees of upcoming sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncJSON {
			quietLogger()
		}
		res, err := newEngine(nil).RunAttendeeSync(cmd.Context())
		if err != nil {
			return err
		}
		if syncJSON {
			return printJSON(res)
		}
		fmt.Printf("%d sessions, %d new profiles, %d new entries, %d consent records\n",
			res.SessionsProcessed, res.NewProfiles, res.NewEntries, res.NewRecords)
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "session %d (event %s): %s\n", e.SessionID, e.ExternalEventID, e.Error)
		}
		return nil
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run event discovery followed by attendee sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncJSON {
			quietLogger()
		}
		res, err := newEngine(nil).RunCombinedSync(cmd.Context())
		if err != nil {
			return err
		}
		if syncJSON {
			return printJSON(res)
		}
		fmt.Println(res.Summary)
		printUnmatched(res.Sessions.UnmatchedEvents)
		for _, e := range res.Attendees.Errors {
			fmt.Fprintf(os.Stderr, "session %d (event %s): %s\n", e.SessionID, e.ExternalEventID, e.Error)
		}
		return nil
	},
}

var syncUnmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List series events without a group",
	RunE: func(cmd *cobra.Command, args []string) error {
		quietLogger()
		events, err := newEngine(nil).ListUnmatchedEvents(cmd.Context())
		if err != nil {
			return err
		}
		if syncJSON {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("All series events have a group.")
			return nil
		}
		printUnmatched(events)
		return nil
	},
}

func printUnmatched(events []reconcile.UnmatchedEvent) {
	if len(events) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tEVENT ID\tSERIES\tNAME")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Date.Format(time.DateOnly), e.ExternalID, e.SeriesID, e.Name)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.PersistentFlags().BoolVar(&syncJSON, "json", false, "print results as JSON")
	syncCmd.AddCommand(syncEventsCmd, syncAttendeesCmd, syncAllCmd, syncUnmatchedCmd)
}
