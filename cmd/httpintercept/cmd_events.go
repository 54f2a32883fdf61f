package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpintercept/pkg/logging"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the most recent recorded events",
	Long:  `Show the most recent events from the file given by --events (.jsonl or .db).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := readEvents(cmd.Context(), viper.GetString("events"), limit)
		if err != nil {
			return err
		}
		printEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	rootCmd.AddCommand(eventsCmd)
}

func printEvents(out io.Writer, events []logging.Event) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tEVENT\tRULE\tSUMMARY")
	for _, ev := range events {
		rule := ev.Rule
		if rule == "" {
			rule = "-"
		} else if len(rule) > 8 {
			rule = rule[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format(time.DateTime),
			ev.Source,
			ev.EventType,
			rule,
			strings.ReplaceAll(ev.Summary, "\t", " "),
		)
	}
	w.Flush()
}
