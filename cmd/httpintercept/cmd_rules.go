package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/ruleset"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule types a rules file may use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range ruleset.RegisteredTypes() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rules file and print the rules it declares",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("rules")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errx.With(ruleset.ErrLoadRules, ": pass a file or --rules")
		}

		rt, err := newRuntime("rules")
		if err != nil {
			return err
		}
		defer rt.Close()

		rs, err := ruleset.Load(path, rt.logger)
		if err != nil {
			return err
		}
		printRules(cmd.OutOrStdout(), rs)
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func printRules(out io.Writer, rs *ruleset.Ruleset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tTYPE")
	for i, r := range rs.Rules {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, r.Name(), r.Type())
	}
	w.Flush()
}
