// Package cli is the terminal front end: cobra commands around the study core.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root, a := newRootCommand()
	root.SetIn(os.Stdin)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "linklingua",
		Short:         "Study a video transcript in English, Chinese and Japanese",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.AddCommand(
		newStudyCommand(a),
		newClassifyCommand(),
		newExportCommand(a),
		newCacheCommand(a),
		newSettingsCommand(a),
	)
	return root, a
}
