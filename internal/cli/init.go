package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/frecency-dev/frecency/internal/hooks"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "init <shell>",
		Short:     "Print the shell hook that records directory changes",
		Long:      "Print a hook for bash, zsh or fish. Add `eval \"$(frecency init zsh)\"` (or the equivalent) to your shell's rc file.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: hooks.Shells(),
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			// The hook runs from arbitrary directories, so the store it writes
			// to must be pinned to the one selected here.
			input := hooks.HookInput{Exe: exe, Engine: opts.engine}
			if opts.configFile != "" {
				if input.Config, err = filepath.Abs(opts.configFile); err != nil {
					return fmt.Errorf("resolve --config: %w", err)
				}
			}
			if opts.dbFile != "" {
				if input.DBFile, err = filepath.Abs(opts.dbFile); err != nil {
					return fmt.Errorf("resolve --db-file: %w", err)
				}
			}
			return hooks.Handle(args[0], input, cmd.OutOrStdout())
		},
	}
}
