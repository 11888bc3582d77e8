package main

import (
	"fmt"
	"io"
	"ioctest/backdoor"
	"ioctest/emulator"

	"github.com/spf13/cobra"
)

func (a *app) backdoorCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "backdoor <control-address> <device|simulation> [args...]",
		Short: "Send one backdoor command to a running Lewis emulator",
		Example: `  ioc-test backdoor 127.0.0.1:10000 device temperature
  ioc-test backdoor 127.0.0.1:10000 device temperature 25.0
  ioc-test backdoor 127.0.0.1:10000 simulation disconnect_device`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var log io.Writer = io.Discard
			if verbose {
				log = cmd.ErrOrStderr()
			}
			transport := backdoor.NewProcessTransport(emulator.ControlExecutable(a.settings.LewisPath), args[0], log)
			lines, err := backdoor.NewClient(transport).Raw(cmd.Context(), args[1:]...)
			if err != nil {
				return err
			}
			for _, line := range lines {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the companion command log to stderr")
	return cmd
}
