package main

import (
	"fmt"
	"ioctest/applog"
	"ioctest/build"
	"ioctest/config"

	"github.com/spf13/cobra"
)

type app struct {
	flags    runFlags
	settings config.Settings
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ioc-test",
		Short: "Run IOC acceptance tests against device emulators",
		Long: `ioc-test starts the IOCs of a test suite together with the device
emulators they talk to, in record simulation, device simulation or against
real hardware, and tears everything down again afterwards.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.settings = a.flags.settings(cmd.Flags())
			if err := applog.Initialize("ioc-test", a.flags.LogLevel, a.flags.LogPath); err != nil {
				fmt.Printf("Failed to initialize app logger: %v\n", err)
			}
			applog.LogStartup(a.settings)
			return nil
		},
	}
	a.flags.bind(root.PersistentFlags())

	root.AddCommand(
		a.upCommand(),
		a.listCommand(),
		a.backdoorCommand(),
		versionCommand(),
	)
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skips the logger setup of the root command.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("ioc-test %s\n", build.GetBuildInfo())
		},
	}
}
