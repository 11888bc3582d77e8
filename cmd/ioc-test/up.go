package main

import (
	"context"
	"fmt"
	"io"
	"ioctest/applog"
	"ioctest/config"
	"ioctest/runner"
	"ioctest/testmode"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) upCommand() *cobra.Command {
	var (
		modeName string
		hold     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "up <suite>",
		Short: "Start the IOCs and emulators of a suite until interrupted",
		Long: `up starts every IOC of the suite with its emulator in the given mode and
keeps them running until interrupted, or for --for when set. The suite is a
name under the suites directory or a path to a YAML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.Validate(); err != nil {
				return err
			}
			suite, err := config.LoadSuite(config.SuitePath(a.settings.SuiteDir, args[0]))
			if err != nil {
				return err
			}
			if err := selectMode(suite, modeName); err != nil {
				return err
			}

			r := runner.New(a.settings, nil)
			return r.Run(cmd.Context(), suite, func(ctx context.Context, plan *runner.Plan) error {
				printPlan(cmd.OutOrStdout(), a.settings.Prefix, plan)
				applog.Info("Suite is up", zap.String("suite", plan.Suite), zap.Stringer("mode", plan.Mode))
				return holdUntil(ctx, hold)
			})
		},
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", "",
		"Test mode: RECSIM, DEVSIM or NOSIM (default the first mode of the suite)")
	cmd.Flags().DurationVar(&hold, "for", 0, "Stop after this long instead of waiting for an interrupt")
	return cmd
}

// selectMode narrows the suite to one mode, the first declared by default.
func selectMode(suite *config.Suite, name string) error {
	if name == "" {
		suite.Modes = suite.Modes[:1]
		return nil
	}
	mode, err := testmode.Parse(name)
	if err != nil {
		return err
	}
	if !slices.Contains(suite.Modes, mode) {
		return fmt.Errorf("suite '%s' does not run in %s, it declares %v", suite.Name, mode, suite.Modes)
	}
	suite.Modes = []testmode.Mode{mode}
	return nil
}

// holdUntil blocks until ctx is done or d elapses. An interrupt is a normal
// way to stop.
func holdUntil(ctx context.Context, d time.Duration) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}

func printPlan(w io.Writer, prefix string, plan *runner.Plan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "%s in %s with prefix %s\n", plan.Suite, plan.Mode, prefix)
	_, _ = fmt.Fprintln(tw, "IOC\tPORT\tEMULATOR\tIOC LOG")
	for _, d := range plan.Devices {
		emulatorID := "-"
		if l, ok := d.Launcher(); ok {
			emulatorID = l.ID()
		} else if m, ok := d.Multi(); ok {
			emulatorID = fmt.Sprintf("%s %v", m.TestName(), m.Addresses())
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.Name, d.Port, emulatorID, d.IOC.LogPath())
	}
	_ = tw.Flush()
}
