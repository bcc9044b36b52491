package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luinbytes/recovery-dedup/audit"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dry-run.csv> <real.csv>",
		Short: "Check that a real run did exactly what its dry run predicted",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runVerify(args[0], args[1])
		},
	}
}

func (a *app) runVerify(dryPath, realPath string) error {
	dry, err := audit.ReadReport(dryPath)
	if err != nil {
		return err
	}
	actual, err := audit.ReadReport(realPath)
	if err != nil {
		return err
	}
	if len(dry) > 0 && !dry[0].DryRun {
		a.log.Warn().Str("report", dryPath).Msg("first report is not from a dry run")
	}
	if len(actual) > 0 && actual[0].DryRun {
		a.log.Warn().Str("report", realPath).Msg("second report is from a dry run")
	}

	diffs := audit.Compare(dry, actual)
	if len(diffs) == 0 {
		fmt.Fprintf(a.out, "Reports match: %d decisions.\n", len(dry))
		return nil
	}
	for _, d := range diffs {
		fmt.Fprintln(a.out, d.String())
	}
	return fmt.Errorf("%d decisions differ", len(diffs))
}
