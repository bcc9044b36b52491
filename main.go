package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luinbytes/recovery-dedup/audit"
	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/similar"
	"github.com/luinbytes/recovery-dedup/tui"
)

const version = "1.0.0"

// app carries what every command needs once flags and config are resolved.
type app struct {
	cfg        Config
	flags      RunFlags
	configPath string
	runID      string
	log        zerolog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	review func(title string, groups []tui.Group) (bool, error)
	now    func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		log:    zerolog.Nop(),
		in:     in,
		out:    out,
		errOut: errOut,
		review: tui.Run,
		now:    time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "recovery-dedup",
		Short: "Remove duplicate and near-duplicate files from disk-recovery output",
		Long: `recovery-dedup triages the recup_dir.N folders written by PhotoRec-style
recovery tools. Byte-identical files and visually near-identical images are
reduced to one survivor each, and every decision is written to a CSV report
under <root>/_reports.

Runs are dry runs unless --apply is given.`,
		Example: `  recovery-dedup deduplicate --root /mnt/recovered
  recovery-dedup deduplicate --root /mnt/recovered --apply --review
  recovery-dedup purge-similar-images --root /mnt/recovered --max-distance 8
  recovery-dedup compare photo1.jpg photo2.jpg
  recovery-dedup verify _reports/deduplicate_A.csv _reports/deduplicate_B.csv`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (YAML). Also checks ./.recuprc.yaml and ~/.config/recovery-dedup/config.yaml")
	pf.String("root", "", "Folder holding the recovery folders")
	pf.String("recup-prefix", scan.DefaultPrefix, "Name prefix of the recovery folders")
	pf.Int("workers", runtime.NumCPU(), "Number of parallel hashing workers")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.Apply, "apply", false, "Really delete files (default is a dry run)")
	pf.BoolVarP(&a.flags.Yes, "yes", "y", false, "Skip the confirmation of a real run")
	pf.BoolVar(&a.flags.Review, "review", false, "Browse the plan in a terminal UI before a real run")
	pf.BoolVar(&a.flags.NoColor, "no-color", false, "Plain output without colours")

	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newDeduplicateCmd(a),
		newPurgeSimilarCmd(a),
		newCompareCmd(a),
		newVerifyCmd(a),
	)
	return root
}

// setup resolves configuration and logging for the command about to run.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, path, err := loadConfig(viper.New(), cmd, a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	if a.flags.NoColor || !isTerminal(a.out) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	a.log, a.runID = newLogger(a.errOut, cfg.Log.Level, a.flags.NoColor)
	a.log.Debug().Str("version", version).Str("config", path).Msg("configuration loaded")
	return nil
}

func (a *app) similarOptions() similar.Options {
	return similar.Options{
		MaxDistance: a.cfg.Similar.MaxDistance,
		FuzzyCap:    a.cfg.Similar.FuzzyCap,
		Logger:      a.log,
	}
}

func (a *app) progress(label string) func(done, total int) {
	return newProgress(a.errOut, label, isTerminal(a.errOut) && !a.flags.NoColor)
}

// finish prints the summary of a pass that produced a report.
func (a *app) finish(title string, s audit.Summary, report string) {
	printSummary(a.out, title, !a.flags.Apply, s, report)
	fmt.Fprintf(a.out, "  Run: %s\n", a.runID)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
