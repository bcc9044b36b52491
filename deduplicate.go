package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luinbytes/recovery-dedup/dedup"
	"github.com/luinbytes/recovery-dedup/tui"
)

const (
	kindDeduplicate      = "deduplicate"
	reasonUnreadableFile = "unreadable_file"
)

func newDeduplicateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deduplicate",
		Short: "Keep one copy of every set of byte-identical files",
		Long: `Files are grouped by size first; only files sharing a size are hashed
(SHA-256). In each group of identical files the first one in scan order is
kept and the others are deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDeduplicate(cmd.Context())
		},
	}
}

func (a *app) runDeduplicate(ctx context.Context) error {
	s, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a.log.Info().Msg("Step 2/3: hashing files that share a size")
	d := &dedup.Detector{
		Opener:   s.provider,
		Workers:  a.cfg.Workers,
		Logger:   a.log,
		Progress: a.progress("Hashing"),
	}
	res, err := d.Detect(ctx, s.records)
	if err != nil {
		return err
	}

	p := a.deduplicatePlan(res)
	summary, report, err := a.execute(ctx, s, p)
	if err != nil {
		return err
	}
	a.finish(fmt.Sprintf("Exact duplicates: %d groups", len(res.Groups)), summary, report)
	return nil
}

func (a *app) deduplicatePlan(res dedup.Result) *plan {
	p := &plan{kind: kindDeduplicate, title: "Exact duplicates"}

	for _, g := range res.Groups {
		keep, del := g.KeepReason(), g.DeleteReason()
		tg := tui.Group{
			Title:  g.Hash.Prefix(dedup.HashPrefixLen),
			Detail: fmt.Sprintf("%d identical files", len(g.Files)),
		}

		survivor := g.Survivor()
		p.keep(survivor, keep)
		tg.Files = append(tg.Files, tui.Entry{Path: survivor.Path, Size: survivor.SizeBytes, Keep: true, Reason: keep})

		for _, f := range g.Duplicates() {
			p.delete(f, del)
			tg.Files = append(tg.Files, tui.Entry{Path: f.Path, Size: f.SizeBytes, Reason: del})
		}
		p.groups = append(p.groups, tg)
	}

	for _, f := range res.Failures {
		a.log.Warn().Msg(formatFileError(f.File.Path, f.Err))
		p.fail(f.File, reasonUnreadableFile)
	}
	return p
}
