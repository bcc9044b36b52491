package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/luinbytes/recovery-dedup/audit"
	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
	"github.com/luinbytes/recovery-dedup/tui"
)

const confirmWord = "DELETE"

// session is one scan of the recovery folders.
type session struct {
	records  []scan.FileRecord
	provider storage.Provider
}

func (s *session) Close() error {
	return s.provider.Close()
}

// decision is one planned audit row.
type decision struct {
	file   scan.FileRecord
	action audit.Action
	reason string
}

// plan is everything a pass decided, before anything is recorded or removed.
type plan struct {
	kind      string
	title     string
	decisions []decision
	groups    []tui.Group
}

func (p *plan) keep(f scan.FileRecord, reason string) {
	p.decisions = append(p.decisions, decision{file: f, action: audit.ActionKeep, reason: reason})
}

func (p *plan) delete(f scan.FileRecord, reason string) {
	p.decisions = append(p.decisions, decision{file: f, action: audit.ActionDelete, reason: reason})
}

func (p *plan) fail(f scan.FileRecord, reason string) {
	p.decisions = append(p.decisions, decision{file: f, action: audit.ActionError, reason: reason})
}

func (p *plan) deletions() (files int, bytes int64) {
	for _, d := range p.decisions {
		if d.action == audit.ActionDelete {
			files++
			bytes += d.file.SizeBytes
		}
	}
	return files, bytes
}

// prepare lists the recovery folders and scans them. It fails before
// anything is written when no folder matches.
func (a *app) prepare(ctx context.Context) (*session, error) {
	if a.cfg.Root == "" {
		return nil, fmt.Errorf("--root is required")
	}

	dirs := scan.ListRecoveryDirs(a.cfg.Root, a.cfg.RecupPrefix, a.cfg.Exclude())
	if len(dirs) == 0 {
		return nil, fmt.Errorf("'%s*' under %s: %w", a.cfg.RecupPrefix, a.cfg.Root, scan.ErrNoRecoveryFolders)
	}

	provider, err := storage.NewLocalProvider(dirs...)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Int("folders", len(dirs)).
		Str("root", a.cfg.Root).
		Str("provider", provider.Name()).
		Msg("Step 1/3: scanning recovery folders")
	scanner := &scan.Scanner{Exclude: a.cfg.Exclude(), Logger: a.log}
	records, err := scanner.Scan(ctx, dirs)
	if err != nil {
		provider.Close()
		return nil, err
	}
	a.log.Info().Int("files", len(records)).Msg("scan complete")

	return &session{records: records, provider: provider}, nil
}

// execute records every decision of p and, on a real run, removes files.
// A cancelled context stops it between files; the partial report stays.
func (a *app) execute(ctx context.Context, s *session, p *plan) (audit.Summary, string, error) {
	dryRun := !a.flags.Apply

	if files, _ := p.deletions(); !dryRun && files > 0 && !a.flags.Yes {
		ok, err := a.confirm(p)
		if err != nil {
			return audit.Summary{}, "", err
		}
		if !ok {
			return audit.Summary{}, "", errAborted
		}
	}

	path, err := audit.NewReportPath(a.cfg.Root, a.cfg.ReportsDirname, p.kind, a.now())
	if err != nil {
		return audit.Summary{}, "", err
	}
	rec, err := audit.Create(path, audit.Options{DryRun: dryRun, Remover: s.provider, Logger: a.log})
	if err != nil {
		return audit.Summary{}, "", err
	}

	a.log.Info().
		Bool("dry_run", rec.DryRun()).
		Int("decisions", len(p.decisions)).
		Str("report", path).
		Msg("Step 3/3: recording decisions")

	err = a.record(ctx, rec, s, p)
	if cerr := rec.Close(); err == nil {
		err = cerr
	}
	return rec.Summary(), path, err
}

func (a *app) record(ctx context.Context, rec *audit.Recorder, s *session, p *plan) error {
	for _, f := range s.records {
		rec.Scanned(f)
	}
	for _, d := range p.decisions {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch d.action {
		case audit.ActionKeep:
			err = rec.Keep(d.file, d.reason)
		case audit.ActionError:
			err = rec.Error(d.file, d.reason)
		case audit.ActionDelete:
			err = rec.Delete(ctx, d.file, d.reason)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// confirm asks for approval of a real run, through the plan browser or a
// typed confirmation word.
func (a *app) confirm(p *plan) (bool, error) {
	if a.flags.Review {
		return a.review(p.title, p.groups)
	}

	files, bytes := p.deletions()
	fmt.Fprintf(a.errOut, "\nAbout to permanently delete %d files (%s) under %s.\n", files, humanize.IBytes(uint64(bytes)), a.cfg.Root)
	fmt.Fprintf(a.errOut, "Type %s to continue: ", confirmWord)

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	return strings.TrimSpace(line) == confirmWord, nil
}
