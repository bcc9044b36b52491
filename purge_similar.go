package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luinbytes/recovery-dedup/perceptual"
	"github.com/luinbytes/recovery-dedup/similar"
	"github.com/luinbytes/recovery-dedup/tui"
)

const kindSimilarImages = "purge_similar_images"

func newPurgeSimilarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-similar-images",
		Short: "Keep the largest copy of every set of visually near-identical images",
		Long: `Images are fingerprinted with a 64-bit perceptual hash. Images with the
same fingerprint are grouped first; the remaining ones are compared pairwise
and grouped when their fingerprints differ in at most --max-distance bits,
transitively. The largest file of each group is kept.

The pairwise pass is skipped when more than --fuzzy-cap images are left, and
those images are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPurgeSimilar(cmd.Context())
		},
	}
	cmd.Flags().Int("max-distance", similar.DefaultMaxDistance, "Maximum Hamming distance (0-64) between similar images. Lower = stricter")
	cmd.Flags().Int("fuzzy-cap", similar.DefaultFuzzyCap, "Skip pairwise comparison above this many images")
	return cmd
}

func (a *app) runPurgeSimilar(ctx context.Context) error {
	s, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	a.log.Info().Msg("Step 2/3: fingerprinting images")
	e := &perceptual.Extractor{
		Decoder:  perceptual.FileDecoder{Opener: s.provider},
		Workers:  a.cfg.Workers,
		Logger:   a.log,
		Progress: a.progress("Fingerprinting"),
	}
	outcomes, err := e.ExtractAll(ctx, s.records)
	if err != nil {
		return err
	}

	p, res := a.similarPlan(outcomes)
	summary, report, err := a.execute(ctx, s, p)
	if err != nil {
		return err
	}
	a.finish(fmt.Sprintf("Similar images: %d groups, %d comparisons", len(res.Groups), res.Comparisons), summary, report)
	return nil
}

func (a *app) similarPlan(outcomes []perceptual.Outcome) (*plan, similar.Result) {
	p := &plan{kind: kindSimilarImages, title: "Similar images"}

	var images []similar.Image
	for _, o := range outcomes {
		switch o.Status {
		case perceptual.Hashed:
			images = append(images, similar.Image{File: o.File, Fingerprint: o.Fingerprint})
		case perceptual.Unreadable:
			p.fail(o.File, o.Reason)
		case perceptual.NoDecoder:
			p.keep(o.File, o.Reason)
		}
	}

	res := similar.Cluster(images, a.similarOptions())

	for _, g := range res.Groups {
		tg := tui.Group{
			Title:  fmt.Sprintf("%d similar images", len(g.Others)+1),
			Detail: "fingerprint " + g.Survivor.Fingerprint.String(),
		}

		survivor := g.Survivor.File
		p.keep(survivor, similar.ReasonKeptLargest)
		tg.Files = append(tg.Files, tui.Entry{Path: survivor.Path, Size: survivor.SizeBytes, Keep: true, Reason: similar.ReasonKeptLargest})

		for _, m := range g.Others {
			reason := m.DeleteReason()
			p.delete(m.File, reason)
			tg.Files = append(tg.Files, tui.Entry{Path: m.File.Path, Size: m.File.SizeBytes, Reason: reason})
		}
		p.groups = append(p.groups, tg)
	}

	for _, img := range res.Skipped {
		p.keep(img.File, similar.ReasonFuzzySkipped)
	}
	return p, res
}
