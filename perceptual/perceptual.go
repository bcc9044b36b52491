// Package perceptual computes visual fingerprints of recovered images.
package perceptual

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math/bits"
	"runtime"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/luinbytes/recovery-dedup/scan"
	"github.com/luinbytes/recovery-dedup/storage"
)

// Bits is the fingerprint length.
const Bits = 64

// Reason codes for images that never reach clustering.
const (
	ReasonUnreadable = "unreadable_image"
	// ReasonNoDecoder covers every HEIF container, .heic and .heif alike.
	ReasonNoDecoder  = "heic_skipped_no_decoder"
)

// Fingerprint is a 64-bit perceptual hash. Near-identical images have
// fingerprints a few bits apart; unrelated ones differ in about half the bits.
type Fingerprint uint64

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Similarity expresses a distance as a percentage of matching bits.
func Similarity(distance int) float64 {
	return 100.0 - float64(distance)/Bits*100.0
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// decodable lists the extensions with a registered decoder.
var decodable = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// undecodable lists image formats recovered from phones that have no pure Go
// decoder.
var undecodable = map[string]bool{
	".heic": true,
	".heif": true,
}

// Decodable reports whether ext can be fingerprinted.
func Decodable(ext string) bool {
	return decodable[ext]
}

// Decoder turns an image file into pixels.
type Decoder interface {
	Decode(ctx context.Context, path string) (image.Image, error)
}

// FileDecoder decodes files read through Opener with the registered image
// codecs. A nil Opener reads from the local filesystem.
type FileDecoder struct {
	Opener storage.Opener
}

// Decode opens and decodes path.
func (d FileDecoder) Decode(ctx context.Context, path string) (image.Image, error) {
	opener := d.Opener
	if opener == nil {
		opener = &storage.LocalProvider{}
	}
	f, err := opener.OpenFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Status classifies what happened to one image.
type Status int

const (
	// NotImage records are ignored by the similar-image pass.
	NotImage Status = iota
	// Hashed images carry a fingerprint and take part in clustering.
	Hashed
	// Unreadable images failed to decode or hash.
	Unreadable
	// NoDecoder images are a declared format gap and are kept.
	NoDecoder
)

// Outcome is the result of fingerprinting one record.
type Outcome struct {
	File        scan.FileRecord
	Status      Status
	Fingerprint Fingerprint
	Reason      string
	Err         error
}

// Compute fingerprints a decoded image.
func Compute(img image.Image) (Fingerprint, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, err
	}
	return Fingerprint(h.GetHash()), nil
}

// Extractor fingerprints image records.
type Extractor struct {
	Decoder Decoder
	Workers int
	Logger  zerolog.Logger

	// Progress, when set, is called after each image.
	Progress func(done, total int)
}

// Extract fingerprints a single record.
func (e *Extractor) Extract(ctx context.Context, rec scan.FileRecord) Outcome {
	out := Outcome{File: rec}

	switch {
	case undecodable[rec.Extension]:
		out.Status = NoDecoder
		out.Reason = ReasonNoDecoder
		return out
	case !decodable[rec.Extension]:
		out.Status = NotImage
		return out
	}

	img, err := e.decoder().Decode(ctx, rec.Path)
	if err == nil {
		out.Fingerprint, err = Compute(img)
	}
	if err != nil {
		e.Logger.Debug().Err(err).Str("path", rec.Path).Msg("cannot fingerprint image")
		out.Status = Unreadable
		out.Reason = ReasonUnreadable
		out.Err = err
		return out
	}

	out.Status = Hashed
	return out
}

// ExtractAll fingerprints every image record on a bounded pool. Outcomes
// for non-images are dropped; the rest are returned in scan order.
func (e *Extractor) ExtractAll(ctx context.Context, records []scan.FileRecord) ([]Outcome, error) {
	var images []scan.FileRecord
	for _, r := range records {
		if r.Category == scan.Image {
			images = append(images, r)
		}
	}

	outcomes := make([]Outcome, len(images))
	done := make(chan struct{}, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for n := 1; n <= len(images); n++ {
			if _, ok := <-done; !ok {
				return
			}
			if e.Progress != nil {
				e.Progress(n, len(images))
			}
		}
	}()

	for i := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.Extract(gctx, images[i])
			if err := gctx.Err(); err != nil {
				return err
			}
			done <- struct{}{}
			return nil
		})
	}

	err := g.Wait()
	close(done)
	<-progressDone
	if err != nil {
		return nil, err
	}

	kept := outcomes[:0]
	for _, o := range outcomes {
		if o.Status != NotImage {
			kept = append(kept, o)
		}
	}
	return kept, nil
}

func (e *Extractor) decoder() Decoder {
	if e.Decoder != nil {
		return e.Decoder
	}
	return FileDecoder{}
}

func (e *Extractor) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}
