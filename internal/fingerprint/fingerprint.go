package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/photo-match/internal/constants"
)

// ErrUndecodable is returned when image bytes cannot be decoded into a pixel grid.
var ErrUndecodable = errors.New("undecodable image")

// Engine computes average hashes. The resampling kernel is fixed per engine,
// so the reference and every candidate of a scan must go through the same engine.
type Engine struct {
	kernel draw.Interpolator
}

// Option configures an Engine.
type Option func(*Engine)

// WithKernel sets the interpolator used to downsample images to 8x8.
func WithKernel(kernel draw.Interpolator) Option {
	return func(e *Engine) {
		if kernel != nil {
			e.kernel = kernel
		}
	}
}

// New creates an engine using bilinear resampling unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{kernel: draw.BiLinear}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute returns the average hash of a decoded image.
// An empty image yields the empty fingerprint.
func (e *Engine) Compute(img image.Image) Fingerprint {
	if img == nil || img.Bounds().Empty() {
		return Fingerprint{}
	}

	// 1. Resize to 8x8
	small := e.resize(img)

	// 2-3. Grayscale, read row-major
	var lum [constants.HashBits]float64
	var sum float64
	for y := range constants.HashSide {
		for x := range constants.HashSide {
			l := Luminance(small.At(x, y))
			lum[y*constants.HashSide+x] = l
			sum += l
		}
	}

	// 4. Mean
	mean := sum / constants.HashBits

	// 5. One bit per pixel, ties resolve to 1
	var bits uint64
	for i, l := range lum {
		if l >= mean {
			bits |= 1 << (constants.HashBits - 1 - i)
		}
	}

	return Fingerprint{bits: bits, size: constants.HashBits}
}

// ComputeBytes decodes image bytes and returns their average hash.
// Undecodable input yields the empty fingerprint and an error wrapping ErrUndecodable.
func (e *Engine) ComputeBytes(data []byte) (Fingerprint, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return Fingerprint{}, fmt.Errorf("%w: empty image", ErrUndecodable)
	}
	return e.Compute(img), nil
}

// ComputeFile reads a file from fsys and returns its average hash.
// Read failures are returned as-is; only decode failures wrap ErrUndecodable.
func (e *Engine) ComputeFile(fsys afero.Fs, path string) (Fingerprint, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("reading %s: %w", path, err)
	}
	fp, err := e.ComputeBytes(data)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%s: %w", path, err)
	}
	return fp, nil
}

// resize scales an image to HashSide x HashSide.
func (e *Engine) resize(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, constants.HashSide, constants.HashSide))
	e.kernel.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Luminance returns the ITU-R BT.601 luma of a color in [0, 255].
// The value is rounded to an integer the same way color.GrayModel does,
// so the mean of 64 values is exact in float64.
func Luminance(c color.Color) float64 {
	return float64(color.GrayModel.Convert(c).(color.Gray).Y)
}

// HammingDistance counts the positions where two fingerprints differ.
// Fingerprints of different lengths, or empty ones, are not comparable and
// get MismatchDistance.
func HammingDistance(a, b Fingerprint) int {
	if a.IsEmpty() || b.IsEmpty() || a.size != b.size {
		return constants.MismatchDistance
	}
	d, err := goimagehash.NewImageHash(a.bits, goimagehash.AHash).
		Distance(goimagehash.NewImageHash(b.bits, goimagehash.AHash))
	if err != nil {
		return constants.MismatchDistance
	}
	return d
}

// Similarity converts a Hamming distance into a score in [0, 1]: 1 - d/64.
// Distances outside [0, 64] (the mismatch sentinel) clamp to 0.
func Similarity(distance int) float64 {
	s := 1 - float64(distance)/constants.HashBits
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Similar returns true if two fingerprints are within the given threshold.
func Similar(a, b Fingerprint, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}
