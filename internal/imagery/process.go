package imagery

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"

	"riistakamera/internal/annotator"
)

// DefaultNightGamma brightens infrared night shots without blowing out the
// flash-lit foreground.
const DefaultNightGamma = 1.8

// Thumbnail scales img to fit within w x h, keeping its aspect ratio.
func Thumbnail(img image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return img
	}
	return imaging.Fit(img, w, h, imaging.Lanczos)
}

// Resample scales img to exactly w x h.
func Resample(img image.Image, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Box)
}

// Crop returns the part of img inside box, clipped to the image.
func Crop(img image.Image, box annotator.BBox) image.Image {
	b := img.Bounds()
	c := box.Normalize().Clip(float64(b.Dx()), float64(b.Dy()))
	r := image.Rect(int(c.X1), int(c.Y1), int(c.X2), int(c.Y2)).Add(b.Min)
	return imaging.Crop(img, r)
}

// Enhance lifts shadows and contrast for dark night shots.
func Enhance(img image.Image, gamma float64) image.Image {
	if gamma <= 0 {
		gamma = DefaultNightGamma
	}
	out := adjust.Gamma(img, gamma)
	return adjust.Contrast(out, 0.15)
}
