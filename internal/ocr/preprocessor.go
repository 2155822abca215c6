package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Preprocessor prepares page images for OCR providers: oversized scans are
// downscaled and formats providers reject (webp, bmp, tiff) are re-encoded as PNG.
type Preprocessor struct {
	maxDimension int
}

// NewPreprocessor creates a new image preprocessor
func NewPreprocessor(maxDimension int) *Preprocessor {
	if maxDimension <= 0 {
		maxDimension = 2000
	}
	return &Preprocessor{
		maxDimension: maxDimension,
	}
}

// PreprocessImage reads an image file and returns the bytes to send along with their MIME type
func (p *Preprocessor) PreprocessImage(imagePath string) ([]byte, string, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return p.PreprocessImageFromBytes(imageData)
}

// PreprocessImageFromBytes decodes imageData, resizes it when its longest side
// exceeds the limit and returns JPEG and PNG inputs that need no change untouched.
func (p *Preprocessor) PreprocessImageFromBytes(imageData []byte) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	fits := cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension
	if fits && (format == "jpeg" || format == "png") {
		return imageData, "image/" + format, nil
	}

	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	img := src
	if !fits {
		w, h := scaledSize(cfg.Width, cfg.Height, p.maxDimension)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// scaledSize keeps the aspect ratio while bounding the longest side by limit
func scaledSize(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
