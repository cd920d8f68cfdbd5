package reader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/gen2brain/heic"
	xdraw "golang.org/x/image/draw"

	"fjacquet/budget-import/internal/logging"
	"fjacquet/budget-import/internal/models"
)

// LetterboxSize is the square resolution multimodal models expect.
// Gemma-class vision models take 896x896 input; other providers ignore
// the padding, so one normalization serves all of them.
const LetterboxSize = 896

// ImageReader decodes a photo into one RawUnit of PNG bytes. When the
// selected provider takes multimodal input the image is letterboxed to
// LetterboxSize x LetterboxSize preserving aspect ratio; otherwise the
// decoded image is passed through at its native size for OCR.
type ImageReader struct {
	letterbox bool
	log       logging.Logger
}

// NewImageReader creates an image reader. letterbox should be true when
// the selected extraction provider is multimodal.
func NewImageReader(letterbox bool, log logging.Logger) *ImageReader {
	if log == nil {
		log = logging.GetLogger()
	}
	return &ImageReader{letterbox: letterbox, log: log}
}

// Read decodes the file and returns its unit.
func (r *ImageReader) Read(path string) (models.RawUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawUnit{}, fmt.Errorf("reading image %s: %w", path, err)
	}

	img, err := decodeImage(data)
	if err != nil {
		return models.RawUnit{}, fmt.Errorf("decoding image %s: %w", path, err)
	}

	if r.letterbox {
		img = Letterbox(img, LetterboxSize)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return models.RawUnit{}, fmt.Errorf("encoding PNG for %s: %w", path, err)
	}

	r.log.Debug("Read image",
		logging.Field{Key: logging.FieldFile, Value: path},
		logging.Field{Key: "letterboxed", Value: r.letterbox})

	return models.RawUnit{
		Kind:       models.SourceImage,
		Origin:     path,
		Image:      buf.Bytes(),
		CapturedAt: time.Now().UTC(),
	}, nil
}

// decodeImage handles the standard formats plus HEIC, which iPhones
// produce and the stdlib image package does not support.
func decodeImage(data []byte) (image.Image, error) {
	if isHEIC(data) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format (supported: JPEG, PNG, GIF, HEIC): %w", err)
		}
		return nil, err
	}
	return img, nil
}

// isHEIC checks the ftyp box brands HEIC/HEIF containers start with.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// Letterbox scales the image to fit within a size x size square
// preserving aspect ratio and centers it on a white canvas.
func Letterbox(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}

	scale := float64(size) / float64(width)
	if s := float64(size) / float64(height); s < scale {
		scale = s
	}
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	pasteX := (size - newWidth) / 2
	pasteY := (size - newHeight) / 2
	target := image.Rect(pasteX, pasteY, pasteX+newWidth, pasteY+newHeight)
	xdraw.CatmullRom.Scale(canvas, target, img, bounds, xdraw.Over, nil)

	return canvas
}
