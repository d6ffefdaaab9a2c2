package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"

	// Decoders for the capture formats the worker accepts.
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
)

// TargetSize returns the output dimensions for an image of w x h constrained
// to maxWidth. Images are only ever downscaled and keep their aspect ratio.
func TargetSize(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	h = int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}

// JPEGQuality maps a 0..1 quality factor onto the encoder's 1..100 scale.
func JPEGQuality(q float64) int {
	v := int(math.Round(q * 100))
	switch {
	case v < 1:
		return 1
	case v > 100:
		return 100
	default:
		return v
	}
}

type worker struct {
	logger *slog.Logger
}

func (w *worker) handle(_ context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case pingRequest:
		return pong{}, nil
	case compressRequest:
		return w.compress(m), nil
	default:
		return nil, fmt.Errorf("rendering worker: unsupported message %T", msg)
	}
}

func (w *worker) compress(req compressRequest) compressResponse {
	src, err := imagedata.ParseDataURL(req.Source)
	if err != nil {
		return compressResponse{DecodeFailed: true, Detail: err.Error()}
	}
	img, format, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return compressResponse{DecodeFailed: true, Detail: err.Error()}
	}

	bounds := img.Bounds()
	width, height := TargetSize(bounds.Dx(), bounds.Dy(), req.MaxWidth)
	if width <= 0 || height <= 0 {
		return compressResponse{}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// JPEG has no alpha channel; flatten transparent captures onto white.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality(req.Quality)}); err != nil {
		w.logger.Warn("jpeg encode failed", logging.Error(err))
		return compressResponse{}
	}
	if buf.Len() == 0 {
		return compressResponse{}
	}
	w.logger.Debug("image transcoded",
		logging.String("source_format", format),
		logging.Int("source_width", bounds.Dx()),
		logging.Int("source_height", bounds.Dy()),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Int("bytes", buf.Len()),
	)
	return compressResponse{DataURL: imagedata.New(buf.Bytes(), imagedata.MediaTypeJPEG).DataURL()}
}
