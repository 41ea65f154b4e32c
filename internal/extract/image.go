package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/otiai10/gosseract/v2"
)

// ocrLanguage is fixed; the corpus this service indexes is English.
const ocrLanguage = "eng"

// imageExtractor runs tesseract OCR over raster images. This path is
// CPU-bound and slow; callers must dispatch it through the worker pool,
// never on a request goroutine.
type imageExtractor struct{}

func (imageExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCR, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(ocrLanguage); err != nil {
		return "", fmt.Errorf("%w: set language: %v", ErrOCR, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: load image: %v", ErrOCR, err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCR, err)
	}
	return text, nil
}
