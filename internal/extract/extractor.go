// Package extract turns uploaded material bytes into plain text.
//
// One extractor exists per supported format; ForExtension selects it from a
// file extension without touching the payload. Extracted text is raw — run
// it through Normalize before storing.
package extract

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Extractor derives plain text from a single document format.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

var extractors = map[string]Extractor{
	".txt":  textExtractor{},
	".pdf":  pdfExtractor{},
	".doc":  wordExtractor{},
	".docx": wordExtractor{},
	".jpg":  imageExtractor{},
	".jpeg": imageExtractor{},
	".png":  imageExtractor{},
	".ppt":  presentationExtractor{},
	".pptx": presentationExtractor{},
}

// ForExtension returns the extractor responsible for the given file
// extension (case-insensitive, with or without the leading dot). Unknown
// extensions fail with ErrUnsupportedFormat before any bytes are read.
func ForExtension(ext string) (Extractor, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	e, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return e, nil
}

// Supported lists the recognized extensions, sorted.
func Supported() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
