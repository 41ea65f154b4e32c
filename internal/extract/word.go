package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// wordExtractor handles both the modern .docx archive (word/document.xml
// inside a ZIP) and, best-effort, the legacy .doc binary format.
type wordExtractor struct{}

func (wordExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWordParse, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if text, err := extractDocx(data); err == nil {
		return text, nil
	}

	// Not a ZIP archive: legacy binary .doc. Salvage printable runs.
	text := salvageBinaryText(data)
	if text == "" {
		return "", fmt.Errorf("%w: no readable text", ErrWordParse)
	}
	return text, nil
}

// extractDocx streams word/document.xml and joins paragraph character data.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var out strings.Builder
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				inParagraph = true
				current.Reset()
			}
		case xml.CharData:
			if inParagraph {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				if text := strings.TrimSpace(current.String()); text != "" {
					if out.Len() > 0 {
						out.WriteByte('\n')
					}
					out.WriteString(text)
				}
			}
		}
	}
	return out.String(), nil
}

// salvageBinaryText pulls runs of printable ASCII out of a legacy .doc
// payload. Runs shorter than minRunLen are treated as binary noise.
func salvageBinaryText(data []byte) string {
	const minRunLen = 4
	var out strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minRunLen {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.Write(run)
		}
		run = run[:0]
	}
	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			run = append(run, b)
		} else {
			flush()
		}
	}
	flush()
	return strings.TrimSpace(out.String())
}
