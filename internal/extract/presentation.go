package extract

import (
	"context"
	"io"
)

// presentationPlaceholder stands in for slide decks. Parsing PowerPoint
// content is out of scope; the placeholder keeps such uploads searchable by
// their title and description instead of failing the extraction.
const presentationPlaceholder = "PowerPoint content extraction - Please refer to the original file for detailed content."

type presentationExtractor struct{}

func (presentationExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return presentationPlaceholder, nil
}
