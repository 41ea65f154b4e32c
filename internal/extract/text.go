package extract

import (
	"context"
	"fmt"
	"io"
)

// textExtractor reads plain text files verbatim.
type textExtractor struct{}

func (textExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTextRead, err)
	}
	return string(data), nil
}
