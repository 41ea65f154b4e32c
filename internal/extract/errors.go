package extract

import "errors"

// Extraction failure taxonomy. Dispatch failures use ErrUnsupportedFormat
// and happen before any bytes are read; the remaining sentinels classify
// per-format extraction failures and are matched with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTextRead          = errors.New("text read failed")
	ErrPDFParse          = errors.New("pdf parse failed")
	ErrWordParse         = errors.New("word document parse failed")
	ErrOCR               = errors.New("image ocr failed")
)
