// Package extract turns uploaded files into plain text. Images go through
// OCR, PDFs through content-stream text extraction, everything else is read
// as text.
package extract

import (
	"context"
	"fmt"
	"iter"
	"mime"
	"strings"
	"sync/atomic"
)

type UploadedFile struct {
	OriginalName string
	MIMEType     string
	Size         int64
	Content      []byte
}

type ExtractedDocument struct {
	SourceFile string
	Text       string
}

// ExtractionError reports a failure to read one file. It never aborts a batch.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// OCR recognizes text in an encoded image.
type OCR interface {
	Recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

type Extractor struct {
	ocr       OCR
	languages []string
}

func New(ocr OCR, languages []string) *Extractor {
	if len(languages) == 0 {
		languages = []string{"spa", "eng"}
	}
	return &Extractor{ocr: ocr, languages: languages}
}

// Extract returns the trimmed text of f. Empty output is not an error.
func (e *Extractor) Extract(ctx context.Context, f UploadedFile) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &ExtractionError{File: f.OriginalName, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", &ExtractionError{File: f.OriginalName, Err: err}
	}

	switch mediaType := baseMediaType(f.MIMEType); {
	case strings.HasPrefix(mediaType, "image/"):
		text, err = e.extractImage(ctx, f.Content)
	case mediaType == "application/pdf":
		text, err = extractPDF(f.Content)
	default:
		text, err = decodeText(f.Content)
	}
	if err != nil {
		return "", &ExtractionError{File: f.OriginalName, Err: err}
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("no OCR engine configured")
	}
	prepared, err := preprocessImage(data)
	if err != nil {
		return "", err
	}
	return e.ocr.Recognize(ctx, prepared, e.languages)
}

// Result is one element of ExtractAll: either a document or an error.
type Result struct {
	Doc ExtractedDocument
	Err error
}

// ExtractAll lazily extracts files in order, one Result per file. The
// sequence can be ranged over once; later ranges yield nothing.
func (e *Extractor) ExtractAll(ctx context.Context, files []UploadedFile) iter.Seq[Result] {
	var consumed atomic.Bool
	return func(yield func(Result) bool) {
		if consumed.Swap(true) {
			return
		}
		for _, f := range files {
			text, err := e.Extract(ctx, f)
			if !yield(Result{Doc: ExtractedDocument{SourceFile: f.OriginalName, Text: text}, Err: err}) {
				return
			}
		}
	}
}

func baseMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
