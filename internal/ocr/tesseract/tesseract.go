// Package tesseract implements extract.OCR with the Tesseract engine through
// gosseract. It needs libtesseract and the requested traineddata files at
// runtime, which is why it lives apart from the extract package.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Recognize runs OCR on an encoded image. A gosseract client is not safe for
// concurrent use, so every call gets its own.
func (e *Engine) Recognize(ctx context.Context, image []byte, languages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set ocr languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

// Version reports the linked Tesseract version, for startup logging.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
