package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asesorlegal/backend/internal/extract"
	"github.com/asesorlegal/backend/internal/llm"
	"github.com/asesorlegal/backend/internal/store"
)

type DocumentRequest struct {
	UserID string
	Query  string
	Files  []extract.UploadedFile
}

type DocumentResponse struct {
	Response       string   `json:"response"`
	FilesProcessed []string `json:"filesProcessed"`
}

type DocumentService struct {
	llm       llm.Client
	extractor TextExtractor
	recorder  Recorder
	settings  Settings
}

func NewDocumentService(client llm.Client, extractor TextExtractor, recorder Recorder, settings Settings) *DocumentService {
	return &DocumentService{
		llm:       client,
		extractor: extractor,
		recorder:  recorder,
		settings:  settings,
	}
}

// Analyze extracts text from every file, skipping the ones that fail, and
// asks the model to explain the aggregate.
func (s *DocumentService) Analyze(ctx context.Context, req DocumentRequest) (*DocumentResponse, error) {
	start := time.Now()

	if len(req.Files) == 0 {
		return nil, validationError("no documents provided", nil)
	}
	if s.settings.MaxFiles > 0 && len(req.Files) > s.settings.MaxFiles {
		return nil, validationError("too many documents",
			fmt.Errorf("%d files exceeds limit of %d", len(req.Files), s.settings.MaxFiles))
	}

	var blocks, processed []string
	for res := range s.extractor.ExtractAll(ctx, req.Files) {
		if res.Err != nil {
			slog.Warn("document extraction failed",
				"user_id", req.UserID,
				"file", res.Doc.SourceFile,
				"error", res.Err,
			)
			continue
		}
		if strings.TrimSpace(res.Doc.Text) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", res.Doc.SourceFile, res.Doc.Text))
		processed = append(processed, res.Doc.SourceFile)
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "request cancelled", Err: err}
	}
	if len(blocks) == 0 {
		return nil, validationError("no readable text", nil)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = defaultDocumentQuery
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: documentInstruction},
		{Role: llm.RoleUser, Content: BuildDocumentPrompt(strings.Join(blocks, "\n\n"), query)},
	}

	resp, err := complete(ctx, s.llm, s.settings, messages)
	if err != nil {
		logUpstream("analyze_document", req.UserID, err)
		return nil, upstreamError(err)
	}

	files := make([]store.FileMeta, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, store.FileMeta{FileName: f.OriginalName, FileType: f.MIMEType, FileSize: f.Size})
	}
	s.recorder.Record(&store.Interaction{
		Kind:             store.KindDocument,
		UserID:           req.UserID,
		Query:            query,
		Files:            files,
		Response:         resp.Content,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})

	return &DocumentResponse{Response: resp.Content, FilesProcessed: processed}, nil
}

// BuildDocumentPrompt renders the user turn of an analysis request.
func BuildDocumentPrompt(aggregate, query string) string {
	return "Documentos a analizar:\n" + aggregate + "\n\nConsulta específica: " + query
}
