package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/asesorlegal/backend/internal/extract"
	"github.com/asesorlegal/backend/internal/llm"
	"github.com/asesorlegal/backend/internal/store"
)

func documentSettings() Settings {
	return Settings{
		Params:   llm.Params{Temperature: 0.7, MaxTokens: 2500},
		Timeout:  time.Minute,
		MaxFiles: 3,
	}
}

func textFile(name, content string) extract.UploadedFile {
	return extract.UploadedFile{OriginalName: name, MIMEType: "text/plain", Size: int64(len(content)), Content: []byte(content)}
}

// A PNG with no OCR engine configured always fails extraction.
func brokenImage(name string) extract.UploadedFile {
	return extract.UploadedFile{OriginalName: name, MIMEType: "image/png", Content: []byte("not a png")}
}

func newDocumentService(client llm.Client, rec Recorder) *DocumentService {
	return NewDocumentService(client, extract.New(nil, nil), rec, documentSettings())
}

func TestAnalyzeNoFiles(t *testing.T) {
	client := &fakeLLM{reply: "x"}
	_, err := newDocumentService(client, &fakeRecorder{}).Analyze(context.Background(), DocumentRequest{UserID: "u1"})
	if KindOf(err) != KindValidation || !strings.Contains(err.Error(), "no documents provided") {
		t.Fatalf("unexpected error %v", err)
	}
	if client.calls != 0 {
		t.Fatal("model must not be called")
	}
}

func TestAnalyzeTooManyFiles(t *testing.T) {
	client := &fakeLLM{reply: "x"}
	files := []extract.UploadedFile{textFile("a", "a"), textFile("b", "b"), textFile("c", "c"), textFile("d", "d")}
	_, err := newDocumentService(client, &fakeRecorder{}).Analyze(context.Background(), DocumentRequest{UserID: "u1", Files: files})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeAllUnreadable(t *testing.T) {
	client := &fakeLLM{reply: "x"}
	rec := &fakeRecorder{}
	files := []extract.UploadedFile{brokenImage("scan.png"), textFile("vacio.txt", "   \n  ")}
	_, err := newDocumentService(client, rec).Analyze(context.Background(), DocumentRequest{UserID: "u1", Files: files})

	if KindOf(err) != KindValidation || !strings.Contains(err.Error(), "no readable text") {
		t.Fatalf("unexpected error %v", err)
	}
	if client.calls != 0 || len(rec.recs) != 0 {
		t.Fatal("unreadable batches must not reach the model or the recorder")
	}
}

func TestAnalyzeSkipsFailedFiles(t *testing.T) {
	client := &fakeLLM{reply: "Este es un contrato de arriendo."}
	rec := &fakeRecorder{}
	files := []extract.UploadedFile{
		textFile("contrato.txt", "Contrato de arriendo entre las partes..."),
		brokenImage("foto.png"),
		textFile("anexo.txt", "Plazo: 30 días"),
	}

	resp, err := newDocumentService(client, rec).Analyze(context.Background(), DocumentRequest{UserID: "u1", Files: files})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Response != "Este es un contrato de arriendo." {
		t.Fatalf("unexpected response %q", resp.Response)
	}
	if strings.Join(resp.FilesProcessed, ",") != "contrato.txt,anexo.txt" {
		t.Fatalf("unexpected filesProcessed %v", resp.FilesProcessed)
	}

	if len(client.messages) != 2 || client.messages[0].Role != llm.RoleSystem || client.messages[1].Role != llm.RoleUser {
		t.Fatalf("unexpected prompt shape %+v", client.messages)
	}
	want := BuildDocumentPrompt(
		"--- contrato.txt ---\nContrato de arriendo entre las partes...\n\n--- anexo.txt ---\nPlazo: 30 días",
		defaultDocumentQuery,
	)
	if client.messages[1].Content != want {
		t.Fatalf("unexpected user content:\n%s", client.messages[1].Content)
	}
	if !strings.Contains(client.messages[0].Content, callToAction) {
		t.Fatal("system instruction must carry the call to action")
	}
	if client.params.MaxTokens != 2500 {
		t.Fatalf("unexpected params %+v", client.params)
	}

	if len(rec.recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rec.recs))
	}
	got := rec.recs[0]
	if got.Kind != store.KindDocument || len(got.Files) != 3 || got.Files[0].FileName != "contrato.txt" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestAnalyzeUsesCallerQuery(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	files := []extract.UploadedFile{textFile("carta.txt", "Aviso de cobranza")}
	_, err := newDocumentService(client, &fakeRecorder{}).Analyze(context.Background(), DocumentRequest{
		UserID: "u1",
		Query:  "¿Cuándo vence?",
		Files:  files,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.HasSuffix(client.messages[1].Content, "Consulta específica: ¿Cuándo vence?") {
		t.Fatalf("query not appended: %q", client.messages[1].Content)
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	client := &fakeLLM{err: &llm.Error{Kind: llm.KindRateLimited, Provider: "openai"}}
	rec := &fakeRecorder{}
	files := []extract.UploadedFile{textFile("carta.txt", "Aviso de cobranza")}
	_, err := newDocumentService(client, rec).Analyze(context.Background(), DocumentRequest{UserID: "u1", Files: files})
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(rec.recs) != 0 {
		t.Fatal("failed analyses must not be recorded")
	}
}
