package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/asesorlegal/backend/internal/auth"
	"github.com/asesorlegal/backend/internal/config"
	"github.com/asesorlegal/backend/internal/core"
	"github.com/asesorlegal/backend/internal/extract"
	"github.com/asesorlegal/backend/internal/llm"
)

const (
	maxChatBodyBytes = 1 << 20
	multipartMemory  = 32 << 20
)

var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// uploadTypesByExt is the last resort for uploads that neither declare nor
// sniff as an allowed type.
var uploadTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// Non-standard names some browsers and scanners send.
var mediaTypeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
}

type APIHandler struct {
	chatService     *core.ChatService
	documentService *core.DocumentService
	gate            *auth.Gate

	webConfig      config.FirebaseWebConfig
	maxUploadBytes int64
	maxUploadFiles int
	dev            bool
}

func NewAPIHandler(cs *core.ChatService, ds *core.DocumentService, gate *auth.Gate, cfg *config.Config) *APIHandler {
	return &APIHandler{
		chatService:     cs,
		documentService: ds,
		gate:            gate,
		webConfig:       cfg.Firebase,
		maxUploadBytes:  cfg.Limits.MaxUploadBytes,
		maxUploadFiles:  cfg.Limits.MaxUploadFiles,
		dev:             cfg.IsDevelopment(),
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type envConfig struct {
	APIKey            string `json:"FIREBASE_API_KEY"`
	AuthDomain        string `json:"FIREBASE_AUTH_DOMAIN"`
	ProjectID         string `json:"FIREBASE_PROJECT_ID"`
	StorageBucket     string `json:"FIREBASE_STORAGE_BUCKET"`
	MessagingSenderID string `json:"FIREBASE_MESSAGING_SENDER_ID"`
	AppID             string `json:"FIREBASE_APP_ID"`
}

// EnvConfigHandler exposes the public web client settings as a script.
func (h *APIHandler) EnvConfigHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := json.Marshal(envConfig(h.webConfig))
	if err != nil {
		http.Error(w, "failed to encode config", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, "window.ENV = %s;", payload)
}

type ChatRequest struct {
	Message             string        `json:"message"`
	Category            string        `json:"category"`
	ConversationHistory []llm.Message `json:"conversationHistory"`
}

func (h *APIHandler) ChatWithAIHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "payload too large", "La solicitud es demasiado grande", err, false)
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body", "Cuerpo de la solicitud inválido", err, false)
		return
	}

	resp, err := h.chatService.Chat(r.Context(), core.ChatRequest{
		UserID:   principal.SubjectID,
		Message:  req.Message,
		Category: req.Category,
		History:  req.ConversationHistory,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) AnalyzeDocumentHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "payload too large",
				fmt.Sprintf("Los archivos superan el máximo de %d MB", h.maxUploadBytes>>20), err, false)
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "Formulario inválido", err, false)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["document"]
	if len(headers) > h.maxUploadFiles {
		h.writeError(w, http.StatusBadRequest, "too many documents",
			fmt.Sprintf("Se permiten como máximo %d archivos", h.maxUploadFiles), nil, false)
		return
	}

	files := make([]extract.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		file, err := readUpload(fh)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid upload", "No se pudo leer el archivo "+fh.Filename, err, false)
			return
		}
		if !allowedUploadTypes[file.MIMEType] {
			slog.Warn("rejected upload type", "file", fh.Filename, "type", file.MIMEType)
			h.writeError(w, http.StatusBadRequest, "unsupported file type",
				"Tipo de archivo no permitido: "+fh.Filename+". Usa JPG, PNG, PDF o TXT", nil, false)
			return
		}
		files = append(files, file)
	}

	var query string
	if values := r.MultipartForm.Value["query"]; len(values) > 0 {
		query = values[0]
	}

	resp, err := h.documentService.Analyze(r.Context(), core.DocumentRequest{
		UserID: principal.SubjectID,
		Query:  query,
		Files:  files,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload reads one multipart file. The declared content type wins; it is
// sniffed only when missing or generic, and the file extension decides when
// sniffing finds nothing better.
func readUpload(fh *multipart.FileHeader) (extract.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return extract.UploadedFile{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return extract.UploadedFile{}, err
	}

	return extract.UploadedFile{
		OriginalName: fh.Filename,
		MIMEType:     uploadMediaType(fh.Filename, fh.Header.Get("Content-Type"), content),
		Size:         int64(len(content)),
		Content:      content,
	}, nil
}

func uploadMediaType(filename, declared string, content []byte) string {
	mediaType := mediaTypeOf(declared)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mediaTypeOf(http.DetectContentType(content))
	}
	if mediaType == "application/octet-stream" {
		if byExt, ok := uploadTypesByExt[strings.ToLower(filepath.Ext(filename))]; ok {
			mediaType = byExt
		}
	}
	if alias, ok := mediaTypeAliases[mediaType]; ok {
		return alias
	}
	return mediaType
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
