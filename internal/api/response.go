package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asesorlegal/backend/internal/core"
)

// errorResponse is the single error envelope of the API. Error is a stable
// English code-like string, Details a user-facing Spanish message.
type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, code, details string, cause error, retryable bool) {
	if h.dev && cause != nil {
		details = cause.Error()
	}
	writeJSON(w, status, errorResponse{Error: code, Details: details, Retryable: retryable})
}

// writeServiceError maps pipeline errors onto HTTP statuses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		h.writeError(w, http.StatusInternalServerError, "internal error", "Error interno del servidor", err, false)
		return
	}

	switch coreErr.Kind {
	case core.KindValidation:
		h.writeError(w, http.StatusBadRequest, coreErr.Message, validationDetails(coreErr.Message), coreErr, false)
	case core.KindRateLimited:
		h.writeError(w, http.StatusTooManyRequests, coreErr.Message,
			"El servicio está saturado, intenta nuevamente en unos momentos", coreErr, true)
	default:
		h.writeError(w, http.StatusInternalServerError, coreErr.Message,
			"Error al procesar la consulta", coreErr, coreErr.Retryable)
	}
}

func validationDetails(msg string) string {
	switch msg {
	case "message is required":
		return "Se requiere un mensaje para procesar"
	case "no documents provided":
		return "Se requiere al menos un archivo para analizar"
	case "no readable text":
		return "No se pudo extraer texto legible de los documentos proporcionados"
	case "too many documents":
		return "Se excedió la cantidad máxima de archivos"
	case "conversation too long":
		return "La conversación es demasiado larga, inicia una nueva consulta"
	default:
		return "Solicitud inválida"
	}
}
