// Package api exposes the capture pipeline over HTTP/JSON.
package api

import (
	"net/http"
)

// NewRouter creates a new HTTP router
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)

	mux.HandleFunc("POST /captures", h.HandleCreateCapture)
	mux.HandleFunc("GET /captures", h.HandleListCaptures)
	mux.HandleFunc("POST /captures/photo", h.HandleUploadPhoto)
	mux.HandleFunc("GET /captures/{id}", h.HandleGetCapture)
	mux.HandleFunc("DELETE /captures/{id}", h.HandleDeleteCapture)
	mux.HandleFunc("POST /captures/{id}/convert", h.HandleConvertCapture)
	mux.HandleFunc("POST /captures/{id}/archive", h.HandleArchiveCapture)
	mux.HandleFunc("POST /captures/{id}/reprocess", h.HandleReprocessCapture)

	mux.HandleFunc("POST /parse", h.HandleParse)
	mux.HandleFunc("POST /ocr/fields", h.HandleOCRFields)

	mux.HandleFunc("GET /settings/{owner}", h.HandleGetSettings)
	mux.HandleFunc("PUT /settings/{owner}", h.HandleUpdateSettings)
	mux.HandleFunc("GET /stats/{owner}", h.HandleStats)
	mux.HandleFunc("GET /family/{owner}", h.HandleGetFamily)
	mux.HandleFunc("PUT /family/{owner}", h.HandleUpdateFamily)
	mux.HandleFunc("GET /agenda/{owner}", h.HandleAgenda)
	mux.HandleFunc("POST /tasks/{id}/complete", h.HandleCompleteTask)

	if h.SMS != nil {
		mux.Handle("POST /sms/webhook", h.SMS)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	return mux
}
