package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/segment"
)

const maxPhotoSize = 10 << 20

// FamilyStore reads and replaces household rosters.
type FamilyStore interface {
	Roster(ctx context.Context, ownerID string) (family.Roster, error)
	SaveRoster(ctx context.Context, ownerID string, roster family.Roster) error
}

// Planner reads the converted events and tasks.
type Planner interface {
	Events(ctx context.Context, ownerID string, from, to time.Time) ([]capture.Target, error)
	OpenTasks(ctx context.Context, ownerID string, limit int) ([]capture.Target, error)
	CompleteTask(ctx context.Context, id string) error
}

// Handler holds dependencies for API handlers
type Handler struct {
	Captures *capture.Manager
	Family   FamilyStore
	// Roster is what parsing reads; usually a cache over Family.
	Roster  family.Source
	Planner Planner
	SMS     http.Handler
	Metrics http.Handler

	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

func (h *Handler) now() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	if h.Location != nil {
		return now().In(h.Location)
	}
	return now()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    capterr.ErrorCode `json:"code"`
	Message string            `json:"message"`
	Details map[string]any    `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var cErr *capterr.CaptureError
	if !errors.As(err, &cErr) {
		cErr = capterr.NewInternal(err)
	}
	if cErr.Status >= 500 {
		h.logger().Error("request failed", "error", err)
	}
	writeJSON(w, cErr.Status, map[string]errorBody{
		"error": {Code: cErr.Code, Message: cErr.Message, Details: cErr.Details},
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return capterr.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateCaptureRequest is the JSON form of an envelope. Photos go through
// /captures/photo.
type CreateCaptureRequest struct {
	OwnerID        string            `json:"ownerId"`
	InputChannel   capture.Channel   `json:"inputChannel"`
	RawContent     string            `json:"rawContent"`
	SourceMetadata map[string]string `json:"sourceMetadata"`
}

// HandleCreateCapture handles POST /captures
func (h *Handler) HandleCreateCapture(w http.ResponseWriter, r *http.Request) {
	var req CreateCaptureRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.InputChannel == "" {
		req.InputChannel = capture.ChannelText
	}
	item, err := h.Captures.Submit(r.Context(), capture.Envelope{
		OwnerID:        req.OwnerID,
		InputChannel:   req.InputChannel,
		RawContent:     req.RawContent,
		SourceMetadata: req.SourceMetadata,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleUploadPhoto handles POST /captures/photo (multipart field "photo").
func (h *Handler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		h.writeError(w, capterr.NewValidation("invalid multipart form: "+err.Error()))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		h.writeError(w, capterr.NewValidation("photo file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, capterr.NewValidation("failed to read photo"))
		return
	}

	var meta map[string]string
	if v := r.FormValue(capture.MetaOCRThreshold); v != "" {
		meta = map[string]string{capture.MetaOCRThreshold: v}
	}
	item, err := h.Captures.AttachImage(r.Context(), r.FormValue("ownerId"), header.Filename, data, r.FormValue("caption"), meta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleListCaptures handles GET /captures?owner=...
func (h *Handler) HandleListCaptures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := capture.Filter{
		OwnerID:  q.Get("owner"),
		Status:   capture.Status(q.Get("status")),
		Channel:  capture.Channel(q.Get("channel")),
		Category: q.Get("category"),
		Contains: q.Get("q"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, capterr.NewValidation("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	items, err := h.Captures.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []*capture.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleGetCapture handles GET /captures/{id}
func (h *Handler) HandleGetCapture(w http.ResponseWriter, r *http.Request) {
	item, err := h.Captures.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ConvertRequest selects the target type; the remaining fields override
// what the analysis found.
type ConvertRequest struct {
	Type string `json:"type"`
	capture.Overrides
}

// HandleConvertCapture handles POST /captures/{id}/convert
func (h *Handler) HandleConvertCapture(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.Captures.Convert(r.Context(), r.PathValue("id"), req.Type, req.Overrides)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleArchiveCapture handles POST /captures/{id}/archive
func (h *Handler) HandleArchiveCapture(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Captures.Archive(r.Context(), r.PathValue("id")))
}

// HandleDeleteCapture handles DELETE /captures/{id}
func (h *Handler) HandleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Captures.Delete(r.Context(), r.PathValue("id")))
}

// HandleReprocessCapture handles POST /captures/{id}/reprocess
func (h *Handler) HandleReprocessCapture(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Captures.Reprocess(r.Context(), r.PathValue("id")))
}

func (h *Handler) respond(w http.ResponseWriter) func(*capture.Item, error) {
	return func(item *capture.Item, err error) {
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// ParseRequest is the body of /parse and /ocr/fields.
type ParseRequest struct {
	Text    string `json:"text"`
	OwnerID string `json:"ownerId,omitempty"`
}

// HandleParse handles POST /parse. It runs entity extraction and
// segmentation without storing anything.
func (h *Handler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, capterr.NewValidation("text is required"))
		return
	}
	var roster family.Roster
	if req.OwnerID != "" && h.Roster != nil {
		var err error
		roster, err = h.Roster.Roster(r.Context(), req.OwnerID)
		if err != nil {
			h.logger().Warn("roster unavailable, parsing without it", "owner", req.OwnerID, "error", err)
		}
	}
	bag := extract.New(roster, h.now()).Extract(req.Text)
	writeJSON(w, http.StatusOK, segment.Parse(req.Text, bag))
}

// HandleOCRFields handles POST /ocr/fields
func (h *Handler) HandleOCRFields(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Captures.ExtractFields(req.Text))
}

// HandleGetSettings handles GET /settings/{owner}
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Captures.Settings(r.Context(), r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleUpdateSettings handles PUT /settings/{owner}. Only the sections
// present in the body change.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch capture.SettingsPatch
	if err := decode(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.Captures.UpdateSettings(r.Context(), r.PathValue("owner"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleStats handles GET /stats/{owner}
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Captures.Stats(r.Context(), r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleGetFamily handles GET /family/{owner}
func (h *Handler) HandleGetFamily(w http.ResponseWriter, r *http.Request) {
	roster, err := h.Family.Roster(r.Context(), r.PathValue("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if roster == nil {
		roster = family.Roster{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": roster})
}

// HandleUpdateFamily handles PUT /family/{owner}
func (h *Handler) HandleUpdateFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Members family.Roster `json:"members"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	for _, m := range req.Members {
		if strings.TrimSpace(m.Name) == "" {
			h.writeError(w, capterr.NewValidation("every member needs a name"))
			return
		}
	}
	owner := r.PathValue("owner")
	if err := h.Family.SaveRoster(r.Context(), owner, req.Members); err != nil {
		h.writeError(w, err)
		return
	}
	if c, ok := h.Roster.(interface{ Invalidate(string) }); ok {
		c.Invalidate(owner)
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": req.Members})
}

// HandleAgenda handles GET /agenda/{owner}?day=YYYY-MM-DD: the day's events
// and every open task.
func (h *Handler) HandleAgenda(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, now.Location())
		if err != nil {
			h.writeError(w, capterr.NewValidation("day must be YYYY-MM-DD"))
			return
		}
		day = d
	}
	owner := r.PathValue("owner")
	events, err := h.Planner.Events(r.Context(), owner, day, day.AddDate(0, 0, 1))
	if err != nil {
		h.writeError(w, err)
		return
	}
	tasks, err := h.Planner.OpenTasks(r.Context(), owner, 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if events == nil {
		events = []capture.Target{}
	}
	if tasks == nil {
		tasks = []capture.Target{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":    day.Format("2006-01-02"),
		"events": events,
		"tasks":  tasks,
	})
}

// HandleCompleteTask handles POST /tasks/{id}/complete
func (h *Handler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.CompleteTask(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
