package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"versegraph/application/services"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	"versegraph/pkg/common"
	pkgerrors "versegraph/pkg/errors"
)

const maxRequestBody = 64 * 1024

// GraphHandler exposes the per-session graph state manager over REST. Every
// route resolves its session first; state never leaks between sessions.
type GraphHandler struct {
	sessions    *services.SessionManager
	annotations *services.AnnotationService
	errHandler  *pkgerrors.ErrorHandler
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewGraphHandler creates a graph handler
func NewGraphHandler(
	sessions *services.SessionManager,
	annotations *services.AnnotationService,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		sessions:    sessions,
		annotations: annotations,
		errHandler:  pkgerrors.NewErrorHandler(logger),
		validate:    validator.New(),
		logger:      logger,
	}
}

type verseKeyRequest struct {
	VerseKey string `json:"verse_key" validate:"required"`
}

type loadRequest struct {
	VerseKey string `json:"verse_key" validate:"required"`
	PageSize int    `json:"page_size" validate:"gte=0"`
}

type dragRequest struct {
	VerseKey string  `json:"verse_key" validate:"required"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type filterRequest struct {
	Term     string `json:"term"`
	Category string `json:"category" validate:"omitempty,oneof=note commentary reflection question"`
}

type hoverRequest struct {
	VerseKey string `json:"verse_key"`
}

// CreateSession opens a new graph browsing session
func (h *GraphHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Create()
	common.RespondJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// CloseSession discards a session and its canonical state
func (h *GraphHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// Snapshot returns the full render payload for the session
func (h *GraphHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, svc.Snapshot())
}

// LoadNeighborhood merges one relationship window into the session graph
func (h *GraphHandler) LoadNeighborhood(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req loadRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	found, err := svc.LoadNeighborhood(r.Context(), key, req.PageSize)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"resident":   found,
		"node_count": svc.NodeCount(),
		"edge_count": svc.EdgeCount(),
	})
}

// Focus resolves a show-and-center request
func (h *GraphHandler) Focus(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req verseKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	result, err := svc.FocusOn(r.Context(), key)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ClearFocus removes the focus restriction
func (h *GraphHandler) ClearFocus(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	svc.ClearFocus()
	w.WriteHeader(http.StatusNoContent)
}

// Expand toggles disclosure of a verse's cross-references
func (h *GraphHandler) Expand(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req verseKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}

	result, err := svc.Expand(r.Context(), key)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Collapse retracts a verse's expansion edges
func (h *GraphHandler) Collapse(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req verseKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, svc.Collapse(key))
}

// Drag applies a user-driven node move
func (h *GraphHandler) Drag(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dragRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	if err := svc.DragNode(key, req.X, req.Y); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFilter updates the term and category restriction
func (h *GraphHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := svc.SetFilter(req.Term, entities.AnnotationCategory(req.Category)); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetHover records the hovered verse; an empty key clears it
func (h *GraphHandler) SetHover(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	var req hoverRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.VerseKey == "" {
		svc.SetHover(nil)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	svc.SetHover(&key)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshCategories pulls the caller's annotation categories into the
// session so the category filter reflects their cards
func (h *GraphHandler) RefreshCategories(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := h.annotations.CategoriesByVerse(r.Context())
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	svc.SetNodeCategories(index)
	common.RespondJSON(w, http.StatusOK, map[string]int{"verses_with_cards": len(index)})
}

func (h *GraphHandler) session(w http.ResponseWriter, r *http.Request) (*services.GraphSyncService, bool) {
	svc, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return nil, false
	}
	return svc, true
}

func (h *GraphHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(r, v, maxRequestBody); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.BadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.ValidationError, err.Error())
		return false
	}
	return true
}
