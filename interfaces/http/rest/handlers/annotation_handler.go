package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"versegraph/application/services"
	"versegraph/pkg/common"
	pkgerrors "versegraph/pkg/errors"
)

// AnnotationHandler exposes knowledge-card CRUD over REST
type AnnotationHandler struct {
	annotations *services.AnnotationService
	errHandler  *pkgerrors.ErrorHandler
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAnnotationHandler creates an annotation handler
func NewAnnotationHandler(annotations *services.AnnotationService, logger *zap.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		annotations: annotations,
		errHandler:  pkgerrors.NewErrorHandler(logger),
		validate:    validator.New(),
		logger:      logger,
	}
}

// Create attaches a new card to a verse
func (h *AnnotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAnnotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.annotations.Create(r.Context(), req)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, view)
}

// List returns the caller's cards, optionally narrowed by verse or category
func (h *AnnotationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.annotations.List(r.Context(),
		r.URL.Query().Get("verse_key"),
		r.URL.Query().Get("category"),
	)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, views)
}

// Update edits a card owned by the caller
func (h *AnnotationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateAnnotationRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.annotations.Update(r.Context(), chi.URLParam(r, "annotationID"), req)
	if err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// Delete removes a card owned by the caller
func (h *AnnotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.annotations.Delete(r.Context(), chi.URLParam(r, "annotationID")); err != nil {
		h.errHandler.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
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
