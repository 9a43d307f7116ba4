package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/scribe-engine/internal/jobs"
	"github.com/snarg/scribe-engine/internal/subtitle"
	"github.com/snarg/scribe-engine/internal/transcribe"
)

type TranscriptionsHandler struct {
	jobs   Transcriber
	engine CapabilityReporter
	models ModelLister
}

func NewTranscriptionsHandler(jobs Transcriber, engine CapabilityReporter, models ModelLister) *TranscriptionsHandler {
	return &TranscriptionsHandler{jobs: jobs, engine: engine, models: models}
}

func (h *TranscriptionsHandler) Routes(r chi.Router) {
	r.Post("/items/{id}/transcribe", h.Transcribe)
	r.Get("/items/{id}/transcription/status", h.GetStatus)
	r.Get("/items/{id}/subtitles", h.ListSubtitles)
	r.Get("/items/{id}/subtitles/{language}/{format}", h.GetSubtitle)
	r.Delete("/items/{id}/subtitles/{language}", h.DeleteSubtitles)
	r.Get("/transcription/models", h.ListModels)
	r.Get("/transcription/languages", h.ListLanguages)
}

// Transcribe starts a background job for an item. The body is optional:
// {"language": "es", "model": "small", "force": false}.
func (h *TranscriptionsHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	id, err := PathString(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	var opts jobs.Options
	if err := DecodeOptionalJSON(r, &opts); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	job, err := h.jobs.Submit(r.Context(), id, opts)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusAccepted, job)
	case errors.Is(err, jobs.ErrAlreadyProcessing):
		WriteErrorDetail(w, http.StatusConflict, "transcription already in progress", err.Error())
	case errors.Is(err, jobs.ErrNoAudioSources):
		WriteErrorDetail(w, http.StatusBadRequest, "item has no audio files", err.Error())
	case errors.Is(err, jobs.ErrInvalidArgument):
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, jobs.ErrEngineUnavailable):
		WriteErrorDetail(w, http.StatusServiceUnavailable, "transcription engine not available", err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		WriteErrorDetail(w, http.StatusServiceUnavailable, "transcription queue is full", err.Error())
	default:
		WriteErrorDetail(w, http.StatusInternalServerError, "failed to start transcription", err.Error())
	}
}

// GetStatus returns the latest job record for an item.
func (h *TranscriptionsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.jobs.Status(id))
}

// ListSubtitles lists the languages and formats stored for an item.
func (h *TranscriptionsHandler) ListSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	artifacts := h.jobs.ListArtifacts(r.Context(), id)
	WriteJSON(w, http.StatusOK, map[string]any{
		"subtitles": artifacts,
		"total":     len(artifacts),
	})
}

// GetSubtitle serves one artifact as text. ?download=1 asks the client to
// save it instead of displaying it.
func (h *TranscriptionsHandler) GetSubtitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	language, err := PathString(r, "language")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid language")
		return
	}
	format, err := subtitle.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid format", err.Error())
		return
	}

	content, err := h.jobs.ReadArtifact(r.Context(), id, language, format)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		WriteError(w, http.StatusNotFound, "subtitle not found")
		return
	case errors.Is(err, jobs.ErrInvalidArgument):
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	case err != nil:
		WriteErrorDetail(w, http.StatusInternalServerError, "failed to read subtitle", err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	if download, _ := QueryBool(r, "download"); download {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", id+"."+language+format.Ext()))
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, content)
}

// DeleteSubtitles removes both formats for one language.
func (h *TranscriptionsHandler) DeleteSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	language, err := PathString(r, "language")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid language")
		return
	}
	if err := jobs.ValidateIdentifier("language", language); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid language", err.Error())
		return
	}
	if !h.jobs.DeleteArtifacts(r.Context(), id, language) {
		WriteError(w, http.StatusInternalServerError, "failed to delete subtitles")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListModels returns the model catalog with readiness and the engine state.
func (h *TranscriptionsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	caps := h.engine.Capabilities()
	WriteJSON(w, http.StatusOK, map[string]any{
		"models":           h.models.Models(),
		"engineAvailable":  caps.Available(),
		"accelerated":      caps.Accelerated,
		"recommendedModel": transcribe.RecommendedModel,
	})
}

// ListLanguages returns the languages accepted by Transcribe.
func (h *TranscriptionsHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"languages": transcribe.Languages(),
	})
}

func (h *TranscriptionsHandler) itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := PathString(r, "id")
	if err == nil {
		err = jobs.ValidateIdentifier("item id", id)
	}
	if err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid item ID", err.Error())
		return "", false
	}
	return id, true
}
