package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/plutus/webengage-pipeline/internal/config"
	"github.com/plutus/webengage-pipeline/internal/pipeline"
	"github.com/plutus/webengage-pipeline/internal/runstore"
	"github.com/plutus/webengage-pipeline/internal/webengage"
	"github.com/plutus/webengage-pipeline/internal/zoomexport"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	config    *config.Config
	store     runstore.Store
	startedAt time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cfg *config.Config, store runstore.Store) *Handlers {
	return &Handlers{
		config:    cfg,
		store:     store,
		startedAt: time.Now(),
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check

// HealthCheck returns the health status of the API
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"profiles":  len(h.config.Profiles),
	})
}

// HandleListProfiles returns the configured cleaning profiles.
func (h *Handlers) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	type profileInfo struct {
		Name      string        `json:"name"`
		Kind      pipeline.Kind `json:"kind"`
		EventName string        `json:"event_name"`
	}
	profiles := make([]profileInfo, 0, len(h.config.Profiles))
	for _, p := range h.config.Profiles {
		profiles = append(profiles, profileInfo{Name: p.Name, Kind: p.Kind, EventName: p.EventName})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// HandleCreateRun cleans one uploaded Zoom export and records the run.
// The export arrives either as a raw CSV body or as a multipart form with
// a "file" field; the cleaning profile is chosen via ?profile=.
func (h *Handlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	if name == "" {
		respondError(w, http.StatusBadRequest, "profile query parameter is required")
		return
	}
	prof, ok := h.config.Profile(name)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown profile: "+name)
		return
	}

	var reader io.Reader
	source := "upload"
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.ParseMultipartForm(32 << 20) // 32MB max for uploaded exports
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		reader = file
		source = "upload:" + header.Filename
	} else {
		reader = r.Body
	}

	res, runErr := pipeline.RunCSV(reader, prof)
	if runErr != nil {
		run := &runstore.Run{
			ID:        uuid.NewString(),
			Profile:   name,
			Source:    source,
			Status:    runstore.StatusFailed,
			Error:     runErr.Error(),
			CreatedAt: time.Now().UTC(),
		}
		if err := h.store.SaveRun(r.Context(), run, nil); err != nil {
			log.Printf("[api] save failed run: %v", err)
		}
		respondRunFailure(w, run.ID, runErr)
		return
	}

	dataset, err := res.Table.CSV()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode dataset: "+err.Error())
		return
	}
	reportJSON, err := json.Marshal(res.Report)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode report: "+err.Error())
		return
	}
	payloadsJSON, err := json.Marshal(webengage.Build(res))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode payloads: "+err.Error())
		return
	}

	run := &runstore.Run{
		ID:        res.Report.RunID,
		Profile:   name,
		Source:    source,
		Status:    runstore.StatusSucceeded,
		Rows:      len(res.Table.Rows),
		Report:    reportJSON,
		CreatedAt: time.Now().UTC(),
	}
	artifacts := &runstore.Artifacts{Dataset: dataset, Payloads: payloadsJSON}
	if err := h.store.SaveRun(r.Context(), run, artifacts); err != nil {
		log.Printf("[api] save run %s: %v", run.ID, err)
		respondError(w, http.StatusInternalServerError, "save run: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
		"rows":   run.Rows,
		"report": res.Report,
	})
}

// respondRunFailure renders a fatal pipeline error with enough structure
// for the caller to fix the export without reading server logs.
func respondRunFailure(w http.ResponseWriter, runID string, err error) {
	body := map[string]interface{}{
		"run_id": runID,
		"status": runstore.StatusFailed,
		"error":  err.Error(),
	}
	var schema *pipeline.SchemaMismatchError
	var quality *pipeline.DatetimeQualityError
	var missing *zoomexport.SectionMissingError
	switch {
	case errors.As(err, &schema):
		body["gate"] = schema.Gate
		body["missing_columns"] = schema.Missing
		body["unexpected_columns"] = schema.Unexpected
	case errors.As(err, &quality):
		body["gate"] = "D"
		body["parse_ratio"] = quality.Ratio
		body["threshold"] = quality.Threshold
	case errors.As(err, &missing):
		body["missing_section"] = missing.Section
	}
	respondJSON(w, http.StatusUnprocessableEntity, body)
}

// HandleListRuns returns recent runs, newest first.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun returns one run with its full report.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// HandleGetDataset streams the clean CSV of a successful run.
func (h *Handlers) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	dataset, err := h.store.GetDataset(r.Context(), id)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) || errors.Is(err, runstore.ErrNoDataset) {
			respondError(w, http.StatusNotFound, "dataset not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`-clean.csv"`)
	w.Write(dataset)
}

// HandleGetPayloads returns the WebEngage user and event payloads of a run.
func (h *Handlers) HandleGetPayloads(w http.ResponseWriter, r *http.Request) {
	payloads, err := h.store.GetPayloads(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) || errors.Is(err, runstore.ErrNoDataset) {
			respondError(w, http.StatusNotFound, "payloads not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payloads)
}
