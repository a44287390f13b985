package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/clearview/reportline/pkg/adapters"
	"github.com/clearview/reportline/pkg/export"
	"github.com/clearview/reportline/pkg/models/api"
	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/server/middleware"
	"github.com/clearview/reportline/pkg/services/access"
	"github.com/clearview/reportline/pkg/services/delivery"
	"github.com/clearview/reportline/pkg/services/metrics"
	"github.com/clearview/reportline/pkg/services/report"
	"github.com/clearview/reportline/pkg/services/schedule"
	"github.com/clearview/reportline/pkg/store/artifact"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// exportColumns fixes the CSV shape per metric domain so an empty result
// still produces the header line.
var exportColumns = map[string]struct {
	keyHeader string
	fields    []string
}{
	"sales":       {"date", []string{"amount"}},
	"inventory":   {"productId", []string{"quantity"}},
	"performance": {"service", []string{"avgLatency", "avgErrorRate", "avgThroughput"}},
}

type Handler struct {
	aggregator metrics.Aggregator
	resolver   access.Resolver
	store      *report.ConfigStore
	builder    *report.Builder
	manager    *report.Manager
	scheduler  *schedule.Scheduler
	artifacts  artifact.Store
	dispatcher *delivery.Dispatcher
}

func NewHandler(
	aggregator metrics.Aggregator,
	resolver access.Resolver,
	store *report.ConfigStore,
	builder *report.Builder,
	manager *report.Manager,
	scheduler *schedule.Scheduler,
	artifacts artifact.Store,
	dispatcher *delivery.Dispatcher,
) *Handler {
	return &Handler{
		aggregator: aggregator,
		resolver:   resolver,
		store:      store,
		builder:    builder,
		manager:    manager,
		scheduler:  scheduler,
		artifacts:  artifacts,
		dispatcher: dispatcher,
	}
}

// ExportDomainCSV streams one metric domain for the requested period as
// a CSV attachment.
func (h *Handler) ExportDomainCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	name := chi.URLParam(r, "domain")

	columns, ok := exportColumns[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown metric domain: %s", name))
		return
	}

	actor, ok := middleware.ActorFromContext(ctx)
	if !ok || !h.resolver.CanAccessDomain(actor, name) {
		writeError(w, http.StatusForbidden, fmt.Sprintf("no access to the %s domain", name))
		return
	}

	period := domain.Period{
		Start: r.URL.Query().Get("from"),
		End:   r.URL.Query().Get("to"),
	}

	result, err := h.aggregator.Aggregate(ctx, []domain.DomainQuery{{Domain: name}}, period)
	if err != nil || result.Statuses[name] == domain.DomainMissing {
		logger.Error().Err(err).Str("domain", name).Msg("metric domain unavailable for export")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("the %s domain is unavailable", name))
		return
	}

	res := result.Domains[name]
	fields := res.FieldOrder
	if len(fields) == 0 {
		fields = columns.fields
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", name+".csv"))

	if err := export.WriteCSV(w, columns.keyHeader, fields, res.Rows); err != nil {
		logger.Error().Err(err).Str("domain", name).Msg("failed to stream csv export")
	}
}

// CreateConfig creates a draft with the full section catalog enabled.
func (h *Handler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.ActorFromContext(ctx)

	var body api.CreateReportConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	formats := make([]domain.ExportFormat, 0, len(body.Formats))
	for _, f := range body.Formats {
		formats = append(formats, domain.ExportFormat(f))
	}

	cfg, err := h.builder.NewDraft(actor, report.CreateParams{
		Title:       body.Title,
		Description: body.Description,
		Type:        domain.ReportType(body.Type),
		Period:      domain.Period{Start: body.Period.Start, End: body.Period.End},
		Recipients:  body.Recipients,
		Groups:      body.Groups,
		Formats:     formats,
		TemplateID:  body.TemplateId,
	})
	if err != nil {
		if errors.Is(err, report.ErrAccessDenied) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Add(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.writeConfig(ctx, w, cfg)
}

// ListConfigs returns every stored config, newest first.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs := h.store.List()
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.After(configs[j].CreatedAt)
	})

	response := make([]api.ReportConfig, 0, len(configs))
	for _, cfg := range configs {
		response = append(response, adapters.MapReportConfigDomainToApi(cfg, h.builder.TotalEstimatedPages(cfg)))
	}
	writeJSON(ctx, w, response)
}

// GetConfig returns one config by id.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.store.Get(chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeConfig(ctx, w, cfg)
}

// ToggleSection flips one section on a draft. Required sections silently
// stay enabled.
func (h *Handler) ToggleSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	configID := chi.URLParam(r, "configID")
	sectionID := chi.URLParam(r, "sectionID")

	var body api.ToggleSection
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.store.Update(configID, func(c *domain.ReportConfig) error {
		return h.builder.ToggleSection(c, sectionID, body.Enabled)
	})
	if err != nil {
		if errors.Is(err, report.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeConfig(ctx, w, cfg)
}

// ValidateConfig reports every issue blocking the config from leaving
// draft.
func (h *Handler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.ActorFromContext(ctx)

	cfg, err := h.store.Get(chi.URLParam(r, "configID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	issues := h.builder.Validate(actor, cfg)
	writeJSON(ctx, w, validationResult(issues))
}

// GenerateNow starts a generation job for the config. A second trigger
// while one is running is rejected, not queued.
func (h *Handler) GenerateNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.ActorFromContext(ctx)

	job, err := h.manager.Generate(ctx, actor, chi.URLParam(r, "configID"))
	if err != nil {
		var verr *report.ValidationError
		switch {
		case errors.Is(err, report.ErrConfigNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, report.ErrJobInFlight):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &verr):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			writeJSON(ctx, w, validationResult(verr.Issues))
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(ctx, w, adapters.MapJobDomainToApi(job))
}

// ScheduleConfig validates the config, registers the recurrence rule and
// marks the config scheduled.
func (h *Handler) ScheduleConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.ActorFromContext(ctx)
	configID := chi.URLParam(r, "configID")

	var body api.ScheduleRule
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule := domain.ScheduleRule{
		ConfigID:   configID,
		Frequency:  domain.Frequency(body.Frequency),
		DayOfWeek:  time.Weekday(body.DayOfWeek),
		DayOfMonth: body.DayOfMonth,
		TimeOfDay:  body.TimeOfDay,
	}
	if err := h.scheduler.SetRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.manager.Schedule(actor, configID)
	if err != nil {
		h.scheduler.RemoveRule(configID)

		var verr *report.ValidationError
		switch {
		case errors.Is(err, report.ErrConfigNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &verr):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			writeJSON(ctx, w, validationResult(verr.Issues))
		default:
			writeError(w, http.StatusConflict, err.Error())
		}
		return
	}
	h.writeConfig(ctx, w, cfg)
}

// GetJob returns the latest snapshot of a job, including mid-flight
// progress and per-section outcomes.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job, err := h.manager.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(ctx, w, adapters.MapJobDomainToApi(job))
}

// CancelJob requests cooperative cancellation; the job stops at the next
// stage boundary.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	if err := h.manager.Cancel(jobID); err != nil {
		if _, jobErr := h.manager.Job(jobID); jobErr != nil {
			writeError(w, http.StatusNotFound, jobErr.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(ctx, w, map[string]string{"status": "cancellation requested"})
}

// DownloadArtifact streams one finished artifact in the requested format.
func (h *Handler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	format := domain.ExportFormat(chi.URLParam(r, "format"))

	job, err := h.manager.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	for _, ref := range job.Artifacts {
		if ref.Format != format {
			continue
		}
		data, err := h.artifacts.Get(ctx, ref.Key)
		if err != nil {
			logger.Error().Err(err).Str("key", ref.Key).Msg("stored artifact unavailable")
			writeError(w, http.StatusInternalServerError, "artifact unavailable")
			return
		}

		w.Header().Set("Content-Type", ref.ContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", artifactFilename(ref)))
		if _, err := w.Write(data); err != nil {
			logger.Error().Err(err).Str("key", ref.Key).Msg("failed to stream artifact")
		}
		return
	}

	writeError(w, http.StatusNotFound, fmt.Sprintf("no %s artifact for job %s", format, job.ID))
}

// EmailArtifacts re-sends a completed job's artifacts. Without explicit
// recipients the config's recipient set is used.
func (h *Handler) EmailArtifacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body api.EmailArtifacts
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.manager.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if job.Status != domain.JobCompleted {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job %s is %s, only completed jobs can be delivered", job.ID, job.Status))
		return
	}

	cfg, err := h.store.Get(job.ConfigID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if len(body.Recipients) > 0 || len(body.Groups) > 0 {
		cfg.Recipients = body.Recipients
		cfg.Groups = body.Groups
	}
	recipients := h.builder.Recipients(cfg)
	if len(recipients) == 0 {
		writeError(w, http.StatusBadRequest, "no recipients to deliver to")
		return
	}

	results := h.dispatcher.Dispatch(ctx, cfg, job, recipients)

	response := make([]api.DeliveryOutcome, 0, len(results))
	for _, res := range results {
		response = append(response, api.DeliveryOutcome{
			Recipient: res.Recipient,
			Format:    string(res.Format),
			Delivered: res.Delivered,
			Error:     res.Err,
		})
	}
	writeJSON(ctx, w, response)
}

func (h *Handler) writeConfig(ctx context.Context, w http.ResponseWriter, cfg domain.ReportConfig) {
	writeJSON(ctx, w, adapters.MapReportConfigDomainToApi(cfg, h.builder.TotalEstimatedPages(cfg)))
}

func validationResult(issues []report.ValidationIssue) api.ValidationResult {
	out := api.ValidationResult{Valid: len(issues) == 0}
	for _, i := range issues {
		out.Issues = append(out.Issues, api.ValidationIssue{Field: i.Field, Message: i.Message})
	}
	return out
}

func artifactFilename(ref domain.ArtifactRef) string {
	for i := len(ref.Key) - 1; i >= 0; i-- {
		if ref.Key[i] == '/' {
			return ref.Key[i+1:]
		}
	}
	return ref.Key
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
