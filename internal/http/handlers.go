package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"risparmi/internal/core"
	"risparmi/internal/export"
	applog "risparmi/internal/log"
	"risparmi/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"strategy": s.plans.Strategy().String(),
	}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			checks["history"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["history"] = "ok"
		}
	} else {
		checks["history"] = "not_configured"
	}

	if s.rateLimiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		}
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	data := struct {
		Strategy       string
		Model          string
		DefaultGoal    int
		HistoryEnabled bool
	}{
		Strategy:       s.plans.Strategy().String(),
		Model:          s.model,
		DefaultGoal:    20,
		HistoryEnabled: s.history != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Index template execution failed",
			"error", err, "template", "index.html")
	}
}

// handleCalculate accepts the multipart upload and answers with the
// adjusted plan as a CSV attachment.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}

	form, errResp := ParsePlanForm(w, r, s.maxUploadBytes)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	defer form.Close()

	ctx := r.Context()
	res, err := s.plans.Run(ctx, form.Filename, form.File, form.SavingsGoal, form.Excluded)
	if err != nil {
		logger := applog.NewStructuredLogger(applog.FromContext(ctx))
		fields := applog.NewFields()
		fields[applog.FieldFilename] = form.Filename
		fields[applog.FieldSavingsGoal] = form.SavingsGoal
		fields[applog.FieldExcluded] = form.Excluded
		fields[applog.FieldErrorType] = services.ErrorType(err)
		logger.LogError(ctx, "Savings plan failed", err, applog.OpAdjust, fields)

		if errors.Is(err, core.ErrInvalidInput) {
			BadRequestError(MsgInvalidInput).Write(w)
			return
		}
		InternalServerError(err.Error()).Write(w)
		return
	}

	NewResponse().
		Header("X-Plan-ID", res.Plan.ID).
		Attachment(export.Filename, "text/csv", res.CSV).
		Write(w)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		NotFoundError("plan history disabled").Write(w)
		return
	}

	plans, err := s.history.List(r.Context(), ParseLimit(r.URL.Query()))
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List plans failed",
			"error", err,
			applog.FieldOperation, applog.OpList,
			applog.FieldErrorType, applog.ErrorTypeDatabase)
		InternalServerError(err.Error()).Write(w)
		return
	}

	out := make([]planSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, summarize(p))
	}
	NewResponse().JSON(map[string]any{"plans": out}).Write(w)
}

func (s *Server) handlePlanCSV(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		NotFoundError("plan history disabled").Write(w)
		return
	}

	id := r.PathValue("id")
	p, err := s.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrPlanNotFound) {
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Plan not found",
				applog.FieldPlanID, id,
				applog.FieldOperation, applog.OpRead,
				applog.FieldErrorType, applog.ErrorTypeNotFound)
			NotFoundError(err.Error()).Write(w)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Get plan failed",
			"error", err,
			applog.FieldPlanID, id,
			applog.FieldOperation, applog.OpRead,
			applog.FieldErrorType, applog.ErrorTypeDatabase)
		InternalServerError(err.Error()).Write(w)
		return
	}

	csv, err := export.Emit(p.Adjusted)
	if err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}
	NewResponse().
		Header("X-Plan-ID", p.ID).
		Attachment(export.Filename, "text/csv", csv).
		Write(w)
}
