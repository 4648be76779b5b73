/*
handlers.go - HTTP API handlers for the contribution engine

PURPOSE:
  Exposes the batch report and its configuration via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to report.Service.

ENDPOINTS:
  Report:
    GET    /api/report                     Run a batch (from/to or month/year)
    GET    /api/report/latest              Latest published snapshot
    GET    /api/report/employees/{id}      One employee from the latest snapshot
    GET    /api/report/departments         Department rollups
    GET    /api/report/fields              Field rollups

  Config:
    GET    /api/config                     Full configuration and version
    GET    /api/config/role-percentages    Role percentages
    PUT    /api/config/role-percentages    Replace role percentages, recompute
    GET    /api/config/settings            Reporting settings
    PUT    /api/config/settings            Replace settings, recompute

  Employees:
    GET    /api/employees                  Active employees

  Admin:
    GET    /api/admin/refresh              Periodic refresh status
    POST   /api/admin/refresh              Reload config and recompute now

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario

QUERY PARAMETERS (GET /api/report):
  from, to             YYYY-MM-DD, inclusive
  month, year          Alternative to from/to: one calendar month
  due_from, due_to     Optional due window, defaults to the period
  salary_year/month    Optional salary month, defaults to the period's last month
  lines=true           Include per-case attribution lines

ERROR HANDLING:
  - 400: Invalid period, percentage, role or settings
  - 404: No report yet, employee not in report
  - 503: Employee list or signed-case list unavailable
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/factory"
	"github.com/warp/contribution-engine/report"
	"github.com/warp/contribution-engine/store/sqlite"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *report.Service
	Records   compensation.RecordSource
	Factory   *factory.ConfigFactory
	Scheduler *report.RefreshScheduler

	// Seeds is the demo store scenarios write to. Nil disables scenarios.
	Seeds *sqlite.Store

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(service *report.Service, records compensation.RecordSource) *Handler {
	return &Handler{
		Service:  service,
		Records:  records,
		Factory:  factory.NewConfigFactory(),
		validate: validator.New(),
	}
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetReport runs a batch for the requested period.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report request", err)
		return
	}

	snap, err := h.Service.Run(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap, r.URL.Query().Get("lines") == "true"))
}

// GetLatestReport returns the latest published snapshot.
func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Latest()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap, r.URL.Query().Get("lines") == "true"))
}

// GetEmployeeReport returns one employee's figures, with attribution lines.
func (h *Handler) GetEmployeeReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid employee id", err)
		return
	}

	er, err := h.Service.Employee(compensation.EmployeeID(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeReportDTO(er, true))
}

// GetDepartments returns the department rollups of the latest snapshot.
func (h *Handler) GetDepartments(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Latest()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepartmentDTOs(snap.Departments))
}

// GetFields returns the field rollups of the latest snapshot.
func (h *Handler) GetFields(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Latest()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFieldDTOs(snap.Fields))
}

// parseReportRequest reads the period, due window and salary month.
func parseReportRequest(r *http.Request) (report.Request, error) {
	q := r.URL.Query()
	var req report.Request

	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		p, err := compensation.ParsePeriod(q.Get("from"), q.Get("to"))
		if err != nil {
			return req, err
		}
		req.Period = p
	case q.Get("month") != "" && q.Get("year") != "":
		year, month, err := parseYearMonth(q.Get("year"), q.Get("month"))
		if err != nil {
			return req, err
		}
		req.Period = compensation.MonthPeriod(year, month)
	default:
		return req, fmt.Errorf("%w: from/to or month/year required", compensation.ErrInvalidPeriod)
	}

	if q.Get("due_from") != "" || q.Get("due_to") != "" {
		due, err := compensation.ParsePeriod(q.Get("due_from"), q.Get("due_to"))
		if err != nil {
			return req, err
		}
		req.DueWindow = due
	}

	req.SalaryYear, req.SalaryMonth = req.Period.To.Year(), req.Period.To.Month()
	if q.Get("salary_year") != "" || q.Get("salary_month") != "" {
		year, month, err := parseYearMonth(q.Get("salary_year"), q.Get("salary_month"))
		if err != nil {
			return req, err
		}
		req.SalaryYear, req.SalaryMonth = year, month
	}
	return req, req.Validate()
}

func parseYearMonth(y, m string) (int, time.Month, error) {
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return 0, 0, fmt.Errorf("%w: year %q", compensation.ErrInvalidPeriod, y)
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %q", compensation.ErrInvalidPeriod, m)
	}
	return year, time.Month(month), nil
}

// =============================================================================
// CONFIG ENDPOINTS
// =============================================================================

// GetConfig returns the full configuration in effect.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, version, err := h.Service.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigDTO{Version: version, Config: h.Factory.ToJSON(cfg)})
}

// GetRolePercentages returns the role percentages in effect.
func (h *Handler) GetRolePercentages(w http.ResponseWriter, r *http.Request) {
	cfg, _, err := h.Service.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.RolesToJSON(cfg.Roles))
}

// PutRolePercentages replaces the role percentages and recomputes the last
// report. A rejected document leaves the previous percentages in effect.
func (h *Handler) PutRolePercentages(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rp, err := h.Factory.ParseRolePercentages(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := h.Service.UpdateRolePercentages(r.Context(), rp)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeConfig(w, r, snap)
}

// GetSettings returns the reporting settings in effect.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, _, err := h.Service.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.SettingsToJSON(cfg.Settings))
}

// PutSettings replaces the reporting settings and recomputes the last report.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err := h.Factory.ParseSettings(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := h.Service.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeConfig(w, r, snap)
}

func (h *Handler) writeConfig(w http.ResponseWriter, r *http.Request, snap *report.Snapshot) {
	cfg, version, err := h.Service.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ConfigDTO{Version: version, Config: h.Factory.ToJSON(cfg)}
	if snap != nil {
		dto := toSnapshotDTO(snap, false)
		resp.Report = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// ListEmployees returns the active employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Records.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	result := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		result[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerRefresh reloads configuration and recomputes the latest report now.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler != nil {
		if err := h.Scheduler.RunNow(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
	} else if _, err := h.Service.Refresh(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := h.Service.Latest()
	if errors.Is(err, compensation.ErrNoSnapshot) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap, false))
}

// GetRefreshStatus returns the periodic refresh status.
func (h *Handler) GetRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, RefreshStatusDTO{})
		return
	}
	lastRun, lastErr := h.Scheduler.Status()
	status := RefreshStatusDTO{
		Enabled:  h.Scheduler.Enabled,
		Interval: h.Scheduler.Interval.String(),
		NextRun:  h.Scheduler.NextRunTime().UTC().Format(time.RFC3339),
	}
	if !lastRun.IsZero() {
		status.LastRun = lastRun.UTC().Format(time.RFC3339)
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// HELPERS
// =============================================================================

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case compensation.IsClientError(err):
		writeErrorCode(w, http.StatusBadRequest, "Invalid input", "invalid_input", err)
	case errors.Is(err, compensation.ErrNoSnapshot):
		writeErrorCode(w, http.StatusNotFound, "No report computed yet", "no_report", err)
	case errors.Is(err, report.ErrEmployeeNotInReport):
		writeErrorCode(w, http.StatusNotFound, "Employee not in report", "not_found", err)
	case compensation.IsFatal(err):
		writeErrorCode(w, http.StatusServiceUnavailable, "Record store unavailable", "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, message, "", err)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
