package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rpattn/custimport/internal/auth"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/mapping"
	"github.com/rpattn/custimport/internal/repository"
	schemavalidator "github.com/rpattn/custimport/internal/schema/validator"
	"github.com/rpattn/custimport/internal/session"
	"github.com/rpattn/custimport/internal/spreadsheet"
)

// TenantHeader carries the tenant id when no authenticated scope is present.
const TenantHeader = "X-Tenant-ID"

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

// Handler exposes the import workflow over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHTTPHandler wraps the service with the import routes.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts the import routes on r.
func (h *Handler) Register(r *mux.Router) {
	router := r.PathPrefix("/import").Subrouter()
	router.HandleFunc("/preview", h.Preview).Methods(http.MethodPost)
	router.HandleFunc("/mapping", h.ConfirmMapping).Methods(http.MethodPost)
	router.HandleFunc("/execute", h.Execute).Methods(http.MethodPost)
	router.HandleFunc("/cancel", h.Cancel).Methods(http.MethodPost)
	router.HandleFunc("/batches/{id}", h.Batch).Methods(http.MethodGet)
}

type mappingDTO struct {
	SessionID string            `json:"sessionId" validate:"required,uuid"`
	Mapping   map[string]string `json:"mapping" validate:"required,min=1"`
}

type executeDTO struct {
	SessionID         string            `json:"sessionId" validate:"required,uuid"`
	CategoryOverrides map[string]string `json:"categoryOverrides" validate:"omitempty,dive,keys,required,endkeys,required"`
	Geocode           bool              `json:"geocode"`
	ConfirmMapping    bool              `json:"confirmMapping"`
	Mapping           map[string]string `json:"mapping"`
	DuplicateStrategy string            `json:"duplicateStrategy" validate:"omitempty,oneof=update skip"`
}

type cancelDTO struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	maxBytes := h.service.opts.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", spreadsheet.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "FILE_REQUIRED", fmt.Sprintf("file required: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "FILE_UNREADABLE", fmt.Sprintf("failed to read file: %v", err))
		return
	}

	req := PreviewRequest{
		TenantID: tenantID,
		FileName: header.Filename,
		Payload:  data,
		Sheet:    strings.TrimSpace(r.FormValue("sheet")),
	}
	if raw := strings.TrimSpace(r.FormValue("headerRow")); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", fmt.Sprintf("headerRow %q must be a non-negative integer", raw))
			return
		}
		req.HeaderRow = &idx
	}

	result, err := h.service.Preview(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ConfirmMapping(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var dto mappingDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := h.service.ConfirmMapping(r.Context(), ConfirmMappingRequest{
		TenantID:  tenantID,
		SessionID: uuid.MustParse(dto.SessionID),
		Mapping:   toFields(dto.Mapping),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var dto executeDTO
	if !h.decode(w, r, &dto) {
		return
	}

	result, err := h.service.Execute(r.Context(), ExecuteRequest{
		TenantID:          tenantID,
		SessionID:         uuid.MustParse(dto.SessionID),
		CategoryOverrides: dto.CategoryOverrides,
		Geocode:           dto.Geocode,
		ConfirmMapping:    dto.ConfirmMapping,
		Mapping:           toFields(dto.Mapping),
		DuplicateStrategy: DuplicateStrategy(dto.DuplicateStrategy),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var dto cancelDTO
	if !h.decode(w, r, &dto) {
		return
	}
	if err := h.service.Cancel(r.Context(), tenantID, uuid.MustParse(dto.SessionID)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	batchID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid batch id: %v", err))
		return
	}
	batch, err := h.service.Batch(r.Context(), tenantID, batchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if id, ok := auth.TenantIDFromContext(r.Context()); ok {
		return id, true
	}
	raw := strings.TrimSpace(r.Header.Get(TenantHeader))
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "TENANT_REQUIRED", TenantHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TENANT", fmt.Sprintf("invalid tenant id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dto any) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", fmt.Sprintf("invalid json: %v", err))
		return false
	}
	if err := h.validate.Struct(dto); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func toFields(in map[string]string) map[string]domain.Field {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]domain.Field, len(in))
	for header, target := range in {
		out[header] = domain.Field(strings.TrimSpace(target))
	}
	return out
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, spreadsheet.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	case errors.Is(err, spreadsheet.ErrUnreadableFile),
		errors.Is(err, spreadsheet.ErrEmptyWorkbook),
		errors.Is(err, spreadsheet.ErrEmptySheet),
		errors.Is(err, spreadsheet.ErrSheetNotFound),
		errors.Is(err, spreadsheet.ErrHeaderRowOutOfRange):
		return http.StatusBadRequest, "FILE_INVALID"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusGone, "SESSION_EXPIRED"
	case errors.Is(err, session.ErrSessionForbidden):
		return http.StatusForbidden, "SESSION_FORBIDDEN"
	case errors.Is(err, auth.ErrTenantRequired):
		return http.StatusBadRequest, "TENANT_REQUIRED"
	case errors.Is(err, auth.ErrTenantMismatch):
		return http.StatusForbidden, "TENANT_FORBIDDEN"
	case errors.Is(err, domain.ErrRemappingRequired):
		return http.StatusConflict, "REMAPPING_REQUIRED"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, mapping.ErrUnknownColumn),
		errors.Is(err, schemavalidator.ErrUnknownTarget),
		errors.Is(err, schemavalidator.ErrDuplicateTarget):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, ErrCommitAborted):
		return http.StatusInternalServerError, "COMMIT_ABORTED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
