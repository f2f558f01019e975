package handler

import (
	"context"
	"net/http"
	"time"

	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/service"
	"lead_cadence_backend/internal/qualification/transport"
	"lead_cadence_backend/platform/httpkit"
	"lead_cadence_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead ID"
	msgFutureAttempt    = "occurredAt cannot be in the future"
)

// Service is the part of the qualification service the handler calls.
type Service interface {
	SubmitQualification(ctx context.Context, organizationID, leadID uuid.UUID, answers domain.Answers) (domain.Record, error)
	GetActiveQualification(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, error)
	ListQualificationHistory(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.Record, error)
	RescoreQualification(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Record, bool, error)
	OverrideClassification(ctx context.Context, organizationID, recordID uuid.UUID, tier domain.Tier, reason string, actorID uuid.UUID, now time.Time) (domain.Record, error)
	ClearOverride(ctx context.Context, organizationID, recordID uuid.UUID, actorID uuid.UUID, now time.Time) (domain.Record, error)
	CheckEligibility(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time) (service.EligibilityResult, error)
	RecordOutreachAttempt(ctx context.Context, organizationID, leadID uuid.UUID, now time.Time, outcome domain.Outcome) (domain.OutreachAttempt, error)
	ListOutreachAttempts(ctx context.Context, organizationID, leadID uuid.UUID, limit int) ([]domain.OutreachAttempt, error)
	GetStrategy(ctx context.Context, category domain.Tier) (domain.CadenceStrategy, error)
	ListStrategies(ctx context.Context) ([]domain.CadenceStrategy, error)
	UpdateStrategy(ctx context.Context, category domain.Tier, patch domain.StrategyPatch, actorID *uuid.UUID) (domain.CadenceStrategy, error)
}

var _ Service = (*service.Service)(nil)

// Handler serves the qualification and outreach cadence endpoints.
type Handler struct {
	svc Service
	val *validator.Validator
	now func() time.Time
}

// New creates a qualification handler.
func New(svc Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the request clock. Intended for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// RegisterRoutes mounts lead-scoped routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:leadId/qualification", h.Submit)
	rg.GET("/:leadId/qualification", h.GetActive)
	rg.GET("/:leadId/qualification/history", h.ListHistory)
	rg.POST("/:leadId/qualification/rescore", httpkit.RequireRole("admin"), h.Rescore)
	rg.PUT("/:leadId/qualification/override", httpkit.RequireRole("admin"), h.Override)
	rg.DELETE("/:leadId/qualification/override", httpkit.RequireRole("admin"), h.ClearOverride)
	rg.GET("/:leadId/outreach/eligibility", h.Eligibility)
	rg.POST("/:leadId/outreach/attempts", h.RecordAttempt)
	rg.GET("/:leadId/outreach/attempts", h.ListAttempts)
}

// RegisterAdminRoutes mounts strategy administration on rg.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListStrategies)
	rg.GET("/:category", h.GetStrategy)
	rg.PATCH("/:category", h.UpdateStrategy)
}

func (h *Handler) Submit(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.SubmitQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	rec, err := h.svc.SubmitQualification(c.Request.Context(), tenantID, leadID, req.Answers)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToQualificationResponse(rec))
}

func (h *Handler) GetActive(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetActiveQualification(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQualificationResponse(rec))
}

func (h *Handler) ListHistory(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}
	limit, ok := h.bindLimit(c)
	if !ok {
		return
	}

	records, err := h.svc.ListQualificationHistory(c.Request.Context(), tenantID, leadID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": transport.ToQualificationResponses(records)})
}

func (h *Handler) Rescore(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	rec, changed, err := h.svc.RescoreQualification(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RescoreResponse{Changed: changed, Qualification: transport.ToQualificationResponse(rec)})
}

func (h *Handler) Override(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.OverrideClassificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	ctx := c.Request.Context()
	active, err := h.svc.GetActiveQualification(ctx, tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	actorID := httpkit.GetIdentity(c).UserID()
	rec, err := h.svc.OverrideClassification(ctx, tenantID, active.ID, domain.Tier(req.Classification), req.Reason, actorID, h.now())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQualificationResponse(rec))
}

func (h *Handler) ClearOverride(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	active, err := h.svc.GetActiveQualification(ctx, tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	rec, err := h.svc.ClearOverride(ctx, tenantID, active.ID, httpkit.GetIdentity(c).UserID(), h.now())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQualificationResponse(rec))
}

func (h *Handler) Eligibility(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	now := h.now()
	result, err := h.svc.CheckEligibility(c.Request.Context(), tenantID, leadID, now)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToEligibilityResponse(result.Decision, result.Category, now))
}

func (h *Handler) RecordAttempt(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	var req transport.RecordAttemptRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	outcome, err := domain.ParseOutcome(req.Outcome)
	if httpkit.HandleError(c, err) {
		return
	}

	now := h.now()
	occurredAt := now
	if req.OccurredAt != nil {
		if req.OccurredAt.After(now) {
			httpkit.Error(c, http.StatusBadRequest, msgFutureAttempt, nil)
			return
		}
		occurredAt = req.OccurredAt.UTC()
	}

	attempt, err := h.svc.RecordOutreachAttempt(c.Request.Context(), tenantID, leadID, occurredAt, outcome)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToAttemptResponse(attempt))
}

func (h *Handler) ListAttempts(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}
	limit, ok := h.bindLimit(c)
	if !ok {
		return
	}

	attempts, err := h.svc.ListOutreachAttempts(c.Request.Context(), tenantID, leadID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": transport.ToAttemptResponses(attempts)})
}

func (h *Handler) ListStrategies(c *gin.Context) {
	strategies, err := h.svc.ListStrategies(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToStrategyResponses(strategies)})
}

func (h *Handler) GetStrategy(c *gin.Context) {
	strategy, err := h.svc.GetStrategy(c.Request.Context(), domain.Tier(c.Param("category")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStrategyResponse(strategy))
}

func (h *Handler) UpdateStrategy(c *gin.Context) {
	var req transport.UpdateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	actorID := httpkit.GetIdentity(c).UserID()
	strategy, err := h.svc.UpdateStrategy(c.Request.Context(), domain.Tier(c.Param("category")), req.Patch(), &actorID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToStrategyResponse(strategy))
}

func (h *Handler) leadScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	_, tenantID, ok := httpkit.MustGetTenantID(c)
	if !ok {
		return uuid.UUID{}, uuid.UUID{}, false
	}
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, uuid.UUID{}, false
	}
	return tenantID, leadID, true
}

func (h *Handler) bindLimit(c *gin.Context) (int, bool) {
	var query transport.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return 0, false
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return 0, false
	}
	return query.Limit, true
}
