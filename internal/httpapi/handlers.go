package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/audit"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/auth"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/callflow"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/calls"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/operators"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/pbx"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/rbac"
	"github.com/PewPewSlowMo/SmartCallCenter/internal/reporting"
)

// SwitchClient is the slice of the switch control API exposed over HTTP.
type SwitchClient interface {
	Channels(ctx context.Context) ([]pbx.Channel, error)
	DeviceStates(ctx context.Context) ([]pbx.DeviceState, error)
	Originate(ctx context.Context, req pbx.OriginateRequest) error
	Hangup(ctx context.Context, channelID string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     calls.Store
	Flow      *callflow.Engine
	Directory *operators.Directory
	Switch    SwitchClient
	Reports   *reporting.Service
	Audit     *audit.Service
}

// auditAction records who did what. Best-effort: failures never block the
// request.
func (h Handlers) auditAction(c *gin.Context, log func(ctx context.Context, actorUserID, actorRole, ip string) error) {
	if h.Audit == nil {
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	_ = log(c.Request.Context(), uid, role, c.ClientIP())
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues an access token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.IsKnown(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a known role required"})
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}
	records, err := h.Calls.List(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": records})
}

// ActiveSessions returns the live session snapshot for dashboards.
func (h Handlers) ActiveSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Flow.Snapshot()})
}

// --- Operators ---

func (h Handlers) ListOperators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operators": h.Directory.Snapshot()})
}

// UpsertOperator registers or updates an operator in the live directory.
func (h Handlers) UpsertOperator(c *gin.Context) {
	var op operators.Operator
	if err := c.ShouldBindJSON(&op); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if op.ID == "" || op.Extension == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id and extension required"})
		return
	}
	if op.Status == "" {
		op.Status = operators.StatusOffline
	}
	if op.MaxConcurrentCalls <= 0 {
		op.MaxConcurrentCalls = 1
	}
	h.Directory.Upsert(op)
	h.auditAction(c, func(ctx context.Context, uid, role, ip string) error {
		return h.Audit.LogOperatorChange(ctx, uid, role, ip, op.ID, "operator upserted")
	})
	c.JSON(http.StatusOK, op)
}

type operatorStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) SetOperatorStatus(c *gin.Context) {
	id := c.Param("operator_id")
	var req operatorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	prev, ok := h.Directory.SetStatus(id, operators.OperatorStatus(req.Status))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "operator not found"})
		return
	}
	h.auditAction(c, func(ctx context.Context, uid, role, ip string) error {
		return h.Audit.LogOperatorChange(ctx, uid, role, ip, id, "status -> "+req.Status)
	})
	c.JSON(http.StatusOK, gin.H{"operator_id": id, "status": req.Status, "previous": string(prev)})
}

// --- Switch control ---

func (h Handlers) SwitchChannels(c *gin.Context) {
	channels, err := h.Switch.Channels(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "switch query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h Handlers) SwitchDeviceStates(c *gin.Context) {
	states, err := h.Switch.DeviceStates(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "switch query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_states": states})
}

type originateRequest struct {
	Extension      string `json:"extension"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (h Handlers) Originate(c *gin.Context) {
	var req originateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Extension == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "extension required"})
		return
	}
	err := h.Switch.Originate(c.Request.Context(), pbx.OriginateRequest{
		Extension:      req.Extension,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.auditAction(c, func(ctx context.Context, uid, role, ip string) error {
		return h.Audit.LogControlCommand(ctx, uid, role, ip, "originate", "", req.Extension)
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "originated"})
}

type hangupRequest struct {
	ChannelID string `json:"channel_id"`
}

func (h Handlers) Hangup(c *gin.Context) {
	var req hangupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChannelID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "channel_id required"})
		return
	}
	if err := h.Switch.Hangup(c.Request.Context(), req.ChannelID); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.auditAction(c, func(ctx context.Context, uid, role, ip string) error {
		return h.Audit.LogControlCommand(ctx, uid, role, ip, "hangup", req.ChannelID, "")
	})
	c.JSON(http.StatusOK, gin.H{"status": "hangup requested"})
}

// --- Statistics ---

// parseRange reads from/to query params as RFC 3339; a missing range
// defaults to the last 24 hours.
func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.Add(-24 * time.Hour), To: now}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return reporting.TimeRange{}, false
		}
		rng.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return reporting.TimeRange{}, false
		}
		rng.To = t
	}
	return rng, true
}

func (h Handlers) StatsSummary(c *gin.Context) {
	rng, ok := parseRange(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC 3339"})
		return
	}
	sum, err := h.Reports.Summary(c.Request.Context(), reporting.SummaryRequest{
		Range:      rng,
		Queue:      c.Query("queue"),
		OperatorID: c.Query("operator_id"),
	})
	if err == reporting.ErrInvalidRequest {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) StatsByQueue(c *gin.Context) {
	rng, ok := parseRange(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC 3339"})
		return
	}
	out, err := h.Reports.QueueBreakdown(c.Request.Context(), rng)
	if err == reporting.ErrInvalidRequest {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": out})
}
