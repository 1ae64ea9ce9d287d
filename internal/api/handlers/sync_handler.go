package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
	"github.com/sparkprog/go-crmsync-backend/internal/repository"
	"github.com/sparkprog/go-crmsync-backend/internal/syncer"
)

// ISyncService is the sync engine surface the handlers depend on, so tests
// can swap in a mock.
type ISyncService interface {
	RunSync(ctx context.Context, t model.EntityType, delta bool) (*model.SyncRun, error)
	SyncAll(ctx context.Context, delta bool) ([]*model.SyncRun, error)
	Cancel(t model.EntityType) bool
	RunFuzzyAudit(ctx context.Context, names []model.NamePair, minScore float64) ([]model.AuditResult, error)
}

type SyncHandler struct {
	SyncService ISyncService
	Repo        *repository.PostgresRepo
	Log         zerolog.Logger
}

func NewSyncHandler(s ISyncService, r *repository.PostgresRepo, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		SyncService: s,
		Repo:        r,
		Log:         log.With().Str("component", "sync_handler").Logger(),
	}
}

type triggerSyncRequest struct {
	Delta bool `json:"delta"`
}

// TriggerSync runs one sync for an entity type and waits for the result.
// POST /api/v1/sync/:entityType
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	t := model.EntityType(c.Param("entityType"))
	if !t.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type: " + c.Param("entityType")})
		return
	}

	var req triggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	run, err := h.SyncService.RunSync(c.Request.Context(), t, req.Delta)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress for " + string(t)})
			return
		}
		h.Log.Error().Str("entity_type", string(t)).Err(err).Msg("sync trigger failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// TriggerSyncAll starts a full sync of every entity type in the background
// and returns immediately.
// POST /api/v1/sync-all
func (h *SyncHandler) TriggerSyncAll(c *gin.Context) {
	var req triggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	go func() {
		if _, err := h.SyncService.SyncAll(context.Background(), req.Delta); err != nil {
			h.Log.Error().Err(err).Msg("background sync-all failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Full sync process has been started in the background."})
}

// CancelSync stops new page fetches for an in-flight run. The current page
// finishes before the run finalizes as cancelled.
// POST /api/v1/sync/:entityType/cancel
func (h *SyncHandler) CancelSync(c *gin.Context) {
	t := model.EntityType(c.Param("entityType"))
	if !t.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type: " + c.Param("entityType")})
		return
	}
	if !h.SyncService.Cancel(t) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sync in progress for " + string(t)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested for " + string(t)})
}

// GetSyncHistory returns recent sync runs, newest first.
// GET /api/v1/sync/history?entity_type=volunteer&limit=20
func (h *SyncHandler) GetSyncHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	entityType := c.Query("entity_type")
	if entityType != "" && !model.EntityType(entityType).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type: " + entityType})
		return
	}

	history, err := h.Repo.GetSyncHistory(c.Request.Context(), entityType, limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("sync history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sync history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetWatermarks lists the stored delta watermarks per entity type.
// GET /api/v1/sync/watermarks
func (h *SyncHandler) GetWatermarks(c *gin.Context) {
	watermarks, err := h.Repo.ListWatermarks(c.Request.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("watermark query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get watermarks"})
		return
	}
	c.JSON(http.StatusOK, watermarks)
}

type fuzzyAuditRequest struct {
	Names    []model.NamePair `json:"names" binding:"required"`
	MinScore float64          `json:"min_score"`
}

// FuzzyAudit matches a submitted name list against local contacts and
// reports every qualifying match per name.
// POST /api/v1/audit/fuzzy
func (h *SyncHandler) FuzzyAudit(c *gin.Context) {
	var req fuzzyAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	results, err := h.SyncService.RunFuzzyAudit(c.Request.Context(), req.Names, req.MinScore)
	if err != nil {
		h.Log.Error().Err(err).Msg("fuzzy audit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}
