package handlers

import (
	"context"
	"errors"
	"net/http"

	"legalrag-backend/models"
	"legalrag-backend/pipeline"
	"legalrag-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Runner executes a query through the full pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// UserChecker validates audit attribution before a request runs.
type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// QueryHandler handles HTTP requests for the three query variants
type QueryHandler struct {
	pipeline Runner
	users    UserChecker // nil disables attribution checks
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(p Runner, users UserChecker) *QueryHandler {
	return &QueryHandler{pipeline: p, users: users}
}

// ResearchRequest represents the request body for a research query
type ResearchRequest struct {
	Query       string   `json:"query" binding:"required"`
	TopK        *int     `json:"top_k"`
	Temperature *float64 `json:"temperature"`
	UserID      *string  `json:"user_id"`
	SourceFile  *string  `json:"source_file"`
	CaseName    *string  `json:"case_name"`
}

// JudgmentRequest represents the request body for a judgment simulation
type JudgmentRequest struct {
	Facts       string   `json:"facts" binding:"required"`
	Mode        string   `json:"mode" binding:"required"`
	TopK        *int     `json:"top_k"`
	Temperature *float64 `json:"temperature"`
	UserID      *string  `json:"user_id"`
	SourceFile  *string  `json:"source_file"`
	CaseName    *string  `json:"case_name"`
}

// SummarizeRequest represents the request body for headnote generation
type SummarizeRequest struct {
	Query       string   `json:"query"`
	CaseText    string   `json:"case_text"`
	TopK        *int     `json:"top_k"`
	Temperature *float64 `json:"temperature"`
	UserID      *string  `json:"user_id"`
}

// Research handles POST /api/research
func (h *QueryHandler) Research(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	userID, ok := h.resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	h.run(c, pipeline.Request{
		Variant:     models.TaskResearch,
		Query:       req.Query,
		UserID:      userID,
		Filters:     repository.SearchFilters{SourceFile: req.SourceFile, CaseName: req.CaseName},
		TopK:        req.TopK,
		Temperature: req.Temperature,
	})
}

// Judgment handles POST /api/judgment
func (h *QueryHandler) Judgment(c *gin.Context) {
	var req JudgmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	userID, ok := h.resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	h.run(c, pipeline.Request{
		Variant:     models.TaskJudgment,
		Query:       req.Facts,
		Mode:        models.JudgmentMode(req.Mode),
		UserID:      userID,
		Filters:     repository.SearchFilters{SourceFile: req.SourceFile, CaseName: req.CaseName},
		TopK:        req.TopK,
		Temperature: req.Temperature,
	})
}

// Summarize handles POST /api/summarize
func (h *QueryHandler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	userID, ok := h.resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	h.run(c, pipeline.Request{
		Variant:     models.TaskSummarize,
		Query:       req.Query,
		CaseText:    req.CaseText,
		UserID:      userID,
		TopK:        req.TopK,
		Temperature: req.Temperature,
	})
}

func (h *QueryHandler) run(c *gin.Context, req pipeline.Request) {
	result, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidInput):
			badRequest(c, "INVALID_REQUEST", err.Error())
		case errors.Is(err, pipeline.ErrNoGrounding):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NO_GROUNDING",
					"message": "No relevant passages found for this query",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "QUERY_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"answer":       result.Answer,
			"disclaimer":   result.Disclaimer,
			"sources":      models.Summarize(result.Retrieved),
			"verification": result.Verification,
			"retried":      result.Retried,
			"degraded":     result.Degraded,
			"audit_ref":    result.AuditRef,
		},
	})
}

func (h *QueryHandler) resolveUserID(c *gin.Context, raw *string) (*uuid.UUID, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		badRequest(c, "INVALID_USER_ID", "Invalid user_id format")
		return nil, false
	}
	if h.users != nil {
		exists, err := h.users.Exists(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_LOOKUP_FAILED",
					"message": err.Error(),
				},
			})
			return nil, false
		}
		if !exists {
			badRequest(c, "INVALID_USER_ID", "Unknown user_id")
			return nil, false
		}
	}
	return &id, true
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
