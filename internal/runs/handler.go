package runs

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/server/middleware"
	"code-analyzer/internal/shared/server/respond"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handler wires HTTP handlers to the runs service.
type Handler struct {
	Svc                *Service
	DefaultDestination string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, defaultDestination string) *Handler {
	return &Handler{Svc: svc, DefaultDestination: strings.TrimSpace(defaultDestination)}
}

// RegisterRoutes attaches analysis routes to the router group. Extra
// handlers run before /analyze only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, analyzeMiddleware ...gin.HandlerFunc) {
	rg.POST("/analyze", append(analyzeMiddleware, h.analyze)...)
	rg.GET("/analyses", h.listRuns)
	rg.GET("/analyses/:id", h.getRun)
}

type analyzeBody struct {
	S3Bucket          string `json:"s3_bucket"`
	S3Key             string `json:"s3_key"`
	DestinationBucket string `json:"destination_bucket"`
	ModelID           string `json:"model_id"`
	PromptAdditions   string `json:"prompt_additions"`
	Prompt            string `json:"prompt"`
}

func (h *Handler) analyze(c *gin.Context) {
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body", nil)
		return
	}
	ctx := pipeline.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	if strings.TrimSpace(body.S3Key) == "" && strings.TrimSpace(body.S3Bucket) == "" {
		if strings.TrimSpace(body.Prompt) == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "either prompt or s3_bucket and s3_key are required", nil)
			return
		}
		res, err := h.Svc.Ask(ctx, body.Prompt, strings.TrimSpace(body.ModelID))
		if err != nil {
			kind, ok := errkind.KindOf(err)
			if !ok {
				kind = errkind.Internal
			}
			respond.Error(c, StatusForKind(kind), string(kind), errkind.Sanitize(err), nil)
			return
		}
		middleware.TagModel(c, res.ModelID)
		respond.JSON(c, http.StatusOK, res)
		return
	}

	destination := body.DestinationBucket
	if strings.TrimSpace(destination) == "" {
		destination = h.DefaultDestination
	}
	req, err := pipeline.NewAnalysisRequest(body.S3Bucket, body.S3Key, destination, body.ModelID, body.PromptAdditions)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", errkind.Sanitize(err), nil)
		return
	}

	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		run, err := h.Svc.Enqueue(ctx, req)
		if err != nil {
			switch {
			case errors.Is(err, ErrQueueDisabled):
				respond.Error(c, http.StatusServiceUnavailable, "queue_disabled", "asynchronous analysis is not enabled", nil)
			case errkind.Is(err, errkind.Unavailable):
				respond.Error(c, http.StatusServiceUnavailable, string(errkind.Unavailable), "failed to enqueue analysis", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue analysis", nil)
			}
			return
		}
		middleware.TagRun(c, run.ID, "->"+StatusQueued)
		respond.Accepted(c, "/api/v1/analyses/"+run.ID, gin.H{
			"run_id":     run.ID,
			"request_id": run.RequestID,
			"status":     run.Status,
		})
		return
	}

	res, err := h.Svc.Analyze(ctx, req)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record analysis", nil)
		return
	}
	middleware.TagRun(c, res.RunID, "")
	middleware.TagModel(c, res.ModelID)
	if res.Succeeded() {
		respond.JSON(c, http.StatusOK, res)
		return
	}
	respond.JSON(c, StatusForKind(res.ErrorKind), res)
}

func (h *Handler) getRun(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "run id is required", nil)
		return
	}

	run, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, run)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := defaultListLimit
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{
		"analyses": runs,
		"limit":    limit,
		"offset":   offset,
	})
}

// StatusForKind maps an error kind to the HTTP status reported to callers.
func StatusForKind(kind errkind.Kind) int {
	switch kind {
	case errkind.InvalidRequest:
		return http.StatusBadRequest
	case errkind.AccessDenied:
		return http.StatusForbidden
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case errkind.UnsupportedType:
		return http.StatusUnsupportedMediaType
	case errkind.InvalidMetadata:
		return http.StatusUnprocessableEntity
	case errkind.Throttled:
		return http.StatusTooManyRequests
	case errkind.CircuitOpen, errkind.Unavailable:
		return http.StatusServiceUnavailable
	case errkind.Timeout:
		return http.StatusGatewayTimeout
	case errkind.ModelInvocationError, errkind.Transient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
