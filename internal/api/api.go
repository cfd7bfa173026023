package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/chatgate/internal/auth"
	"github.com/wuwenbin0122/chatgate/internal/chat"
	"github.com/wuwenbin0122/chatgate/internal/health"
	"github.com/wuwenbin0122/chatgate/internal/models"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

type Chatter interface {
	Chat(ctx context.Context, req chat.Request, identity string) (*chat.Response, error)
}

type ConversationLister interface {
	List(ctx context.Context, limit *int, identity string) ([]models.ConversationRecord, error)
}

type Handler struct {
	verifier      *auth.Verifier
	health        HealthChecker
	chat          Chatter
	conversations ConversationLister
	logger        *zap.SugaredLogger
}

func NewHandler(verifier *auth.Verifier, checker HealthChecker, chatter Chatter, lister ConversationLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		verifier:      verifier,
		health:        checker,
		chat:          chatter,
		conversations: lister,
		logger:        logger.Sugar(),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.handleRoot)
	router.GET("/docs", handleDocs)
	router.GET("/health", h.handleHealth)

	protected := router.Group("/")
	protected.Use(auth.BasicAuth(h.verifier))
	protected.POST("/chat", h.handleChat)
	protected.GET("/conversations", h.handleConversations)
}

type chatRequest struct {
	Message      *string `json:"message"`
	SystemPrompt *string `json:"system_prompt"`
}

var (
	errMissingMessage = errors.New("message is required")
	errInvalidLimit   = errors.New("limit must be an integer")
)

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Chatbot API",
		"docs":    "/docs",
		"health":  "/health",
	})
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if req.Message == nil {
		writeError(c, http.StatusBadRequest, errMissingMessage.Error(), errMissingMessage)
		return
	}

	identity, _ := auth.Identity(c)
	result, err := h.chat.Chat(c.Request.Context(), chat.Request{
		Message:      *req.Message,
		SystemPrompt: req.SystemPrompt,
	}, identity)
	if err != nil {
		h.logger.Warnf("chat failed: %v", err)
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleConversations(c *gin.Context) {
	var limit *int
	if raw, ok := c.GetQuery("limit"); ok {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, errInvalidLimit.Error(), err)
			return
		}
		limit = &value
	}

	identity, _ := auth.Identity(c)
	records, err := h.conversations.List(c.Request.Context(), limit, identity)
	if err != nil {
		if !utils.IsCode(err, utils.CodeInvalidArgument) {
			h.logger.Warnf("list conversations failed: %v", err)
		}
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

func writeAppError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if !errors.As(err, &ae) {
		writeError(c, status, http.StatusText(status), nil)
		return
	}

	if ae.Code == utils.CodeUnauthorized {
		auth.Challenge(c)
		return
	}

	// Upstream causes describe the inference server, not this service, so
	// they are safe to return. Anything else stays in the logs.
	var detail error
	if ae.Code == utils.CodeUpstreamFailure || ae.Code == utils.CodeUpstreamTimeout {
		detail = ae.Err
	}
	writeError(c, status, ae.Message, detail)
}

func writeError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}
