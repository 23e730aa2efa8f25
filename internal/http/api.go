package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"memo-service/internal/domain"
	"memo-service/internal/service"
	"memo-service/internal/session"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	memos    service.MemoService
	sessions *session.Manager
	store    Pinger
	cookie   CookieConfig
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, memos service.MemoService, sessions *session.Manager, store Pinger, cookie CookieConfig, logger *logrus.Logger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "memo_session"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		memos:    memos,
		sessions: sessions,
		store:    store,
		cookie:   cookie,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), requestLogger(h.logger))

	router.GET("/health", h.health)
	router.POST("/signup", h.signup)
	router.POST("/login", h.login)

	authed := router.Group("/", h.requireAuth())
	{
		authed.GET("/logout", h.logout)
		authed.GET("/memos", h.listMemos)
		authed.POST("/memos/create", h.createMemo)
		authed.PUT("/memos/update/:id", h.updateMemo)
		authed.DELETE("/memos/delete/:id", h.deleteMemo)
	}
}

type signupRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type memoRequest struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

type MessageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

type MemoResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.PingContext(c.Request.Context()); err != nil {
		h.abortWithError(c, fmt.Errorf("ping store: %w: %w", domain.ErrStoreUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("%w: malformed request body", domain.ErrValidation))
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "Account created successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("%w: malformed request body", domain.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	// a fresh login replaces whatever session the client was carrying
	if old, err := c.Cookie(h.cookie.Name); err == nil && old != "" {
		if err := h.sessions.Destroy(ctx, old); err != nil {
			h.logger.WithError(err).Warn("destroy previous session")
		}
	}

	sess, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	h.setSessionCookie(c, sess)
	c.Set(userIDKey, user.ID)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged in successfully"})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context(), c.GetString(sessionTokenKey)); err != nil {
		h.abortWithError(c, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *Handler) createMemo(c *gin.Context) {
	var req memoRequest
	if err := c.ShouldBind(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("%w: malformed request body", domain.ErrValidation))
		return
	}

	memo, err := h.memos.Create(c.Request.Context(), currentUserID(c), req.Title, req.Content)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "Memo created", ID: memo.ID})
}

func (h *Handler) listMemos(c *gin.Context) {
	memos, err := h.memos.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	resp := make([]MemoResponse, len(memos))
	for i := range memos {
		resp[i] = memoToResponse(memos[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) updateMemo(c *gin.Context) {
	id, ok := parseMemoID(c)
	if !ok {
		h.abortWithError(c, fmt.Errorf("memo %q: %w", c.Param("id"), domain.ErrNotFound))
		return
	}

	var req memoRequest
	if err := c.ShouldBind(&req); err != nil {
		h.abortWithError(c, fmt.Errorf("%w: malformed request body", domain.ErrValidation))
		return
	}

	if _, err := h.memos.Update(c.Request.Context(), currentUserID(c), id, req.Title, req.Content); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Memo updated"})
}

func (h *Handler) deleteMemo(c *gin.Context) {
	id, ok := parseMemoID(c)
	if !ok {
		h.abortWithError(c, fmt.Errorf("memo %q: %w", c.Param("id"), domain.ErrNotFound))
		return
	}

	if err := h.memos.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Memo deleted"})
}

// parseMemoID treats a malformed id like an unknown one.
func parseMemoID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) setSessionCookie(c *gin.Context, sess session.Session) {
	maxAge := 0
	if !sess.ExpiresAt.IsZero() {
		maxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.Token, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

func memoToResponse(memo domain.Memo) MemoResponse {
	return MemoResponse{
		ID:        memo.ID,
		Title:     memo.Title,
		Content:   memo.Content,
		CreatedAt: memo.CreatedAt.Format(time.RFC3339),
		UpdatedAt: memo.UpdatedAt.Format(time.RFC3339),
	}
}
