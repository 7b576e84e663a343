// Package handler exposes the account and study services over HTTP with gin.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"studynotion/internal/account"
	"studynotion/internal/apperr"
	"studynotion/internal/auth"
	"studynotion/internal/export"
	"studynotion/internal/httpmiddleware"
	"studynotion/internal/logging"
	"studynotion/internal/metrics"
	"studynotion/internal/quiz"
	"studynotion/internal/study"
)

const maxBodyBytes = 1 << 20

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps is everything the router needs. Limiter and Metrics may be nil.
type Deps struct {
	Accounts    *account.Service
	Study       *study.Service
	Auth        *auth.Authenticator
	Limiter     *httpmiddleware.SimpleTokenBucket
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	CORSOrigins []string
	Health      []HealthCheck
}

type Handler struct {
	accounts *account.Service
	study    *study.Service
	health   []HealthCheck
	log      logging.Logger
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	h := &Handler{accounts: d.Accounts, study: d.Study, health: d.Health, log: d.Logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Logger, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics(d.Metrics))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())

	var limited gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limited = d.Limiter.GinMiddleware()
	}

	r.GET("/healthz", h.healthz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.POST("/signup", limited, h.signup)
	r.POST("/login", limited, h.login)
	r.POST("/token/refresh", limited, h.refresh)

	authed := r.Group("", d.Auth.Require())
	authed.POST("/logout", h.logout)
	authed.GET("/profile", h.profile)
	authed.PATCH("/profile", h.updateProfile)

	ai := r.Group("", d.Auth.Optional(), limited)
	ai.POST("/ask-ai", h.askAI)
	ai.POST("/quiz", h.quiz)
	ai.POST("/summarize", h.summarize)

	history := r.Group("/history/:userId", d.Auth.Require())
	history.GET("", h.history)
	history.GET("/stats", h.stats)
	history.GET("/export", h.exportHistory)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// ---------- Health ----------

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, hc := range h.health {
		healthy := hc.Check(c.Request.Context()) == nil
		body[hc.Name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Accounts ----------

func (h *Handler) signup(c *gin.Context) {
	var req account.SignupInput
	if !h.bind(c, &req) {
		return
	}
	out, err := h.accounts.Signup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.bind(c, &req) {
		return
	}
	out, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !h.bind(c, &req) {
		return
	}
	out, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !h.bind(c, &req) {
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	if err := h.accounts.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) profile(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	user, err := h.accounts.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req account.ProfileUpdate
	if !h.bind(c, &req) {
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	user, err := h.accounts.UpdateProfile(c.Request.Context(), claims.Subject, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ---------- Study tools ----------

func (h *Handler) askAI(c *gin.Context) {
	var req struct {
		Question string `json:"question"`
		Prompt   string `json:"prompt"`
		UserID   string `json:"userId"`
	}
	if !h.bind(c, &req) {
		return
	}
	question := req.Question
	if question == "" {
		question = req.Prompt
	}
	answer, err := h.study.Ask(c.Request.Context(), caller(c), question, req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *Handler) quiz(c *gin.Context) {
	var req struct {
		Topic  string          `json:"topic"`
		Num    json.RawMessage `json:"num"`
		UserID string          `json:"userId"`
	}
	if !h.bind(c, &req) {
		return
	}
	res, err := h.study.Quiz(c.Request.Context(), caller(c), req.Topic, parseNum(req.Num), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Parsed {
		c.JSON(http.StatusOK, gin.H{"raw": res.Raw, "error": quiz.RawMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": res.Quiz})
}

func (h *Handler) summarize(c *gin.Context) {
	var req struct {
		Text   string `json:"text"`
		UserID string `json:"userId"`
	}
	if !h.bind(c, &req) {
		return
	}
	summary, err := h.study.Summarize(c.Request.Context(), caller(c), req.Text, req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ---------- History ----------

func (h *Handler) history(c *gin.Context) {
	entries, err := h.study.History(c.Request.Context(), caller(c), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.study.Stats(c.Request.Context(), caller(c), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) exportHistory(c *gin.Context) {
	entries, err := h.study.History(c.Request.Context(), caller(c), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteHistory(&buf, entries); err != nil {
		h.fail(c, apperr.Internal("could not export history", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="studynotion-history.xlsx"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// ---------- helpers ----------

func caller(c *gin.Context) study.Caller {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return study.Caller{}
	}
	return study.Caller{UserID: claims.Subject, Authenticated: true}
}

// bind decodes a JSON body into dst. An empty body leaves dst zero-valued.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, apperr.Validation("request body too large"))
			return false
		}
		h.fail(c, apperr.Validation("invalid JSON body"))
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		h.fail(c, apperr.Validation("invalid JSON body"))
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, apperr.Body(err))
}

// parseNum reads the quiz size leniently: a number or a numeric string,
// anything else means "use the default".
func parseNum(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		switch {
		case f > 1000:
			return 1000
		case f < 0:
			return 0
		}
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}
