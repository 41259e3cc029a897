package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"FinBoard/internal/condition"
	"FinBoard/internal/model"
	"FinBoard/internal/resolver"
	"FinBoard/internal/store"
)

// Server exposes the HTTP API: price lookup, watchlist and alert management,
// and trigger history. Write operations require the bearer token.
type Server struct {
	store    store.Store
	resolver *resolver.Resolver
	token    string
}

func New(st store.Store, res *resolver.Resolver, token string) *Server {
	return &Server{store: st, resolver: res, token: token}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.root)
	r.GET("/healthz", s.health)

	api := r.Group("/api")
	api.GET("/auth/echo", s.authEcho)
	api.GET("/price", s.price)
	api.GET("/watchlist", s.listWatchlist)
	api.POST("/watchlist", s.requireToken, s.addWatchlist)
	api.DELETE("/watchlist/:id", s.requireToken, s.deleteWatchlist)
	api.GET("/alerts", s.listAlerts)
	api.POST("/alerts", s.requireToken, s.createAlert)
	api.PATCH("/alerts/:id", s.requireToken, s.patchAlert)
	api.GET("/triggers", s.listTriggers)

	return r
}

func (s *Server) authorized(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) == s.token
}

func (s *Server) requireToken(c *gin.Context) {
	if !s.authorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": "FinBoard",
		"auth": "set API_TOKEN env; send Bearer token for write ops",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) authEcho(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authorized": s.authorized(c)})
}

// price resolves a symbol's current price. Lookup failures are a normal
// result, not a server error: {price: null, ok: false}.
func (s *Server) price(c *gin.Context) {
	sym := strings.TrimSpace(c.Query("symbol"))
	if sym == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	p, err := s.resolver.Resolve(c.Request.Context(), sym)
	if err != nil {
		log.Printf("[WARN] price lookup %s: %v", sym, err)
		c.JSON(http.StatusOK, gin.H{"symbol": sym, "price": nil, "ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": sym,
		"price":  p.Value,
		"ok":     true,
		"source": p.Source,
	})
}

type watchlistRow struct {
	ID         int64  `json:"id"`
	Symbol     string `json:"symbol"`
	SymbolNorm string `json:"symbol_norm"`
	Label      string `json:"label"`
}

func (s *Server) listWatchlist(c *gin.Context) {
	entries, err := s.store.Watchlist()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]watchlistRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, watchlistRow{ID: e.ID, Symbol: e.Symbol, SymbolNorm: e.InstrumentID, Label: e.Label})
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) addWatchlist(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
		Label  string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	e, err := s.store.AddWatchlist(req.Symbol, strings.TrimSpace(req.Label))
	if err != nil {
		if errors.Is(err, store.ErrSymbolRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, watchlistRow{ID: e.ID, Symbol: e.Symbol, SymbolNorm: e.InstrumentID, Label: e.Label})
}

func (s *Server) deleteWatchlist(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.store.DeleteWatchlist(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type alertRow struct {
	ID              int64  `json:"id"`
	Symbol          string `json:"symbol"`
	SymbolNorm      string `json:"symbol_norm"`
	Name            string `json:"name"`
	Cond            string `json:"cond"`
	Enabled         bool   `json:"enabled"`
	Armed           bool   `json:"armed"`
	LastTriggeredTs int64  `json:"last_triggered_ts"`
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, err := s.store.Alerts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]alertRow, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, alertRowFrom(a))
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) createAlert(c *gin.Context) {
	var req struct {
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
		Cond    string `json:"cond"`
		Enabled *bool  `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if _, err := condition.Parse(req.Cond); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	a, err := s.store.CreateAlert(req.Symbol, strings.TrimSpace(req.Name), req.Cond, enabled)
	if err != nil {
		if errors.Is(err, store.ErrSymbolRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alertRowFrom(a))
}

func (s *Server) patchAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Name    *string `json:"name"`
		Cond    *string `json:"cond"`
		Enabled *bool   `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Name == nil && req.Cond == nil && req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields"})
		return
	}
	if req.Cond != nil {
		if _, err := condition.Parse(*req.Cond); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	a, err := s.store.PatchAlert(id, store.AlertPatch{Name: req.Name, Condition: req.Cond, Enabled: req.Enabled})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alertRowFrom(a))
}

type triggerRow struct {
	ID          string  `json:"id"`
	AlertID     int64   `json:"alert_id"`
	Price       float64 `json:"price"`
	TriggeredTs int64   `json:"triggered_ts"`
}

func (s *Server) listTriggers(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.store.RecentTriggers(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rows := make([]triggerRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, triggerRow{
			ID: ev.ID, AlertID: ev.AlertID, Price: ev.PriceAtTrigger, TriggeredTs: ev.EvaluatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, rows)
}

func alertRowFrom(a model.Alert) alertRow {
	row := alertRow{
		ID: a.ID, Symbol: a.Symbol, SymbolNorm: a.InstrumentID,
		Name: a.Name, Cond: a.Condition, Enabled: a.Enabled, Armed: a.Armed,
	}
	if !a.LastTriggeredAt.IsZero() {
		row.LastTriggeredTs = a.LastTriggeredAt.Unix()
	}
	return row
}
