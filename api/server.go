// Package api provides the dashboard HTTP server for mercadobr.
//
// It serves the dashboard page, JSON views of the collected artifacts,
// SVG charts, the chat endpoints and a WebSocket channel for live chat and
// refresh notifications. The server only reads the data files.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/seenimoa/mercadobr/internal/agent"
	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/internal/report"
	"github.com/seenimoa/mercadobr/internal/store"
	"github.com/seenimoa/mercadobr/pkg/utils"
	"github.com/seenimoa/mercadobr/web"
)

// SessionCookie carries the chat session id.
const SessionCookie = "mercadobr_session"

// Version is reported by the health endpoint; set by the CLI.
var Version = "dev"

// Options configures a Server.
type Options struct {
	Store     *store.Store
	Chat      *agent.Chat // nil or disabled turns the chat panel into a warning
	Dashboard config.DashboardConfig
	CacheTTL  time.Duration
	Logger    *logging.Logger
	Now       func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	router    chi.Router
	cfg       config.DashboardConfig
	store     *store.Store
	loader    *Loader
	chat      *agent.Chat
	page      *template.Template
	wsHub     *WSHub
	log       *logging.Logger
	now       func() time.Time
	baseCtx   context.Context
	cancelCtx context.CancelFunc
}

// NewServer creates a configured dashboard server with all routes and
// middleware.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if opts.Chat == nil {
		opts.Chat = agent.NewChat(agent.ChatConfig{Logger: opts.Logger})
	}
	if opts.Now == nil {
		opts.Now = utils.NowBRT
	}

	page, err := template.New("dashboard").
		Funcs(template.FuncMap{"pathEscape": url.PathEscape}).
		ParseFS(web.Templates(), "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger.With("api")
	s := &Server{
		cfg:       opts.Dashboard,
		store:     opts.Store,
		loader:    NewLoader(opts.Store, opts.CacheTTL, opts.Logger),
		chat:      opts.Chat,
		page:      page,
		wsHub:     NewWSHub(log),
		log:       log,
		now:       opts.Now,
		baseCtx:   ctx,
		cancelCtx: cancel,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Notify tells every connected dashboard that the artifacts changed.
func (s *Server) Notify(event string) {
	s.wsHub.Broadcast(WSMessage{Type: "refresh", Data: event})
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()
	defer s.wsHub.Stop()
	defer s.cancelCtx()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("dashboard listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.CORSOrigins) > 0 {
		origins = s.cfg.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// Dashboard page and its no-script chat form
	r.Get("/", s.handleDashboard)
	r.Post("/chat", s.handleChatForm)
	r.Post("/chat/reset", s.handleChatFormReset)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/dashboard", s.handleDashboardJSON)
			r.Get("/report", s.handleReport)
			r.Get("/equities", s.handleEquities)
			r.Get("/equities/{ticker}", s.handleTicker)
			r.Get("/equities/{ticker}/chart.svg", s.handleTickerChart)
			r.Get("/indicators", s.handleIndicators)
			r.Get("/indicators/{name}", s.handleIndicator)
			r.Get("/indicators/{name}/chart.svg", s.handleIndicatorChart)
			r.Get("/news", s.handleNews)
			r.Get("/chat/history", s.handleChatHistory)
			r.Delete("/chat/history", s.handleChatReset)
		})

		r.With(middleware.Timeout(2*time.Minute)).Post("/chat", s.handleChat)

		r.Get("/ws", s.handleWebSocket)
		r.Get("/ws/chat", s.handleWebSocket)
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Debug()
			if status >= 500 {
				ev = log.Error()
			} else if status >= 400 {
				ev = log.Info()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Question string `json:"pergunta"`
}

// ChatResponse is returned for a successful chat question.
type ChatResponse struct {
	Question string           `json:"pergunta"`
	Answer   string           `json:"resposta"`
	History  []agent.Exchange `json:"historico"`
}

// DashboardView is every panel of the dashboard in one payload.
type DashboardView struct {
	Report      ReportView     `json:"report"`
	Equities    EquitiesView   `json:"equities"`
	Ticker      SeriesView     `json:"ticker"`
	Indicators  IndicatorsView `json:"indicators"`
	Indicator   SeriesView     `json:"indicator"`
	News        NewsView       `json:"news"`
	ChatEnabled bool           `json:"chat_enabled"`
	ChatWarning string         `json:"chat_warning,omitempty"`
	UpdatedAt   string         `json:"updated_at"`
}

type pageData struct {
	DashboardView
	History   []agent.Exchange
	Question  string
	Answer    string
	ChatError string
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	files := map[string]bool{}
	for _, name := range []string{store.FileIndicators, store.FileEquities, store.FileNews, store.FileReport} {
		files[name] = s.store.Exists(name)
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":   "ok",
			"version":  Version,
			"time_brt": utils.FormatBRDateTime(s.now()),
			"chat":     s.chat.Enabled(),
			"files":    files,
		},
	})
}

// dashboard assembles every panel. Empty ticker or indicator selects the
// first available one.
func (s *Server) dashboard(ticker, indicator string) DashboardView {
	v := DashboardView{
		Report:      s.loader.Report(),
		Equities:    s.loader.Equities(),
		Indicators:  s.loader.Indicators(),
		News:        s.loader.News(s.cfg.NewsLimit),
		ChatEnabled: s.chat.Enabled(),
		UpdatedAt:   utils.FormatBRDateTime(s.now()),
	}
	if !v.ChatEnabled {
		v.ChatWarning = agent.ChatDisabledMessage
	}
	if ticker == "" && len(v.Equities.Tickers) > 0 {
		ticker = v.Equities.Tickers[0]
	}
	if ticker != "" && v.Equities.Message == "" {
		v.Ticker = s.loader.Ticker(ticker)
	}
	if indicator == "" && len(v.Indicators.Names) > 0 {
		indicator = v.Indicators.Names[0]
	}
	if indicator != "" && v.Indicators.Message == "" {
		v.Indicator = s.loader.Indicator(indicator)
	}
	return v
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := s.session(w, r)
	s.renderPage(w, pageData{
		DashboardView: s.dashboard(r.URL.Query().Get("ticker"), r.URL.Query().Get("indicador")),
		History:       s.chat.History(id),
	})
}

func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.dashboard(r.URL.Query().Get("ticker"), r.URL.Query().Get("indicador")),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := s.page.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.log.Error().Err(err).Msg("dashboard render failed")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.Report()})
}

func (s *Server) handleEquities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.Equities()})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.Ticker(urlParam(r, "ticker"))})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.Indicators()})
}

func (s *Server) handleIndicator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.Indicator(urlParam(r, "name"))})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.loader.News(s.cfg.NewsLimit)})
}

func (s *Server) handleTickerChart(w http.ResponseWriter, r *http.Request) {
	s.writeChart(w, s.loader.Ticker(urlParam(r, "ticker")), report.StyleLine)
}

func (s *Server) handleIndicatorChart(w http.ResponseWriter, r *http.Request) {
	s.writeChart(w, s.loader.Indicator(urlParam(r, "name")), report.StyleArea)
}

func (s *Server) writeChart(w http.ResponseWriter, v SeriesView, style report.ChartStyle) {
	if !v.Chartable() {
		msg := v.Message
		if msg == "" {
			msg = report.ErrNotEnoughPoints.Error()
		}
		writeError(w, http.StatusNotFound, msg)
		return
	}
	svg, err := report.RenderChart(v.Title, v.Points, style)
	if err != nil {
		s.log.Warn().Err(err).Str("series", v.Name).Msg("chart render failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(svg) //nolint:errcheck
}

// ── Chat ──

// session returns the chat session id of the request, issuing a cookie
// when the client has none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := s.session(w, r)

	answer, err := s.chat.Ask(r.Context(), id, req.Question)
	switch {
	case errors.Is(err, agent.ErrChatDisabled):
		writeError(w, http.StatusServiceUnavailable, agent.ChatDisabledMessage)
		return
	case errors.Is(err, agent.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "pergunta is required")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Erro ao obter resposta do agente: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ChatResponse{Question: req.Question, Answer: answer, History: s.chat.History(id)},
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.chat.History(s.session(w, r))})
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	s.chat.Reset(s.session(w, r))
	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	id := s.session(w, r)
	q := r.FormValue("pergunta")
	data := pageData{Question: q}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	answer, err := s.chat.Ask(ctx, id, q)
	cancel()
	switch {
	case errors.Is(err, agent.ErrChatDisabled), errors.Is(err, agent.ErrEmptyQuestion):
	case err != nil:
		data.ChatError = err.Error()
	default:
		data.Answer = answer
		data.Question = ""
	}

	data.DashboardView = s.dashboard(r.FormValue("ticker"), r.FormValue("indicador"))
	data.History = s.chat.History(id)
	s.renderPage(w, data)
}

func (s *Server) handleChatFormReset(w http.ResponseWriter, r *http.Request) {
	s.chat.Reset(s.session(w, r))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ============================================================
// Helpers
// ============================================================

func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub tracks WebSocket connections and broadcasts refresh events.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	quit       chan struct{}
	stopOnce   sync.Once
	log        *logging.Logger
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub     *WSHub
	session string
	send    chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *logging.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		quit:       make(chan struct{}),
		log:        logging.OrSilent(logger),
	}
}

// Run starts the hub event loop; it returns after Stop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			var slow []*WSClient
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.log.Debug().Str("session", client.session).Msg("dropping slow websocket client")
				h.remove(client)
			}
		}
	}
}

func (h *WSHub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Stop ends Run and closes every client.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
