// Package httpapi fronts the core pipeline with the optional HTTP adapter: process-songs,
// create-playlist, and the OAuth status/URL/callback endpoints. It is a thin wrapper — all
// scoring and retry logic lives in internal/catalog, internal/match, and internal/pipeline.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"playlistimport/internal/catalog"
	"playlistimport/internal/core"
	"playlistimport/internal/match"
	"playlistimport/internal/pipeline"
	"playlistimport/pkg/normalize"
	"playlistimport/pkg/songtext"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP adapter described in the external-interfaces contract. projectClient
// authenticates with project-level credentials and serves process-songs; userClient is
// populated once OAuth completes and serves create-playlist.
type Server struct {
	cfg           core.Config
	logger        *zap.Logger
	normalizer    *normalize.Normalizer
	matcher       *match.Matcher
	projectClient *catalog.Client
	userClient    *catalog.Client
	httpServer    *http.Server
	metrics       *metrics
}

type metrics struct {
	songsProcessed prometheus.Counter
	songsMatched   prometheus.Counter
	playlistSize   prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		songsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playlistimport_songs_processed_total",
			Help: "Total number of input song lines processed.",
		}),
		songsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playlistimport_songs_matched_total",
			Help: "Total number of songs that produced a MATCHED or LOW_CONFIDENCE_MATCH result.",
		}),
		playlistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playlistimport_playlist_size",
			Help: "Number of tracks added to the most recently created playlist.",
		}),
	}
	prometheus.MustRegister(m.songsProcessed, m.songsMatched, m.playlistSize)
	return m
}

// NewServer constructs the HTTP adapter. projectClient must already be authenticated (the
// client-credentials grant needs no user interaction); userClient may be nil until an operator
// completes the OAuth flow against /api/auth-url and /callback.
func NewServer(cfg core.Config, normalizer *normalize.Normalizer, matcher *match.Matcher, projectClient, userClient *catalog.Client, logger *zap.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		normalizer:    normalizer,
		matcher:       matcher,
		projectClient: projectClient,
		userClient:    userClient,
		metrics:       newMetrics(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/process-songs", s.handleProcessSongs)
	mux.HandleFunc("/api/create-playlist", s.handleCreatePlaylist)
	mux.HandleFunc("/api/auth-status", s.handleAuthStatus)
	mux.HandleFunc("/api/auth-url", s.handleAuthURL)
	mux.HandleFunc("/callback", s.handleCallback)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start runs the HTTP server until ctx is canceled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: server failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok", "service": "playlistimport"})
}

type processSongsRequest struct {
	SongList    []string `json:"song_list"`
	Concurrency int      `json:"concurrency"`
	BatchSize   int      `json:"batch_size"`
}

type processSongsResponse struct {
	TotalSongs     int                `json:"total_songs"`
	MatchedSongs   []core.MatchResult `json:"matched_songs"`
	UnmatchedSongs []core.MatchResult `json:"unmatched_songs"`
}

func (s *Server) handleProcessSongs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req processSongsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	songs, parseErrs, err := songtext.New().ParseLines(strings.NewReader(strings.Join(req.SongList, "\n")))
	if err != nil {
		http.Error(w, "failed to parse song list", http.StatusBadRequest)
		return
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.Concurrency.ConcurrencyLimit
	}

	coordinator := pipeline.New(
		s.projectClient,
		s.matcher,
		concurrency,
		req.BatchSize*2,
		time.Duration(s.cfg.Catalog.TotalTimeoutPerCallSeconds)*time.Second,
		s.logger,
	)

	songResults := coordinator.Run(r.Context(), songs)
	report := pipeline.Aggregate(songResults, parseErrs)

	s.metrics.songsProcessed.Add(float64(report.Summary.TotalInputLines))
	s.metrics.songsMatched.Add(float64(report.Summary.MatchedCount + report.Summary.LowConfidenceCount))

	resp := processSongsResponse{TotalSongs: report.Summary.TotalInputLines}
	for _, result := range report.Results {
		if result.Status == core.StatusMatched || result.Status == core.StatusLowConfidenceMatch {
			resp.MatchedSongs = append(resp.MatchedSongs, result)
		} else {
			resp.UnmatchedSongs = append(resp.UnmatchedSongs, result)
		}
	}

	writeJSON(w, s.logger, http.StatusOK, resp)
}

type createPlaylistRequest struct {
	Name        string   `json:"name"`
	Public      bool     `json:"public"`
	Description string   `json:"description"`
	URIs        []string `json:"uris"`
}

type createPlaylistResponse struct {
	PlaylistID   string `json:"playlist_id"`
	PlaylistURL  string `json:"playlist_url"`
	Name         string `json:"name"`
	AddedTracks  int    `json:"added_tracks"`
	FailedTracks int    `json:"failed_tracks"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.userClient == nil || !s.userClient.IsAuthenticated() {
		http.Error(w, "user authorization required", http.StatusUnauthorized)
		return
	}

	var req createPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, url, err := s.userClient.CreatePlaylist(r.Context(), req.Name, req.Public, req.Description)
	if err != nil {
		s.logger.Error("create playlist failed", zap.Error(err))
		http.Error(w, "failed to create playlist", http.StatusBadGateway)
		return
	}

	added, _, addErr := s.userClient.AddTracks(r.Context(), id, req.URIs)
	failed := len(req.URIs) - added
	if addErr != nil {
		s.logger.Error("add tracks failed", zap.Error(addErr))
	}

	s.metrics.playlistSize.Set(float64(added))

	writeJSON(w, s.logger, http.StatusOK, createPlaylistResponse{
		PlaylistID:   id,
		PlaylistURL:  url,
		Name:         req.Name,
		AddedTracks:  added,
		FailedTracks: failed,
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	authenticated := s.userClient != nil && s.userClient.IsAuthenticated()
	writeJSON(w, s.logger, http.StatusOK, map[string]bool{"authenticated": authenticated})
}

func (s *Server) handleAuthURL(w http.ResponseWriter, _ *http.Request) {
	if s.userClient == nil {
		http.Error(w, "user authentication is not configured", http.StatusServiceUnavailable)
		return
	}
	url, err := s.userClient.AuthURL()
	if err != nil {
		http.Error(w, "failed to build authorization url", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"auth_url": url})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.userClient == nil {
		http.Error(w, "user authentication is not configured", http.StatusServiceUnavailable)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	if err := s.userClient.CompleteAuth(r.Context(), code, state); err != nil {
		s.logger.Warn("oauth callback failed", zap.Error(err))
		http.Error(w, "authorization failed", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body><h1>Authorization successful</h1><p>You can close this window.</p></body></html>"))
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to write JSON response", zap.Error(err))
	}
}

