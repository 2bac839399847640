// Package service provides the long-running HTTP daemon that ingests
// conversation turns and serves cached per-device statistics.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumalab/kaiwastats/internal/analyzer"
	"github.com/kumalab/kaiwastats/internal/model"
	"github.com/kumalab/kaiwastats/internal/statscache"
	"github.com/kumalab/kaiwastats/internal/store"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr          string
	SweepInterval time.Duration
	EventsBuffer  int
}

// Registry is the device and turn storage the service ingests into.
type Registry interface {
	UpsertDevice(mac, name, location string, now time.Time) (model.DeviceInfo, error)
	Devices() ([]model.DeviceInfo, error)
	AppendTurn(turn model.Turn) (model.Turn, error)
}

// Updater triggers stats recomputation.
type Updater interface {
	NotifyTurnAdded(deviceID string)
	ForceUpdate(ctx context.Context, deviceID string) (model.DeviceStats, error)
	RunPeriodicSweep(ctx context.Context) error
}

// Event is emitted whenever a device's stats bundle is replaced.
type Event struct {
	ID        int64             `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Stats     model.DeviceStats `json:"stats"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt        time.Time `json:"started_at"`
	Addr             string    `json:"addr"`
	SweepIntervalSec int       `json:"sweep_interval_sec"`
	SweepCount       int64     `json:"sweep_count"`
	LastSweepAt      time.Time `json:"last_sweep_at,omitzero"`
	LastError        string    `json:"last_error,omitempty"`
	Devices          int       `json:"devices"`
	CachedBundles    int       `json:"cached_bundles"`
	EventCount       int       `json:"event_count"`
	SubscriberCount  int       `json:"subscriber_count"`
}

// turnRequest is the POST /v1/turns body.
type turnRequest struct {
	MACAddress  string    `json:"mac_address"`
	DeviceName  string    `json:"device_name"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Location    string    `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg      Config
	registry Registry
	cache    *statscache.Cache
	updater  Updater
	log      zerolog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastSweepAt time.Time
	sweepCount  int64
	lastError   string
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, registry Registry, cache *statscache.Cache, updater Updater, logger zerolog.Logger) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8099"
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 256
	}

	return &Service{
		cfg:       cfg,
		registry:  registry,
		cache:     cache,
		updater:   updater,
		log:       logger,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// PublishStatsUpdated records a fresh bundle and fans it out to stream
// subscribers. Wired as the coordinator's OnStatsUpdated callback.
func (s *Service) PublishStatsUpdated(stats model.DeviceStats) {
	s.mu.Lock()
	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      "stats_updated",
		Timestamp: time.Now().UTC(),
		Stats:     stats,
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

// Handler returns the HTTP API routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/turns", s.handleIngestTurn)
	mux.HandleFunc("GET /v1/devices", s.handleDevices)
	mux.HandleFunc("GET /v1/devices/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /v1/devices/{id}/context", s.handleContext)
	mux.HandleFunc("POST /v1/devices/{id}/refresh", s.handleRefresh)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return mux
}

// Run serves the HTTP API and drives the periodic sweep until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info().Str("addr", s.cfg.Addr).
		Dur("sweep_interval", s.cfg.SweepInterval).
		Msg("kaiwastats daemon listening")

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.sweepOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	err := s.updater.RunPeriodicSweep(ctx)

	s.mu.Lock()
	s.lastSweepAt = time.Now().UTC()
	s.sweepCount++
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Msg("periodic sweep failed")
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.registry.Devices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.RLock()
	status := Status{
		StartedAt:        s.startedAt,
		Addr:             s.cfg.Addr,
		SweepIntervalSec: int(s.cfg.SweepInterval.Seconds()),
		SweepCount:       s.sweepCount,
		LastSweepAt:      s.lastSweepAt,
		LastError:        s.lastError,
		Devices:          len(devices),
		CachedBundles:    s.cache.Len(),
		EventCount:       len(s.events),
		SubscriberCount:  len(s.subs),
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleIngestTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.MACAddress) == "" || strings.TrimSpace(req.DeviceName) == "" {
		http.Error(w, "mac_address and device_name are required", http.StatusBadRequest)
		return
	}
	if req.UserMessage == "" {
		http.Error(w, "user_message is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	ts := req.Timestamp
	if ts.IsZero() {
		ts = now
	}

	info, err := s.registry.UpsertDevice(req.MACAddress, req.DeviceName, req.Location, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	turn, err := s.registry.AppendTurn(model.Turn{
		DeviceID:    info.DeviceID,
		UserMessage: req.UserMessage,
		BotResponse: req.BotResponse,
		Timestamp:   ts,
		Location:    req.Location,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Ingestion never waits for analysis.
	s.updater.NotifyTurnAdded(info.DeviceID)

	writeJSON(w, http.StatusAccepted, turn)
}

func (s *Service) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.registry.Devices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []model.DeviceInfo{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	stats, ok := s.cache.Get(deviceID)
	if !ok {
		http.Error(w, "no stats for device", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleContext(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	stats, ok := s.cache.Get(deviceID)
	if !ok {
		http.Error(w, "no stats for device", http.StatusNotFound)
		return
	}

	location := r.URL.Query().Get("location")
	ctx := analyzer.PromptContext(stats, time.Now(), location)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(ctx + "\n"))
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	stats, err := s.updater.ForceUpdate(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
