package streaming

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/pkg/ivs"
)

// Broadcaster pushes events to a session's realtime room. Satisfied by
// *realtime.Hub.
type Broadcaster interface {
	BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{})
}

const (
	pollInterval = 10 * time.Second
	// offlineTolerance is how many consecutive offline polls a live stream
	// survives before the monitor gives up (encoder hiccups recover faster).
	offlineTolerance = 6
)

// Monitor polls the provider for one session's broadcast and pushes status
// updates to the session room.
type Monitor struct {
	sessionID  uuid.UUID
	channelARN string

	repo     *Repository
	provider Provider
	hub      Broadcaster
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(sessionID uuid.UUID, channelARN string, repo *Repository, provider Provider, hub Broadcaster, logger *zap.Logger) *Monitor {
	return &Monitor{
		sessionID:  sessionID,
		channelARN: channelARN,
		repo:       repo,
		provider:   provider,
		hub:        hub,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	wentLive := false
	offline := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := m.provider.GetStream(ctx, m.channelARN)
		if err != nil {
			if errors.Is(err, ivs.ErrStreamOffline) {
				offline++
				if wentLive && offline >= offlineTolerance {
					m.logger.Info("broadcast went silent, stopping monitor",
						zap.String("session_id", m.sessionID.String()))
					return
				}
				continue
			}
			m.logger.Warn("poll stream", zap.Error(err), zap.String("session_id", m.sessionID.String()))
			continue
		}
		offline = 0

		if !wentLive {
			wentLive = true
			if err := m.repo.MarkStreamLive(ctx, m.sessionID); err != nil {
				m.logger.Warn("mark stream live", zap.Error(err))
			}
		}
		if err := m.repo.UpdatePeakViewers(ctx, m.sessionID, int(status.ViewerCount)); err != nil {
			m.logger.Warn("update peak viewers", zap.Error(err))
		}
		m.hub.BroadcastAndPublish(m.sessionID, "stream_status", statusEvent{
			SessionID:   m.sessionID,
			State:       status.State,
			Health:      status.Health,
			ViewerCount: status.ViewerCount,
		})
	}
}

type statusEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	State       string    `json:"state"`
	Health      string    `json:"health"`
	ViewerCount int64     `json:"viewer_count"`
}

// MonitorRegistry owns one Monitor per live session.
type MonitorRegistry struct {
	mu       sync.Mutex
	monitors map[string]*Monitor

	repo     *Repository
	provider Provider
	hub      Broadcaster
	logger   *zap.Logger
}

// NewMonitorRegistry creates a MonitorRegistry.
func NewMonitorRegistry(repo *Repository, provider Provider, hub Broadcaster, logger *zap.Logger) *MonitorRegistry {
	return &MonitorRegistry{
		monitors: make(map[string]*Monitor),
		repo:     repo,
		provider: provider,
		hub:      hub,
		logger:   logger,
	}
}

// Start begins polling for a session. Starting an already monitored session
// is a no-op.
func (r *MonitorRegistry) Start(sessionID uuid.UUID, channelARN string) {
	key := sessionID.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[key]; ok {
		return
	}
	m := newMonitor(sessionID, channelARN, r.repo, r.provider, r.hub, r.logger)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	r.monitors[key] = m
	go func() {
		m.run(ctx)
		r.mu.Lock()
		if r.monitors[key] == m {
			delete(r.monitors, key)
		}
		r.mu.Unlock()
	}()
}

// Stop halts polling for a session and waits for the monitor to exit.
func (r *MonitorRegistry) Stop(sessionID uuid.UUID) {
	key := sessionID.String()
	r.mu.Lock()
	m, ok := r.monitors[key]
	if ok {
		delete(r.monitors, key)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	m.cancel()
	<-m.done
}

// StopAll halts every monitor, used during shutdown.
func (r *MonitorRegistry) StopAll() {
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.monitors))
	for key, m := range r.monitors {
		monitors = append(monitors, m)
		delete(r.monitors, key)
	}
	r.mu.Unlock()
	for _, m := range monitors {
		m.cancel()
		<-m.done
	}
}

// Resume restarts monitors for streams that were open before a restart.
func (r *MonitorRegistry) Resume(ctx context.Context) error {
	streams, err := r.repo.ListActiveStreams(ctx)
	if err != nil {
		return err
	}
	for _, ls := range streams {
		r.Start(ls.SessionID, ls.ChannelARN)
	}
	if len(streams) > 0 {
		r.logger.Info("resumed stream monitors", zap.Int("count", len(streams)))
	}
	return nil
}
