package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	sessions map[uuid.UUID]*models.Session
}

func newFakeStore(list ...*models.Session) *fakeStore {
	s := &fakeStore{sessions: make(map[uuid.UUID]*models.Session)}
	for _, sess := range list {
		s.sessions[sess.ID] = sess
	}
	return s
}

func (f *fakeStore) Create(ctx context.Context, s *models.Session) error {
	s.ID = uuid.New()
	s.Status = models.SessionScheduled
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) Update(ctx context.Context, id uuid.UUID, title, description *string, scheduledAt *time.Time, durationMinutes *int) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionScheduled {
		return nil, ErrSessionNotFound
	}
	if title != nil {
		s.Title = *title
	}
	if description != nil {
		s.Description = *description
	}
	if scheduledAt != nil {
		s.ScheduledAt = *scheduledAt
	}
	if durationMinutes != nil {
		s.DurationMinutes = *durationMinutes
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) transition(id uuid.UUID, from, to models.SessionStatus) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Status != from {
		return nil, ErrInvalidTransition
	}
	s.Status = to
	now := time.Now()
	switch to {
	case models.SessionLive:
		s.StartedAt = &now
	case models.SessionEnded:
		s.EndedAt = &now
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) MarkLive(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.transition(id, models.SessionScheduled, models.SessionLive)
}

func (f *fakeStore) MarkEnded(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.transition(id, models.SessionLive, models.SessionEnded)
}

func (f *fakeStore) MarkCancelled(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return f.transition(id, models.SessionScheduled, models.SessionCancelled)
}

func (f *fakeStore) RevertToScheduled(ctx context.Context, id uuid.UUID) error {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.SessionLive {
		return nil
	}
	s.Status = models.SessionScheduled
	s.StartedAt = nil
	return nil
}

func (f *fakeStore) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.MentorID == mentorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUpcoming(ctx context.Context) ([]models.Session, error) {
	now := time.Now()
	var out []models.Session
	for _, s := range f.sessions {
		if s.IsUpcoming(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLive(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.Status == models.SessionLive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.CourseID != nil && *s.CourseID == courseID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeStreaming struct {
	started  []uuid.UUID
	stopped  []uuid.UUID
	startErr error
}

func (f *fakeStreaming) StartBroadcast(ctx context.Context, sessionID, mentorID uuid.UUID) (*models.LiveStream, *models.MentorChannel, error) {
	if f.startErr != nil {
		return nil, nil, f.startErr
	}
	f.started = append(f.started, sessionID)
	return &models.LiveStream{
			ID:             uuid.New(),
			SessionID:      sessionID,
			ChannelARN:     "arn:aws:ivs:us-east-1:123:channel/test",
			IngestEndpoint: "rtmps://ingest.example.com:443/app/",
			PlaybackURL:    "https://playback.example.com/index.m3u8",
			Status:         models.LiveStreamCreated,
		}, &models.MentorChannel{
			MentorID:       mentorID,
			ChannelARN:     "arn:aws:ivs:us-east-1:123:channel/test",
			IngestEndpoint: "rtmps://ingest.example.com:443/app/",
			PlaybackURL:    "https://playback.example.com/index.m3u8",
			StreamKey:      "sk_test_secret",
		}, nil
}

func (f *fakeStreaming) StopBroadcast(ctx context.Context, sessionID uuid.UUID) error {
	f.stopped = append(f.stopped, sessionID)
	return nil
}

type fakeMonitors struct {
	started []uuid.UUID
	stopped []uuid.UUID
}

func (f *fakeMonitors) Start(sessionID uuid.UUID, channelARN string) {
	f.started = append(f.started, sessionID)
}

func (f *fakeMonitors) Stop(sessionID uuid.UUID) {
	f.stopped = append(f.stopped, sessionID)
}

type fakeBroadcaster struct {
	events []string
}

func (f *fakeBroadcaster) BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{}) {
	f.events = append(f.events, event)
}

type fixture struct {
	store     *fakeStore
	streaming *fakeStreaming
	monitors  *fakeMonitors
	hub       *fakeBroadcaster
	router    *gin.Engine
}

func newFixture(userID uuid.UUID, list ...*models.Session) *fixture {
	f := &fixture{
		store:     newFakeStore(list...),
		streaming: &fakeStreaming{},
		monitors:  &fakeMonitors{},
		hub:       &fakeBroadcaster{},
	}
	h := NewHandler(f.store, f.streaming, f.monitors, f.hub, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
	})
	r.POST("/sessions/:id/start", h.Start)
	r.POST("/sessions/:id/end", h.End)
	r.POST("/sessions/:id/cancel", h.Cancel)
	r.GET("/sessions/upcoming", h.ListUpcoming)
	f.router = r
	return f
}

func scheduled(mentorID uuid.UUID) *models.Session {
	return &models.Session{
		ID:              uuid.New(),
		Title:           "Intro to Goroutines",
		MentorID:        mentorID,
		ScheduledAt:     time.Now().Add(30 * time.Minute),
		DurationMinutes: 60,
		Status:          models.SessionScheduled,
	}
}

func TestStartReturnsIngestCredentials(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	f := newFixture(mentorID, sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/start", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data struct {
			Session struct {
				Status string `json:"status"`
			} `json:"session"`
			Ingest struct {
				IngestEndpoint string `json:"ingest_endpoint"`
				StreamKey      string `json:"stream_key"`
				PlaybackURL    string `json:"playback_url"`
			} `json:"ingest"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "LIVE", body.Data.Session.Status)
	assert.Equal(t, "rtmps://ingest.example.com:443/app/", body.Data.Ingest.IngestEndpoint)
	assert.Equal(t, "sk_test_secret", body.Data.Ingest.StreamKey)
	assert.NotEmpty(t, body.Data.Ingest.PlaybackURL)

	assert.Equal(t, []uuid.UUID{sess.ID}, f.streaming.started)
	assert.Equal(t, []uuid.UUID{sess.ID}, f.monitors.started)
	assert.Contains(t, f.hub.events, "session:started")
}

func TestStartAlreadyLiveConflicts(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	sess.Status = models.SessionLive
	f := newFixture(mentorID, sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/start", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, f.streaming.started)
}

func TestStartBroadcastFailureRevertsToScheduled(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	f := newFixture(mentorID, sess)
	f.streaming.startErr = errors.New("channel quota exceeded")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/start", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	stored := f.store.sessions[sess.ID]
	assert.Equal(t, models.SessionScheduled, stored.Status)
	assert.Nil(t, stored.StartedAt)
	assert.Empty(t, f.monitors.started)
	assert.NotContains(t, f.hub.events, "session:started")

	// The start can be retried once the broadcast succeeds.
	f.streaming.startErr = nil
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/start", nil)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStartNotOwnerForbidden(t *testing.T) {
	sess := scheduled(uuid.New())
	f := newFixture(uuid.New(), sess) // caller is a different mentor

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/start", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.streaming.started)
}

func TestStartMissingSessionNotFound(t *testing.T) {
	f := newFixture(uuid.New())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+uuid.NewString()+"/start", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndRequiresLive(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	f := newFixture(mentorID, sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/end", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEndStopsBroadcastAndMonitor(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	sess.Status = models.SessionLive
	f := newFixture(mentorID, sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/end", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []uuid.UUID{sess.ID}, f.streaming.stopped)
	assert.Equal(t, []uuid.UUID{sess.ID}, f.monitors.stopped)
	assert.Contains(t, f.hub.events, "session:ended")
}

func TestCancelScheduled(t *testing.T) {
	mentorID := uuid.New()
	sess := scheduled(mentorID)
	f := newFixture(mentorID, sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sess.ID.String()+"/cancel", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.hub.events, "session:cancelled")

	stored := f.store.sessions[sess.ID]
	assert.Equal(t, models.SessionCancelled, stored.Status)
}

func TestListUpcomingAppliesGrace(t *testing.T) {
	mentorID := uuid.New()
	soon := scheduled(mentorID)
	slightlyPast := scheduled(mentorID)
	slightlyPast.ScheduledAt = time.Now().Add(-30 * time.Minute)
	longPast := scheduled(mentorID)
	longPast.ScheduledAt = time.Now().Add(-2 * time.Hour)

	f := newFixture(mentorID, soon, slightlyPast, longPast)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/upcoming", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	ids := []uuid.UUID{body.Data[0].ID, body.Data[1].ID}
	assert.Contains(t, ids, soon.ID)
	assert.Contains(t, ids, slightlyPast.ID)
	assert.NotContains(t, ids, longPast.ID)
}
