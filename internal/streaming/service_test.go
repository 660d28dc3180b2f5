package streaming

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/ivs"
)

type fakeProvider struct {
	createCalls int
	stopCalls   []string
	status      *ivs.StreamStatus
	statusErr   error
}

func (f *fakeProvider) CreateChannel(ctx context.Context, name string) (*ivs.Channel, error) {
	f.createCalls++
	return &ivs.Channel{
		ARN:            "arn:aws:ivs:us-east-1:123:channel/" + name,
		IngestEndpoint: "rtmps://ingest.example.com:443/app/",
		PlaybackURL:    "https://playback.example.com/" + name + ".m3u8",
		StreamKey:      "sk_" + name,
	}, nil
}

func (f *fakeProvider) GetStream(ctx context.Context, channelARN string) (*ivs.StreamStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeProvider) StopStream(ctx context.Context, channelARN string) error {
	f.stopCalls = append(f.stopCalls, channelARN)
	return nil
}

type memStore struct {
	channels map[uuid.UUID]*models.MentorChannel
	streams  map[uuid.UUID]*models.LiveStream
}

func newMemStore() *memStore {
	return &memStore{
		channels: make(map[uuid.UUID]*models.MentorChannel),
		streams:  make(map[uuid.UUID]*models.LiveStream),
	}
}

func (m *memStore) GetChannelByMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorChannel, error) {
	ch, ok := m.channels[mentorID]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

func (m *memStore) CreateChannel(ctx context.Context, ch *models.MentorChannel) (*models.MentorChannel, error) {
	ch.ID = uuid.New()
	m.channels[ch.MentorID] = ch
	return ch, nil
}

func (m *memStore) CreateLiveStream(ctx context.Context, ls *models.LiveStream) error {
	ls.ID = uuid.New()
	m.streams[ls.SessionID] = ls
	return nil
}

func (m *memStore) GetActiveStream(ctx context.Context, sessionID uuid.UUID) (*models.LiveStream, error) {
	ls, ok := m.streams[sessionID]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return ls, nil
}

func (m *memStore) EndLiveStream(ctx context.Context, sessionID uuid.UUID) error {
	delete(m.streams, sessionID)
	return nil
}

func TestGetOrCreateChannelProvisionsOnce(t *testing.T) {
	provider := &fakeProvider{}
	store := newMemStore()
	svc := NewService(store, provider, zap.NewNop())

	mentorID := uuid.New()

	first, err := svc.GetOrCreateChannel(context.Background(), mentorID)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.createCalls)
	assert.True(t, strings.HasPrefix(first.StreamKey, "sk_"))

	second, err := svc.GetOrCreateChannel(context.Background(), mentorID)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.createCalls, "second call must reuse the stored channel")
	assert.Equal(t, first.ChannelARN, second.ChannelARN)
	assert.Equal(t, first.StreamKey, second.StreamKey)
}

func TestStartBroadcastCarriesChannelCredentials(t *testing.T) {
	provider := &fakeProvider{}
	store := newMemStore()
	svc := NewService(store, provider, zap.NewNop())

	mentorID := uuid.New()
	sessionID := uuid.New()

	stream, channel, err := svc.StartBroadcast(context.Background(), sessionID, mentorID)
	require.NoError(t, err)

	// What the mentor ingests to must be what viewers play back from.
	assert.Equal(t, channel.IngestEndpoint, stream.IngestEndpoint)
	assert.Equal(t, channel.PlaybackURL, stream.PlaybackURL)
	assert.Equal(t, channel.ChannelARN, stream.ChannelARN)
	assert.Equal(t, models.LiveStreamCreated, stream.Status)
	assert.Equal(t, sessionID, stream.SessionID)
}

func TestStopBroadcastDisconnectsEncoder(t *testing.T) {
	provider := &fakeProvider{}
	store := newMemStore()
	svc := NewService(store, provider, zap.NewNop())

	mentorID := uuid.New()
	sessionID := uuid.New()

	_, channel, err := svc.StartBroadcast(context.Background(), sessionID, mentorID)
	require.NoError(t, err)

	require.NoError(t, svc.StopBroadcast(context.Background(), sessionID))
	assert.Equal(t, []string{channel.ChannelARN}, provider.stopCalls)

	_, err = store.GetActiveStream(context.Background(), sessionID)
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestStopBroadcastWithoutStreamIsNoop(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(newMemStore(), provider, zap.NewNop())

	require.NoError(t, svc.StopBroadcast(context.Background(), uuid.New()))
	assert.Empty(t, provider.stopCalls)
}

func TestStreamStatusOffline(t *testing.T) {
	provider := &fakeProvider{statusErr: ivs.ErrStreamOffline}
	store := newMemStore()
	svc := NewService(store, provider, zap.NewNop())

	sessionID := uuid.New()
	_, _, err := svc.StartBroadcast(context.Background(), sessionID, uuid.New())
	require.NoError(t, err)

	_, err = svc.StreamStatus(context.Background(), sessionID)
	assert.ErrorIs(t, err, ivs.ErrStreamOffline)
}
