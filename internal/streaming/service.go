package streaming

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/ivs"
)

// Provider provisions channels and controls broadcasts. Satisfied by
// *ivs.Client; faked in tests.
type Provider interface {
	CreateChannel(ctx context.Context, name string) (*ivs.Channel, error)
	GetStream(ctx context.Context, channelARN string) (*ivs.StreamStatus, error)
	StopStream(ctx context.Context, channelARN string) error
}

// ChannelStore persists mentor channels and live streams. Satisfied by
// *Repository.
type ChannelStore interface {
	GetChannelByMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorChannel, error)
	CreateChannel(ctx context.Context, ch *models.MentorChannel) (*models.MentorChannel, error)
	CreateLiveStream(ctx context.Context, ls *models.LiveStream) error
	GetActiveStream(ctx context.Context, sessionID uuid.UUID) (*models.LiveStream, error)
	EndLiveStream(ctx context.Context, sessionID uuid.UUID) error
}

// Service orchestrates mentor channels and class broadcasts.
type Service struct {
	store    ChannelStore
	provider Provider
	logger   *zap.Logger
}

// NewService creates a Service.
func NewService(store ChannelStore, provider Provider, logger *zap.Logger) *Service {
	return &Service{store: store, provider: provider, logger: logger}
}

// GetOrCreateChannel returns the mentor's permanent channel, provisioning one
// on first use. The stream key is issued once at provisioning and persisted.
func (s *Service) GetOrCreateChannel(ctx context.Context, mentorID uuid.UUID) (*models.MentorChannel, error) {
	ch, err := s.store.GetChannelByMentor(ctx, mentorID)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, ErrChannelNotFound) {
		return nil, err
	}

	provisioned, err := s.provider.CreateChannel(ctx, "mentor-"+mentorID.String())
	if err != nil {
		return nil, fmt.Errorf("provision channel: %w", err)
	}
	ch = &models.MentorChannel{
		MentorID:       mentorID,
		ChannelARN:     provisioned.ARN,
		IngestEndpoint: provisioned.IngestEndpoint,
		PlaybackURL:    provisioned.PlaybackURL,
		StreamKey:      provisioned.StreamKey,
	}
	created, err := s.store.CreateChannel(ctx, ch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("mentor channel provisioned",
		zap.String("mentor_id", mentorID.String()),
		zap.String("channel_arn", created.ChannelARN),
	)
	return created, nil
}

// StartBroadcast opens a live stream for a session on the mentor's channel
// and returns the stream row plus the channel credentials the mentor needs
// to go on air.
func (s *Service) StartBroadcast(ctx context.Context, sessionID, mentorID uuid.UUID) (*models.LiveStream, *models.MentorChannel, error) {
	ch, err := s.GetOrCreateChannel(ctx, mentorID)
	if err != nil {
		return nil, nil, err
	}
	ls := &models.LiveStream{
		SessionID:      sessionID,
		ChannelARN:     ch.ChannelARN,
		IngestEndpoint: ch.IngestEndpoint,
		PlaybackURL:    ch.PlaybackURL,
		Status:         models.LiveStreamCreated,
	}
	if err := s.store.CreateLiveStream(ctx, ls); err != nil {
		return nil, nil, fmt.Errorf("create live stream: %w", err)
	}
	return ls, ch, nil
}

// StopBroadcast closes the session's live stream and disconnects the encoder.
func (s *Service) StopBroadcast(ctx context.Context, sessionID uuid.UUID) error {
	ls, err := s.store.GetActiveStream(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return nil
		}
		return err
	}
	if err := s.provider.StopStream(ctx, ls.ChannelARN); err != nil {
		s.logger.Warn("stop stream", zap.Error(err), zap.String("session_id", sessionID.String()))
	}
	return s.store.EndLiveStream(ctx, sessionID)
}

// StreamStatus returns the provider-side status of the session's broadcast.
// Returns ivs.ErrStreamOffline when the channel is not ingesting.
func (s *Service) StreamStatus(ctx context.Context, sessionID uuid.UUID) (*ivs.StreamStatus, error) {
	ls, err := s.store.GetActiveStream(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetStream(ctx, ls.ChannelARN)
}
