// Package ivs wraps the AWS IVS SDK for mentor channel provisioning and
// live stream control. Channels are permanent; streams come and go with classes.
package ivs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ivs"
	"github.com/aws/aws-sdk-go-v2/service/ivs/types"
	"go.uber.org/zap"
)

// ErrStreamOffline is returned when the channel has no broadcast in progress.
var ErrStreamOffline = errors.New("ivs: stream offline")

// Config holds IVS client configuration.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Channel is the provider-side identity of a mentor's permanent channel.
// StreamKey is only populated at creation time; IVS does not return it again.
type Channel struct {
	ARN            string
	IngestEndpoint string
	PlaybackURL    string
	StreamKey      string
}

// StreamStatus is a snapshot of a live broadcast on a channel.
type StreamStatus struct {
	State       string     `json:"state"`
	Health      string     `json:"health"`
	ViewerCount int64      `json:"viewer_count"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// Client wraps the IVS API.
type Client struct {
	api    *ivs.Client
	logger *zap.Logger
}

// NewClient creates an IVS client using credentials from config or the environment.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{api: ivs.NewFromConfig(awsCfg), logger: logger}, nil
}

// CreateChannel provisions a new channel and its stream key. The stream key is
// issued exactly once here; callers must persist it.
func (c *Client) CreateChannel(ctx context.Context, name string) (*Channel, error) {
	out, err := c.api.CreateChannel(ctx, &ivs.CreateChannelInput{
		Name:        aws.String(name),
		LatencyMode: types.ChannelLatencyModeLowLatency,
		Type:        types.ChannelTypeStandardChannelType,
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if out.Channel == nil || out.StreamKey == nil {
		return nil, fmt.Errorf("create channel: incomplete response")
	}
	ch := &Channel{
		ARN:            aws.ToString(out.Channel.Arn),
		IngestEndpoint: ingestURL(aws.ToString(out.Channel.IngestEndpoint)),
		PlaybackURL:    aws.ToString(out.Channel.PlaybackUrl),
		StreamKey:      aws.ToString(out.StreamKey.Value),
	}
	c.logger.Info("ivs channel created", zap.String("channel_arn", ch.ARN))
	return ch, nil
}

// GetStream returns the current broadcast status for a channel, or
// ErrStreamOffline when nothing is being ingested.
func (c *Client) GetStream(ctx context.Context, channelARN string) (*StreamStatus, error) {
	out, err := c.api.GetStream(ctx, &ivs.GetStreamInput{
		ChannelArn: aws.String(channelARN),
	})
	if err != nil {
		var notBroadcasting *types.ChannelNotBroadcasting
		if errors.As(err, &notBroadcasting) {
			return nil, ErrStreamOffline
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	if out.Stream == nil {
		return nil, ErrStreamOffline
	}
	return &StreamStatus{
		State:       string(out.Stream.State),
		Health:      string(out.Stream.Health),
		ViewerCount: out.Stream.ViewerCount,
		StartedAt:   out.Stream.StartTime,
	}, nil
}

// StopStream disconnects the encoder from a channel. Stopping a channel that is
// not broadcasting is not an error.
func (c *Client) StopStream(ctx context.Context, channelARN string) error {
	_, err := c.api.StopStream(ctx, &ivs.StopStreamInput{
		ChannelArn: aws.String(channelARN),
	})
	if err != nil {
		var notBroadcasting *types.ChannelNotBroadcasting
		if errors.As(err, &notBroadcasting) {
			return nil
		}
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

// ingestURL builds the full RTMPS ingest URL from the bare endpoint IVS returns.
func ingestURL(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	return fmt.Sprintf("rtmps://%s:443/app/", endpoint)
}
