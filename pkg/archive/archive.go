// Package archive uploads finished recordings to S3.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/teslashibe/go-framestream/internal/httpc"
	"github.com/teslashibe/go-framestream/pkg/frame"
)

// Config holds archive configuration.
type Config struct {
	// Bucket is the destination bucket. Empty disables archiving.
	Bucket string `yaml:"bucket" json:"bucket"`

	// Prefix is prepended to every key.
	Prefix string `yaml:"prefix" json:"prefix"`

	// Region overrides the SDK's region resolution.
	Region string `yaml:"region" json:"region"`

	// Endpoint targets an S3 compatible store instead of AWS.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// UsePathStyle addresses buckets by path, as most S3 compatible
	// stores require.
	UsePathStyle bool `yaml:"use_path_style" json:"use_path_style"`

	// Timeout bounds one upload.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:  "recordings",
		Timeout: 5 * time.Minute,
	}
}

// Enabled reports whether a bucket is configured.
func (c *Config) Enabled() bool { return c.Bucket != "" }

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Uploader is the subset of the S3 client the archive needs.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpc.NewClient(cfg.Timeout)),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Recording is a sink that writes a file.
type Recording interface {
	Write(f *frame.Frame) error
	Finalize() error
	Path() string
}

// Sink wraps a recording and uploads its file once the recording is
// finalized.
type Sink struct {
	rec       Recording
	up        Uploader
	cfg       Config
	sessionID string
	logger    *slog.Logger

	once sync.Once
	err  error
}

// New wraps rec. The object key is prefix/sessionID/<file name>.
func New(rec Recording, up Uploader, cfg Config, sessionID string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		rec:       rec,
		up:        up,
		cfg:       cfg,
		sessionID: sessionID,
		logger:    logger,
	}
}

// Key returns the object key the recording is uploaded to.
func (s *Sink) Key() string {
	return path.Join(s.cfg.Prefix, s.sessionID, filepath.Base(s.rec.Path()))
}

// Write passes f to the recording.
func (s *Sink) Write(f *frame.Frame) error {
	return s.rec.Write(f)
}

// Finalize finalizes the recording, then uploads it. The upload is skipped
// when finalizing fails. Later calls return the first result.
func (s *Sink) Finalize() error {
	s.once.Do(func() {
		if err := s.rec.Finalize(); err != nil {
			s.err = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		s.err = s.upload(ctx)
	})
	return s.err
}

func (s *Sink) upload(ctx context.Context) error {
	file := s.rec.Path()
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat recording: %w", err)
	}

	key := s.Key()
	start := time.Now()
	_, err = s.up.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("video/x-msvideo"),
		Metadata: map[string]string{
			"session-id":  s.sessionID,
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	s.logger.Info("recording archived",
		"bucket", s.cfg.Bucket,
		"key", key,
		"bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
