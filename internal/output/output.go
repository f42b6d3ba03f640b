// Package output writes conversion results to local files or S3.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"pdf2md/internal/config"
	"pdf2md/internal/logger"
)

const (
	markdownExt     = ".md"
	separatedSuffix = "_with_separators"
	contentType     = "text/markdown; charset=utf-8"
)

// ErrInvalidS3URL is returned for s3:// destinations without a bucket or key.
var ErrInvalidS3URL = errors.New("invalid S3 URL, expected s3://bucket/key")

// Uploader is the subset of the S3 upload manager used by Sink.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Sink writes artifacts to a local path or an s3://bucket/key URL. The S3
// client is only created when the first S3 destination is written.
type Sink struct {
	cfg config.S3Config
	log zerolog.Logger

	once     sync.Once
	uploader Uploader
	initErr  error
}

// NewSink creates a Sink that uses cfg for S3 destinations.
func NewSink(cfg config.S3Config) *Sink {
	return &Sink{cfg: cfg, log: logger.WithComponent("output")}
}

// NewSinkWithUploader creates a Sink that sends S3 destinations to uploader.
func NewSinkWithUploader(uploader Uploader) *Sink {
	s := &Sink{uploader: uploader, log: logger.WithComponent("output")}
	s.once.Do(func() {})
	return s
}

// Write stores data at dest.
func (s *Sink) Write(ctx context.Context, dest string, data []byte) error {
	if IsS3URL(dest) {
		return s.writeS3(ctx, dest, data)
	}
	return s.writeFile(dest, data)
}

func (s *Sink) writeFile(dest string, data []byte) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	s.log.Info().
		Str("output_file", dest).
		Int("bytes", len(data)).
		Msg("Markdown written to file")
	return nil
}

func (s *Sink) writeS3(ctx context.Context, dest string, data []byte) error {
	bucket, key, err := ParseS3URL(dest)
	if err != nil {
		return err
	}
	s.once.Do(func() {
		s.uploader, s.initErr = newS3Uploader(ctx, s.cfg)
	})
	if s.initErr != nil {
		return s.initErr
	}

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	s.log.Info().
		Str("location", result.Location).
		Int("bytes", len(data)).
		Msg("Markdown uploaded to S3")
	return nil
}

func newS3Uploader(ctx context.Context, cfg config.S3Config) (Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return manager.NewUploader(s3.NewFromConfig(awsCfg, s3Opts...)), nil
}

// IsS3URL reports whether dest names an S3 object.
func IsS3URL(dest string) bool {
	return strings.HasPrefix(dest, "s3://")
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(dest string) (bucket, key string, err error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidS3URL, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidS3URL, dest)
	}
	return u.Host, key, nil
}

// DefaultPath returns the Markdown path next to pdfPath: report.pdf becomes report.md.
func DefaultPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + markdownExt
}

// SeparatedPath returns the path of the page-separated artifact that goes
// with out: doc.md becomes doc_with_separators.md.
func SeparatedPath(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + separatedSuffix + markdownExt
}
