package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf2md/internal/config"
)

type fakeUploader struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(input.Bucket)
	f.key = aws.ToString(input.Key)
	f.contentType = aws.ToString(input.ContentType)
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &manager.UploadOutput{Location: "https://" + f.bucket + ".s3.amazonaws.com/" + f.key}, nil
}

func TestSeparatedPath(t *testing.T) {
	cases := map[string]string{
		"out.md":                 "out_with_separators.md",
		"/tmp/docs/report.md":    "/tmp/docs/report_with_separators.md",
		"notes":                  "notes_with_separators.md",
		"s3://bucket/a/b/doc.md": "s3://bucket/a/b/doc_with_separators.md",
	}
	for in, want := range cases {
		assert.Equal(t, want, SeparatedPath(in), in)
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "scans/book.md", DefaultPath("scans/book.pdf"))
	assert.Equal(t, "book.md", DefaultPath("book"))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://my-bucket/path/to/doc.md")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/doc.md", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key.md"} {
		_, _, err := ParseS3URL(bad)
		assert.ErrorIs(t, err, ErrInvalidS3URL, bad)
	}
}

func TestWriteLocalFileCreatesDirectories(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "dir", "doc.md")

	err := NewSink(config.S3Config{}).Write(context.Background(), dest, []byte("# Title"))
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(got))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteS3(t *testing.T) {
	up := &fakeUploader{}
	sink := NewSinkWithUploader(up)

	err := sink.Write(context.Background(), "s3://docs/out/doc.md", []byte("text"))
	require.NoError(t, err)

	assert.Equal(t, "docs", up.bucket)
	assert.Equal(t, "out/doc.md", up.key)
	assert.Equal(t, "text", string(up.body))
	assert.Contains(t, up.contentType, "text/markdown")
}

func TestWriteS3Errors(t *testing.T) {
	sink := NewSinkWithUploader(&fakeUploader{err: errors.New("access denied")})
	err := sink.Write(context.Background(), "s3://docs/doc.md", []byte("text"))
	assert.ErrorContains(t, err, "access denied")

	err = sink.Write(context.Background(), "s3://docs", []byte("text"))
	assert.ErrorIs(t, err, ErrInvalidS3URL)
}
