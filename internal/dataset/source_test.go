package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectGetter struct {
	mock.Mock
}

func (m *MockObjectGetter) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "bucket and nested key", raw: "s3://datasets/iris/iris.csv", wantBucket: "datasets", wantKey: "iris/iris.csv"},
		{name: "wrong scheme", raw: "https://datasets/iris.csv", wantErr: true},
		{name: "missing key", raw: "s3://datasets/", wantErr: true},
		{name: "missing bucket", raw: "s3:///iris.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestS3SourceOpen(t *testing.T) {
	client := new(MockObjectGetter)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "datasets" && *in.Key == "iris.csv"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(header))}, nil)

	source := NewS3SourceWithClient(client, "datasets", "iris.csv")
	rc, err := source.Open(context.Background())

	require.NoError(t, err)
	assert.Equal(t, header, readAll(t, rc))
	assert.Equal(t, "s3://datasets/iris.csv", source.String())
	client.AssertExpectations(t)
}

func TestS3SourceMissingObject(t *testing.T) {
	client := new(MockObjectGetter)
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	source := NewS3SourceWithClient(client, "datasets", "iris.csv")
	for i := 0; i < 5; i++ {
		_, err := source.Open(context.Background())
		assert.ErrorIs(t, err, ErrSourceNotFound)
	}
	client.AssertNumberOfCalls(t, "GetObject", 5)
}

func TestS3SourceBreakerOpensAfterFailures(t *testing.T) {
	client := new(MockObjectGetter)
	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	source := NewS3SourceWithClient(client, "datasets", "iris.csv")
	for i := 0; i < 3; i++ {
		_, err := source.Open(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	_, err := source.Open(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	client.AssertNumberOfCalls(t, "GetObject", 3)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iris.csv")
	require.NoError(t, os.WriteFile(path, []byte(header), 0o600))

	rc, err := FileSource{Path: path}.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, header, readAll(t, rc))

	_, err = FileSource{Path: filepath.Join(dir, "missing.csv")}.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestNewSource(t *testing.T) {
	source, err := NewSource(context.Background(), "data/iris.csv", S3Config{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "data/iris.csv"}, source)
}

func TestSampleSource(t *testing.T) {
	data := readAll(t, mustOpen(t, SampleSource()))
	lines := strings.Split(strings.TrimSpace(data), "\n")
	assert.Len(t, lines, 61)
	assert.Equal(t, strings.TrimSpace(header), lines[0])
}

func mustOpen(t *testing.T, s Source) io.ReadCloser {
	t.Helper()
	rc, err := s.Open(context.Background())
	require.NoError(t, err)
	return rc
}
