package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir, testLogger)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, b.Available(ctx))
	assert.Equal(t, "file://"+dir, b.LocationURI())

	data := []byte(`{"didRegistered":true}`)
	id, err := b.Store(ctx, data, interfaces.FlowReportType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)
	assert.FileExists(t, filepath.Join(dir, "flow", id.String()+".json"))

	got, err := b.Fetch(ctx, id, interfaces.FlowReportType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// namespaces are separate
	_, err = b.Fetch(ctx, id, interfaces.BatchReportType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, b.Available(ctx))
}

func TestArchiver(t *testing.T) {
	b, err := NewFileBackend(t.TempDir(), testLogger)
	require.NoError(t, err)
	a := NewArchiver(b, testLogger)
	ctx := context.Background()

	report := map[string]any{"challengeSet": "X", "attestationFound": false}
	id, err := a.Archive(ctx, interfaces.FlowReportType, report)
	require.NoError(t, err)

	var loaded map[string]any
	require.NoError(t, a.Load(ctx, interfaces.FlowReportType, id, &loaded))
	assert.Equal(t, "X", loaded["challengeSet"])

	_, err = a.Archive(ctx, interfaces.FlowReportType, make(chan int))
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger)
	dir := t.TempDir()

	locations, err := ParseLocations([]string{"file://" + dir, " ", "s3://reports/runs?region=eu-central-1&endpoint=http://minio:9000"})
	require.NoError(t, err)
	require.Len(t, locations, 2)

	fileBackend, err := factory.StorageBackendFor(locations[0])
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, fileBackend)

	s3Backend, err := factory.StorageBackendFor(locations[1])
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/runs?region=eu-central-1&endpoint=http://minio:9000", s3Backend.LocationURI())

	multi, err := factory.CreateMultiBackend(locations)
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)

	single, err := factory.CreateMultiBackend(locations[:1])
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, single)

	_, err = ParseLocations([]string{"vault://secrets"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.CreateMultiBackend(nil)
	assert.Error(t, err)
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucketWithContext(ctx aws.Context, in *s3.HeadBucketInput, opts ...request.Option) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	b := newS3Backend(client, S3Opts{Bucket: "reports", Prefix: "runs", Region: "us-east-1"}, testLogger)
	ctx := context.Background()

	assert.True(t, b.Available(ctx))

	data := []byte(`{"success":false}`)
	id, err := b.Store(ctx, data, interfaces.BatchReportType)
	require.NoError(t, err)
	assert.Contains(t, client.objects, "runs/batch/"+id.String()+".json")

	got, err := b.Fetch(ctx, id, interfaces.BatchReportType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = b.Fetch(ctx, id, interfaces.FlowReportType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}
