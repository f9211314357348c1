package writer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "datasetbuilder/config"
	"datasetbuilder/internal/metadata"
	"datasetbuilder/models"
)

type putCall struct {
	key         string
	body        string
	contentType string
	metadata    map[string]string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		key:         aws.ToString(params.Key),
		body:        string(body),
		contentType: aws.ToString(params.ContentType),
		metadata:    params.Metadata,
	})
	return &s3.PutObjectOutput{}, nil
}

func TestS3ExporterUploadsCSV(t *testing.T) {
	putter := &fakePutter{}
	exp := newS3Exporter(putter, appconfig.S3Config{Bucket: "datasets", Prefix: "/binance/futures/"}, "btcusdt", "1.2.0", "run-1")

	ds := sampleDataset()
	require.NoError(t, exp.Export(context.Background(), models.Definition{Name: "taker_buy_sell_volume"}, ds))

	require.Len(t, putter.calls, 2)
	call := putter.calls[0]
	assert.Equal(t, "binance/futures/BTCUSDT/taker_buy_sell_volume.csv", call.key)
	assert.Equal(t, ds.Text(), call.body)
	assert.Equal(t, "text/csv", call.contentType)
	assert.Equal(t, "run-1", call.metadata["run-id"])
	assert.Equal(t, "2", call.metadata["records"])
	assert.Equal(t, "1.2.0", call.metadata["datasetbuilder-version"])
}

func TestS3ExporterUploadsParquetWhenPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "funding_rate.parquet"), []byte("PAR1data"), 0o644))

	putter := &fakePutter{}
	exp := newS3Exporter(putter, appconfig.S3Config{Bucket: "datasets"}, "BTCUSDT", "dev", "run-2").WithParquetDir(dir)

	require.NoError(t, exp.Export(context.Background(), models.Definition{Name: "funding_rate"}, sampleDataset()))
	require.Len(t, putter.calls, 3)
	assert.Equal(t, "BTCUSDT/funding_rate.csv", putter.calls[0].key)
	assert.Equal(t, "BTCUSDT/funding_rate.parquet", putter.calls[1].key)
	assert.Equal(t, "PAR1data", putter.calls[1].body)
	assert.Equal(t, "BTCUSDT/funding_rate.manifest.json", putter.calls[2].key)

	var m metadata.Manifest
	require.NoError(t, json.Unmarshal([]byte(putter.calls[2].body), &m))
	assert.Equal(t, "run-2", m.RunID)
	assert.Equal(t, int64(100), m.FirstTimestamp)
	assert.Equal(t, int64(200), m.LastTimestamp)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "s3://datasets/BTCUSDT/funding_rate.parquet", m.Files[1].Path)
	assert.Equal(t, int64(8), m.Files[1].FileSize)
}

func TestS3ExporterSkipsMissingParquet(t *testing.T) {
	putter := &fakePutter{}
	exp := newS3Exporter(putter, appconfig.S3Config{Bucket: "datasets"}, "BTCUSDT", "dev", "run-3").WithParquetDir(t.TempDir())

	require.NoError(t, exp.Export(context.Background(), models.Definition{Name: "open_interest"}, sampleDataset()))
	require.Len(t, putter.calls, 2)
	assert.Equal(t, "BTCUSDT/open_interest.manifest.json", putter.calls[1].key)
	assert.Equal(t, "application/json", putter.calls[1].contentType)
}

func TestS3ExporterPropagatesErrors(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	exp := newS3Exporter(putter, appconfig.S3Config{Bucket: "datasets"}, "BTCUSDT", "dev", "run-4")

	err := exp.Export(context.Background(), models.Definition{Name: "open_interest"}, sampleDataset())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTCUSDT/open_interest.csv")
	assert.Contains(t, err.Error(), "access denied")
}
