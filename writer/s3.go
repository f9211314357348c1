package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "datasetbuilder/config"
	"datasetbuilder/internal/metadata"
	"datasetbuilder/internal/store"
	"datasetbuilder/logger"
	"datasetbuilder/models"
)

const uploadTimeout = 2 * time.Minute

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter mirrors every synced dataset, and its Parquet export when one
// exists, to an S3 bucket.
type S3Exporter struct {
	client     objectPutter
	bucket     string
	prefix     string
	symbol     string
	version    string
	runID      string
	parquetDir string
	now        func() time.Time
	log        *logger.Log
}

// NewS3Exporter builds the S3 client from the storage configuration. Static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain applies.
func NewS3Exporter(ctx context.Context, cfg appconfig.S3Config, symbol, version, runID string) (*S3Exporter, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return newS3Exporter(client, cfg, symbol, version, runID), nil
}

func newS3Exporter(client objectPutter, cfg appconfig.S3Config, symbol, version, runID string) *S3Exporter {
	return &S3Exporter{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		symbol:  strings.ToUpper(symbol),
		version: version,
		runID:   runID,
		now:     time.Now,
		log:     logger.GetLogger(),
	}
}

// WithParquetDir makes the exporter upload <dir>/<series>.parquet alongside
// the CSV.
func (e *S3Exporter) WithParquetDir(dir string) *S3Exporter {
	e.parquetDir = dir
	return e
}

func (e *S3Exporter) Name() string { return "s3" }

// Key returns the object key for a series file with the given extension.
func (e *S3Exporter) Key(series, ext string) string {
	return path.Join(e.prefix, e.symbol, series+"."+ext)
}

// Export uploads the CSV, the Parquet export when present and a manifest
// describing both.
func (e *S3Exporter) Export(ctx context.Context, def models.Definition, ds *store.Dataset) error {
	entry := e.log.WithComponent("s3_exporter").WithSeries(def.Name)

	gen := metadata.NewGenerator(e.runID, def.Name, e.symbol)
	if first, last, ok := ds.Span(); ok {
		gen.SetRange(first, last)
	}

	csv := []byte(ds.Text())
	csvKey := e.Key(def.Name, "csv")
	if err := e.upload(ctx, csvKey, csv, "text/csv", def.Name, ds.Len()); err != nil {
		return fmt.Errorf("upload %s: %w", csvKey, err)
	}
	if err := gen.AddFile(e.dataFile(csvKey, "csv", len(csv), ds.Len())); err != nil {
		return err
	}
	entry.WithFields(logger.Fields{"bucket": e.bucket, "s3_key": csvKey, "records": ds.Len()}).Info("dataset uploaded")

	if e.parquetDir != "" {
		data, err := os.ReadFile(ParquetPath(e.parquetDir, def.Name))
		switch {
		case errors.Is(err, os.ErrNotExist):
			entry.Debug("no parquet export to upload")
		case err != nil:
			return fmt.Errorf("read parquet export: %w", err)
		default:
			parquetKey := e.Key(def.Name, "parquet")
			if err := e.upload(ctx, parquetKey, data, "application/octet-stream", def.Name, ds.Len()); err != nil {
				return fmt.Errorf("upload %s: %w", parquetKey, err)
			}
			if err := gen.AddFile(e.dataFile(parquetKey, "parquet", len(data), ds.Len())); err != nil {
				return err
			}
			entry.WithFields(logger.Fields{"bucket": e.bucket, "s3_key": parquetKey, "file_size": len(data)}).Info("parquet export uploaded")
		}
	}

	manifest, err := gen.Encode(e.now())
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	manifestKey := e.Key(def.Name, "manifest.json")
	if err := e.upload(ctx, manifestKey, manifest, "application/json", def.Name, ds.Len()); err != nil {
		return fmt.Errorf("upload %s: %w", manifestKey, err)
	}
	return nil
}

func (e *S3Exporter) dataFile(key, format string, size, records int) metadata.DataFile {
	return metadata.DataFile{
		Path:        fmt.Sprintf("s3://%s/%s", e.bucket, key),
		Format:      format,
		FileSize:    int64(size),
		RecordCount: int64(records),
	}
}

func (e *S3Exporter) upload(ctx context.Context, key string, data []byte, contentType, series string, records int) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"series":                 series,
			"symbol":                 e.symbol,
			"records":                strconv.Itoa(records),
			"run-id":                 e.runID,
			"datasetbuilder-version": e.version,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	_, err := e.client.PutObject(ctx, input)
	return err
}
