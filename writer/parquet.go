package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "datasetbuilder/config"
	"datasetbuilder/internal/store"
	"datasetbuilder/logger"
	"datasetbuilder/models"
)

// datasetParquetRecord is one field of one stored record in long format.
type datasetParquetRecord struct {
	Series    string `parquet:"name=series, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol    string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Field     string `parquet:"name=field, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value     string `parquet:"name=value, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// ParquetExporter writes a long-format Parquet copy of every synced dataset.
type ParquetExporter struct {
	dir         string
	compression string
	symbol      string
	log         *logger.Log
}

func NewParquetExporter(cfg appconfig.ParquetConfig, symbol string) *ParquetExporter {
	return &ParquetExporter{
		dir:         cfg.Dir,
		compression: cfg.Compression,
		symbol:      strings.ToUpper(symbol),
		log:         logger.GetLogger(),
	}
}

func (e *ParquetExporter) Name() string { return "parquet" }

// Path returns where the export of the named series is written.
func (e *ParquetExporter) Path(series string) string {
	return ParquetPath(e.dir, series)
}

// ParquetPath is the export location of series under dir.
func ParquetPath(dir, series string) string {
	return filepath.Join(dir, series+".parquet")
}

func (e *ParquetExporter) Export(ctx context.Context, def models.Definition, ds *store.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	records, err := ds.Records()
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	data, rows, err := createParquet(def.Name, e.symbol, records, e.compression)
	if err != nil {
		return err
	}

	path := e.Path(def.Name)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}

	entry := e.log.WithComponent("parquet_exporter").WithSeries(def.Name)
	logger.LogPerformanceEntry(entry, "parquet_exporter", "export", time.Since(start), logger.Fields{
		"path":      path,
		"rows":      rows,
		"file_size": len(data),
	})
	entry.WithFields(logger.Fields{"path": path, "rows": rows}).Info("dataset exported to parquet")
	return nil
}

func createParquet(series, symbol string, records []models.Record, compression string) ([]byte, int, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(datasetParquetRecord), 1)
	if err != nil {
		return nil, 0, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	rows := 0
	for _, rec := range records {
		for _, f := range rec.Fields {
			row := datasetParquetRecord{
				Series:    series,
				Symbol:    symbol,
				Timestamp: rec.Timestamp,
				Field:     f.Name,
				Value:     f.Value,
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				return nil, 0, fmt.Errorf("write parquet record: %w", err)
			}
			rows++
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.Bytes(), rows, nil
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(name) {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	case "zstd":
		return parquet.CompressionCodec_ZSTD
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
