// Package silver persists validated datasets: flat CSV snapshots for
// inspection plus day-partitioned compressed part files for analytical
// consumers.
package silver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/ecodata/plantpulse/internal/schema"
	"github.com/ecodata/plantpulse/internal/table"
)

// Compression codecs for partitioned part files.
const (
	CodecSnappy = "snappy"
	CodecZstd   = "zstd"
)

const partitionDayLayout = "2006-01-02"

// Writer persists the silver layer under one directory.
type Writer struct {
	dir    string
	codec  string
	logger *zap.Logger
	zenc   *zstd.Encoder
}

// NewWriter creates a silver writer rooted at dir. Codec defaults to
// snappy.
func NewWriter(dir, codec string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codec == "" {
		codec = CodecSnappy
	}
	w := &Writer{dir: dir, codec: codec, logger: logger}
	switch codec {
	case CodecSnappy:
	case CodecZstd:
		zenc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("silver: init zstd encoder: %w", err)
		}
		w.zenc = zenc
	default:
		return nil, fmt.Errorf("silver: unknown codec %q", codec)
	}
	return w, nil
}

// WriteTelemetry persists validated telemetry.
func (w *Writer) WriteTelemetry(records []schema.TelemetryRecord) error {
	times := make([]time.Time, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
	}
	return w.writeDataset("telemetry", schema.TelemetryTable(records), times)
}

// WriteProduction persists validated production.
func (w *Writer) WriteProduction(records []schema.ProductionRecord) error {
	times := make([]time.Time, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
	}
	return w.writeDataset("production", schema.ProductionTable(records), times)
}

// WriteEvents persists validated events.
func (w *Writer) WriteEvents(records []schema.EventRecord) error {
	times := make([]time.Time, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
	}
	return w.writeDataset("events", schema.EventTable(records), times)
}

func (w *Writer) writeDataset(dataset string, tbl *table.Table, times []time.Time) error {
	flat := filepath.Join(w.dir, dataset+"_silver.csv")
	if err := tbl.WriteCSV(flat); err != nil {
		return fmt.Errorf("silver: write %s: %w", dataset, err)
	}

	partitions := partitionByDay(tbl, times)
	for day, part := range partitions {
		if err := w.writePart(dataset, day, part); err != nil {
			return err
		}
	}
	w.logger.Info("silver dataset written",
		zap.String("dataset", dataset),
		zap.Int("rows", tbl.Len()),
		zap.Int("partitions", len(partitions)),
		zap.String("codec", w.codec),
	)
	return nil
}

// writePart writes one compressed day partition:
// <dir>/parquet/<dataset>/data=YYYY-MM-DD/part-00000.csv.<codec ext>.
func (w *Writer) writePart(dataset, day string, part *table.Table) error {
	raw, err := part.MarshalCSV()
	if err != nil {
		return fmt.Errorf("silver: marshal %s partition %s: %w", dataset, day, err)
	}

	var compressed []byte
	var ext string
	switch w.codec {
	case CodecSnappy:
		compressed = snappy.Encode(nil, raw)
		ext = "snappy"
	case CodecZstd:
		compressed = w.zenc.EncodeAll(raw, make([]byte, 0, len(raw)))
		ext = "zst"
	}

	dir := filepath.Join(w.dir, "parquet", dataset, "data="+day)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("silver: mkdir partition: %w", err)
	}
	path := filepath.Join(dir, "part-00000.csv."+ext)
	if err := os.WriteFile(path, compressed, 0640); err != nil {
		return fmt.Errorf("silver: write partition %s: %w", path, err)
	}
	return nil
}

// partitionByDay splits a table into per-day subtables sharing the
// header row. Rows and times are index-aligned.
func partitionByDay(tbl *table.Table, times []time.Time) map[string]*table.Table {
	parts := make(map[string]*table.Table)
	for i, row := range tbl.Rows {
		day := times[i].Format(partitionDayLayout)
		part, ok := parts[day]
		if !ok {
			part = &table.Table{Headers: tbl.Headers}
			parts[day] = part
		}
		part.Rows = append(part.Rows, row)
	}
	return parts
}
