package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// Exporter uploads the trades ingested by a scrape run to object
// storage as CSV, one object per run.
type Exporter struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewExporter creates an Exporter over the given blob writer.
func NewExporter(writer domain.BlobWriter, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		writer: writer,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Export writes the run's inserted trades to
// dexscreener/trades/<date>-<run id>.csv. Runs that inserted nothing
// are skipped.
func (e *Exporter) Export(ctx context.Context, report *RunReport) error {
	if len(report.Inserted) == 0 {
		e.logger.Debug("nothing to export", slog.String("run_id", report.RunID))
		return nil
	}

	data, err := tradesToCSV(report.Inserted)
	if err != nil {
		return fmt.Errorf("exporter: encode run %s: %w", report.RunID, err)
	}

	path := fmt.Sprintf("dexscreener/trades/%s-%s.csv",
		time.Now().UTC().Format("2006-01-02"), report.RunID)
	if err := e.upload(ctx, path, data); err != nil {
		return fmt.Errorf("exporter: upload %s: %w", path, err)
	}

	e.logger.Info("run exported",
		slog.String("run_id", report.RunID),
		slog.Int("trades", len(report.Inserted)),
		slog.String("path", path),
	)
	return nil
}

// multipartThreshold is the payload size above which the exporter
// switches to multipart upload (8 MiB).
const multipartThreshold = 8 << 20

// multipartWriter is the optional fast path for large payloads; the S3
// writer implements it.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// upload picks single-shot or multipart depending on payload size and
// what the writer supports.
func (e *Exporter) upload(ctx context.Context, path string, data []byte) error {
	if mw, ok := e.writer.(multipartWriter); ok && len(data) > multipartThreshold {
		return mw.PutMultipart(ctx, path, bytes.NewReader(data), multipartThreshold)
	}
	return e.writer.Put(ctx, path, bytes.NewReader(data), "text/csv")
}

// tradesToCSV renders trades as CSV with a header row.
func tradesToCSV(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"block_number",
		"block_timestamp",
		"txn_hash",
		"log_index",
		"side",
		"price_usd",
		"volume_usd",
		"amount_vpnd",
		"amount_avax",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, t := range trades {
		row := []string{
			strconv.FormatInt(t.BlockNumber, 10),
			strconv.FormatInt(t.BlockTimestamp, 10),
			t.TxnHash,
			strconv.FormatInt(t.LogIndex, 10),
			string(t.Side),
			strconv.FormatFloat(t.PriceUSD, 'f', -1, 64),
			strconv.FormatFloat(t.VolumeUSD, 'f', -1, 64),
			strconv.FormatFloat(t.AmountVPND, 'f', -1, 64),
			strconv.FormatFloat(t.AmountAVAX, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}
