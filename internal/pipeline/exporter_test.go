package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

type captureWriter struct {
	path        string
	contentType string
	body        string
	multiparts  int
}

func (c *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.path = path
	c.contentType = contentType
	c.body = string(b)
	return nil
}

func (c *captureWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	c.multiparts++
	c.path = path
	return nil
}

func TestExportWritesCSV(t *testing.T) {
	w := &captureWriter{}
	report := &RunReport{
		RunID: "run-1",
		Inserted: []domain.Trade{
			{BlockNumber: 7, BlockTimestamp: 1000, TxnHash: "0x1", Side: domain.SideBuy, PriceUSD: 1.5},
			{BlockNumber: 8, BlockTimestamp: 2000, TxnHash: "0x2", Side: domain.SideSell, PriceUSD: 2.25},
		},
	}

	if err := NewExporter(w, nil).Export(context.Background(), report); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if !strings.HasPrefix(w.path, "dexscreener/trades/") || !strings.HasSuffix(w.path, "-run-1.csv") {
		t.Errorf("unexpected object path %q", w.path)
	}
	if w.contentType != "text/csv" {
		t.Errorf("content type = %q, want text/csv", w.contentType)
	}
	if w.multiparts != 0 {
		t.Errorf("small payload used multipart upload")
	}

	lines := strings.Split(strings.TrimSpace(w.body), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d CSV lines, want header + 2 rows:\n%s", len(lines), w.body)
	}
	if !strings.HasPrefix(lines[0], "block_number,") {
		t.Errorf("missing header row: %q", lines[0])
	}
	if !strings.Contains(lines[1], "0x1,") || !strings.Contains(lines[1], "buy") {
		t.Errorf("first row wrong: %q", lines[1])
	}
}

func TestExportSkipsEmptyRun(t *testing.T) {
	w := &captureWriter{}
	err := NewExporter(w, nil).Export(context.Background(), &RunReport{RunID: "run-2"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if w.path != "" {
		t.Errorf("empty run was uploaded to %q", w.path)
	}
}
