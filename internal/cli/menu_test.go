package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
	"github.com/theimperious1/VaporAnalyzer/internal/pipeline"
	"github.com/theimperious1/VaporAnalyzer/internal/query"
)

type fakeRunner struct {
	report *pipeline.RunReport
	calls  int
}

func (f *fakeRunner) Run(context.Context) (*pipeline.RunReport, error) {
	f.calls++
	return f.report, nil
}

type fakeEnricher struct {
	wallets, nodes int
}

func (f *fakeEnricher) FetchWallets(context.Context) (int, error) { return f.wallets, nil }
func (f *fakeEnricher) UpdateNodes(context.Context) (int, error)  { return f.nodes, nil }

type memSnapshot []domain.Trade

func (m memSnapshot) Snapshot() []domain.Trade { return m }

func run(t *testing.T, deps Deps, script string) string {
	t.Helper()
	var out strings.Builder
	if err := New(deps, strings.NewReader(script), &out).Run(context.Background()); err != nil {
		t.Fatalf("menu failed: %v", err)
	}
	return out.String()
}

func TestMenuScrape(t *testing.T) {
	runner := &fakeRunner{report: &pipeline.RunReport{
		Outcome:   pipeline.OutcomeCaughtUp,
		Pages:     3,
		Inserted:  []domain.Trade{{TxnHash: "0x1"}},
		Watermark: 1700000000000,
	}}

	out := run(t, Deps{Scraper: runner}, "scrape\nexit\n")
	if runner.calls != 1 {
		t.Errorf("scraper ran %d times, want 1", runner.calls)
	}
	if !strings.Contains(out, "1 new trades") {
		t.Errorf("missing run summary in output:\n%s", out)
	}
}

func TestMenuEnrichCommands(t *testing.T) {
	out := run(t, Deps{Enricher: &fakeEnricher{wallets: 4, nodes: 2}},
		"fetch_wallets\nupdate_nodes\nexit\n")
	if !strings.Contains(out, "processed 4 trades") {
		t.Errorf("missing fetch_wallets summary:\n%s", out)
	}
	if !strings.Contains(out, "updated 2 wallets") {
		t.Errorf("missing update_nodes summary:\n%s", out)
	}
}

func TestMenuSortDataJSON(t *testing.T) {
	engine := query.NewEngine(memSnapshot{
		{TxnHash: "0x1", Side: domain.SideSell, PriceUSD: 3.7},
		{TxnHash: "0x2", Side: domain.SideSell, PriceUSD: 3.2},
		{TxnHash: "0x3", Side: domain.SideBuy, PriceUSD: 8.9},
	})

	out := run(t, Deps{Engine: engine}, "sort_data priceUsd trunc\nexit\n")
	if !strings.Contains(out, `"price": 3`) || !strings.Contains(out, `"times_found": 2`) {
		t.Errorf("truncated sell-side frequency missing:\n%s", out)
	}
	if !strings.Contains(out, `"price": 8`) {
		t.Errorf("truncated buy-side frequency missing:\n%s", out)
	}
}

func TestMenuRangeAndOrder(t *testing.T) {
	engine := query.NewEngine(memSnapshot{
		{TxnHash: "0x1", Side: domain.SideBuy, VolumeUSD: 10},
		{TxnHash: "0x2", Side: domain.SideSell, VolumeUSD: 30},
	})

	out := run(t, Deps{Engine: engine}, "range volumeUsd 5 15\norder volumeUsd desc\nexit\n")
	if !strings.Contains(out, "1 trades") {
		t.Errorf("range result count missing:\n%s", out)
	}
	if !strings.Contains(out, "2 trades") {
		t.Errorf("order result count missing:\n%s", out)
	}
}

func TestMenuErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown command", "frobnicate\nexit\n", "unknown command"},
		{"missing scraper", "scrape\nexit\n", "scraper not configured"},
		{"bad field", "range nope 1 2\nexit\n", "error:"},
		{"bad direction", "order priceUsd sideways\nexit\n", "error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, Deps{Engine: query.NewEngine(memSnapshot{})}, tt.script)
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}
