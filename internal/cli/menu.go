// Package cli implements the interactive analysis menu. It drives the
// same components the headless modes do, but from a terminal prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
	"github.com/theimperious1/VaporAnalyzer/internal/pipeline"
	"github.com/theimperious1/VaporAnalyzer/internal/query"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// Enricher runs the wallet enrichment jobs.
type Enricher interface {
	FetchWallets(ctx context.Context) (int, error)
	UpdateNodes(ctx context.Context) (int, error)
}

// Deps are the components the menu can drive. Any nil field disables
// the corresponding commands.
type Deps struct {
	Scraper  Runner
	Enricher Enricher
	Engine   *query.Engine
	Logger   *slog.Logger
}

// Menu reads commands from In and writes results to Out.
type Menu struct {
	deps Deps
	in   io.Reader
	out  io.Writer
}

// New creates a Menu over the given streams.
func New(deps Deps, in io.Reader, out io.Writer) *Menu {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Menu{deps: deps, in: in, out: out}
}

const usage = `commands:
  scrape         run one ingestion pass
  fetch_wallets  resolve sender wallets for stored trades
  update_nodes   refresh node holdings for known wallets
  range          trades with a field inside [lo, hi]
  order          trades sorted by a field
  sort_data      frequency table per side, JSON output
  help           show this message
  exit           quit
`

// Run processes commands until exit, EOF, or context cancellation.
func (m *Menu) Run(ctx context.Context) error {
	fmt.Fprint(m.out, usage)

	scanner := bufio.NewScanner(m.in)
	for {
		fmt.Fprint(m.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}

		var err error
		switch cmd := args[0]; cmd {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprint(m.out, usage)
		case "scrape", "scrape_once":
			err = m.scrape(ctx)
		case "fetch_wallets":
			err = m.fetchWallets(ctx)
		case "update_nodes":
			err = m.updateNodes(ctx)
		case "range":
			err = m.rangeQuery(args[1:])
		case "order":
			err = m.orderQuery(args[1:])
		case "sort_data":
			err = m.sortData(args[1:])
		default:
			fmt.Fprintf(m.out, "unknown command %q, try help\n", cmd)
		}
		if err != nil {
			fmt.Fprintf(m.out, "error: %v\n", err)
		}
	}
}

func (m *Menu) scrape(ctx context.Context) error {
	if m.deps.Scraper == nil {
		return errors.New("scraper not configured")
	}
	report, err := m.deps.Scraper.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "%s: %d pages, %d new trades, watermark %d\n",
		report.Outcome, report.Pages, len(report.Inserted), report.Watermark)
	return nil
}

func (m *Menu) fetchWallets(ctx context.Context) error {
	if m.deps.Enricher == nil {
		return errors.New("enricher not configured")
	}
	n, err := m.deps.Enricher.FetchWallets(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "processed %d trades\n", n)
	return nil
}

func (m *Menu) updateNodes(ctx context.Context) error {
	if m.deps.Enricher == nil {
		return errors.New("enricher not configured")
	}
	n, err := m.deps.Enricher.UpdateNodes(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "updated %d wallets\n", n)
	return nil
}

// rangeQuery handles "range <field> <lo> <hi>".
func (m *Menu) rangeQuery(args []string) error {
	if m.deps.Engine == nil {
		return errors.New("query engine not configured")
	}
	if len(args) != 3 {
		return errors.New("usage: range <field> <lo> <hi>")
	}
	field, err := domain.ParseField(args[0])
	if err != nil {
		return err
	}
	lo, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bad lower bound %q", args[1])
	}
	hi, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad upper bound %q", args[2])
	}

	trades, err := m.deps.Engine.Range(field, lo, hi)
	if err != nil {
		return err
	}
	m.printTrades(field, trades)
	return nil
}

// orderQuery handles "order <field> [asc|desc]".
func (m *Menu) orderQuery(args []string) error {
	if m.deps.Engine == nil {
		return errors.New("query engine not configured")
	}
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: order <field> [asc|desc]")
	}
	field, err := domain.ParseField(args[0])
	if err != nil {
		return err
	}
	dir := query.Asc
	if len(args) == 2 {
		if dir, err = query.ParseDirection(args[1]); err != nil {
			return err
		}
	}

	trades, err := m.deps.Engine.OrderBy(field, dir)
	if err != nil {
		return err
	}
	m.printTrades(field, trades)
	return nil
}

// sortData handles "sort_data <field> [round <decimals>|trunc] [limit]".
// Output is one JSON document per side with price/times_found entries.
func (m *Menu) sortData(args []string) error {
	if m.deps.Engine == nil {
		return errors.New("query engine not configured")
	}
	if len(args) < 1 {
		return errors.New("usage: sort_data <field> [round <decimals>|trunc] [limit <n>]")
	}
	field, err := domain.ParseField(args[0])
	if err != nil {
		return err
	}

	rounding := query.Truncate()
	limit := 0
	for rest := args[1:]; len(rest) > 0; {
		switch rest[0] {
		case "trunc":
			rounding = query.Truncate()
			rest = rest[1:]
		case "round":
			if len(rest) < 2 {
				return errors.New("round needs a decimals argument")
			}
			decimals, err := strconv.Atoi(rest[1])
			if err != nil {
				return fmt.Errorf("bad decimals %q", rest[1])
			}
			rounding = query.RoundTo(decimals)
			rest = rest[2:]
		case "limit":
			if len(rest) < 2 {
				return errors.New("limit needs a count argument")
			}
			if limit, err = strconv.Atoi(rest[1]); err != nil {
				return fmt.Errorf("bad limit %q", rest[1])
			}
			rest = rest[2:]
		default:
			return fmt.Errorf("unknown option %q", rest[0])
		}
	}

	sell, buy, err := m.deps.Engine.MostCommonBySide(field, rounding, limit)
	if err != nil {
		return err
	}

	out := struct {
		Sell []query.FreqEntry `json:"sell"`
		Buy  []query.FreqEntry `json:"buy"`
	}{Sell: sell, Buy: buy}

	enc := json.NewEncoder(m.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (m *Menu) printTrades(field domain.Field, trades []domain.Trade) {
	for _, t := range trades {
		fmt.Fprintf(m.out, "%s  %s  %s=%v\n", t.TxnHash, t.Side, field, field.Value(t))
	}
	fmt.Fprintf(m.out, "%d trades\n", len(trades))
}
