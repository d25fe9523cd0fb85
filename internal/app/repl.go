package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Lumaria/Bot-Extended/internal/domain"
	"github.com/Lumaria/Bot-Extended/internal/infra"
	"github.com/Lumaria/Bot-Extended/internal/service"
	"github.com/Lumaria/Bot-Extended/internal/strategy"

	"github.com/shopspring/decimal"
)

type streamControl interface {
	StartStreams(ctx context.Context, markets []string) []string
	StopStreams(markets []string)
	ActiveMarkets() []string
}

type operatorStore interface {
	AddWatchedMarket(name string) error
	RemoveWatchedMarket(name string) error
	ClearWatchlist() error
	SaveConfig(key, value string) error
	LoadConfigMap() (map[string]string, error)
}

type marketCatalog interface {
	Get(ctx context.Context, market string) (domain.MarketMetadata, bool)
	List(ctx context.Context, topN int) []domain.MarketMetadata
}

type accountOps interface {
	Positions(ctx context.Context, market string) ([]service.PositionView, error)
	CancelAllOrders(ctx context.Context) error
}

// Persisted operator settings.
const configKeyMarketsTopN = "markets_top_n"

const defaultMarketsTopN = 10

// REPL is the interactive operator console. One command per line; every
// command failure is printed and the loop continues.
type REPL struct {
	streams   streamControl
	watchlist operatorStore
	markets   marketCatalog
	account   accountOps
	strategy  strategy.Strategy

	marketsTopN int

	in  io.Reader
	out io.Writer
}

// NewREPL builds the console over the bootstrapped object graph and
// restores persisted settings.
func NewREPL(b *Bootstrap, in io.Reader, out io.Writer) *REPL {
	r := &REPL{
		streams:   b.Supervisor,
		watchlist: b.Storage,
		markets:   b.Metadata,
		account:   b.Account,
		strategy:  b.Strategy,
		in:        in,
		out:       out,
	}
	r.loadSettings()
	return r
}

// loadSettings applies saved operator settings over the defaults.
func (r *REPL) loadSettings() {
	r.marketsTopN = defaultMarketsTopN
	settings, err := r.watchlist.LoadConfigMap()
	if err != nil {
		return
	}
	if n, err := strconv.Atoi(settings[configKeyMarketsTopN]); err == nil && n > 0 {
		r.marketsTopN = n
	}
}

// Run reads commands until EOF, an exit command, or context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Bot Extended console. Type 'help' for commands.")

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if r.execute(ctx, line) {
			return nil
		}
	}
}

// execute runs one command line; true means the console should exit.
func (r *REPL) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "exit", "quit":
		return true

	case "help":
		r.printHelp()

	case "load?":
		r.printActive()

	case "load":
		r.load(ctx, fields[1:])

	case "unload":
		r.unload(fields[1:])

	case "markets":
		r.printMarkets(ctx, fields[1:])

	case "stats":
		r.printStats()

	case "position", "positions":
		r.printPositions(ctx, fields[1:])

	case "close":
		if len(fields) == 2 && strings.EqualFold(fields[1], "all") {
			if err := r.account.CancelAllOrders(ctx); err != nil {
				fmt.Fprintf(r.out, "cancel failed: %v\n", err)
			} else {
				fmt.Fprintln(r.out, "all open orders cancelled")
			}
		} else {
			fmt.Fprintln(r.out, "usage: close all")
		}

	default:
		// Anything else is an order: <market> <bb|ba> <notional usd>
		r.placeOrder(ctx, fields)
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `commands:
  load <market>...        start streaming quotes for markets
  load?                   list streaming markets
  unload <market>|ALL     stop streaming
  markets [N]             top markets by daily volume
  position [market]       open positions
  <market> bb|ba <usd>    place post-only order at best bid/ask
  close all               cancel every open order
  stats                   stream and order counters
  exit                    quit
`)
}

func (r *REPL) printStats() {
	s := infra.GlobalMetrics.Snapshot()
	fmt.Fprintf(r.out, "streams %d  quotes applied %d  dropped %d  reconnects %d  orders placed %d  rejected %d\n",
		s.ActiveStreams, s.QuotesApplied, s.QuotesDropped, s.Reconnects, s.OrdersPlaced, s.OrdersRejected)
}

func (r *REPL) printActive() {
	active := r.streams.ActiveMarkets()
	if len(active) == 0 {
		fmt.Fprintln(r.out, "no active streams")
		return
	}
	fmt.Fprintln(r.out, strings.Join(active, " "))
}

func (r *REPL) load(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(r.out, "usage: load <market>...")
		return
	}

	markets := make([]string, 0, len(args))
	for _, a := range args {
		m := normalizeMarket(a)
		if _, ok := r.markets.Get(ctx, m); !ok {
			fmt.Fprintf(r.out, "unknown market %s\n", m)
			continue
		}
		markets = append(markets, m)
	}
	if len(markets) == 0 {
		return
	}

	r.streams.StartStreams(ctx, markets)
	for _, m := range markets {
		if err := r.watchlist.AddWatchedMarket(m); err != nil {
			fmt.Fprintf(r.out, "watchlist save failed for %s: %v\n", m, err)
		}
	}
	fmt.Fprintf(r.out, "streaming %s\n", strings.Join(markets, " "))
}

func (r *REPL) unload(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(r.out, "usage: unload <market>|ALL")
		return
	}

	if strings.EqualFold(args[0], "all") {
		active := r.streams.ActiveMarkets()
		r.streams.StopStreams(active)
		if err := r.watchlist.ClearWatchlist(); err != nil {
			fmt.Fprintf(r.out, "watchlist clear failed: %v\n", err)
		}
		fmt.Fprintln(r.out, "all streams stopped")
		return
	}

	markets := make([]string, 0, len(args))
	for _, a := range args {
		markets = append(markets, normalizeMarket(a))
	}
	r.streams.StopStreams(markets)
	for _, m := range markets {
		if err := r.watchlist.RemoveWatchedMarket(m); err != nil {
			fmt.Fprintf(r.out, "watchlist remove failed for %s: %v\n", m, err)
		}
	}
	fmt.Fprintf(r.out, "stopped %s\n", strings.Join(markets, " "))
}

func (r *REPL) printMarkets(ctx context.Context, args []string) {
	topN := r.marketsTopN
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(r.out, "usage: markets [N]")
			return
		}
		topN = n
		// An explicit N becomes the new default across sessions.
		if n != r.marketsTopN {
			r.marketsTopN = n
			if err := r.watchlist.SaveConfig(configKeyMarketsTopN, strconv.Itoa(n)); err != nil {
				fmt.Fprintf(r.out, "settings save failed: %v\n", err)
			}
		}
	}

	list := r.markets.List(ctx, topN)
	if len(list) == 0 {
		fmt.Fprintln(r.out, "no market data available")
		return
	}
	for _, m := range list {
		fmt.Fprintf(r.out, "%-14s last %-14s vol %s\n", m.Name, m.LastPrice, m.DailyVolume)
	}
}

func (r *REPL) printPositions(ctx context.Context, args []string) {
	market := ""
	if len(args) > 0 {
		market = normalizeMarket(args[0])
	}

	positions, err := r.account.Positions(ctx, market)
	if err != nil {
		fmt.Fprintf(r.out, "positions failed: %v\n", err)
		return
	}
	if len(positions) == 0 {
		fmt.Fprintln(r.out, "no open positions")
		return
	}
	for _, p := range positions {
		fmt.Fprintf(r.out, "%-14s %-5s size %-12s open %-12s mark %-12s upnl %s\n",
			p.Market, p.Side, p.Size, p.OpenPrice, p.DisplayPrice, p.UnrealisedPnl)
	}
}

func (r *REPL) placeOrder(ctx context.Context, fields []string) {
	if len(fields) != 3 {
		fmt.Fprintln(r.out, "unknown command, type 'help'")
		return
	}

	side, err := domain.ParseSide(fields[1])
	if err != nil {
		fmt.Fprintln(r.out, "unknown command, type 'help'")
		return
	}

	notional, err := decimal.NewFromString(fields[2])
	if err != nil || notional.Sign() <= 0 {
		fmt.Fprintf(r.out, "invalid notional %q\n", fields[2])
		return
	}

	market := normalizeMarket(fields[0])
	orderID, err := r.strategy.Execute(ctx, market, side, notional)
	if err != nil {
		fmt.Fprintf(r.out, "order failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "order %s placed on %s\n", orderID, market)
}

// normalizeMarket upper-cases the name and defaults the quote currency:
// "btc" becomes "BTC-USD", explicit pairs pass through unchanged.
func normalizeMarket(name string) string {
	market := strings.ToUpper(strings.TrimSpace(name))
	if !strings.Contains(market, "-") {
		market += "-USD"
	}
	return market
}
