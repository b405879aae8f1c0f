package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/backend"
	"github.com/suspectuso/green-coin/internal/config"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
	"github.com/suspectuso/green-coin/internal/view"
)

// origin of the identity used by this terminal client
const origin = "cli"

const usage = `Usage: dashboard [flags] <command> [args]

Commands:
  status                          show wallets and community stats
  register <username>             create an account
  act <action_type>               log an action (close_tabs, efficient_drive, ai_optimize, server_optimize)
  redeem <wallet> <amount> [type] redeem coins (wallet: money|points, type: cash|gift_card|carbon_offset)
  leaderboard                     show the top savers
  history                         show your recent actions

Flags:
`

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	apiURL := flag.String("api", cfg.APIBaseURL, "Green Coin API base URL")
	measured := flag.Bool("measured", cfg.MetadataSource == config.SourceMeasured, "measure action metadata on this host")
	limit := flag.Int("limit", cfg.HistoryLimit, "number of history entries")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	if envErr != nil {
		log.Debug("no .env file found")
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	api := greencoin.NewClient(*apiURL,
		greencoin.WithTimeout(cfg.APITimeout),
		greencoin.WithRateLimit(cfg.APIRPS, cfg.APIBurst),
	)
	ctrl := session.New(api, store.Store(origin), session.WithLogger(log))

	var source actions.Source = actions.NewRandom(uint64(time.Now().UnixNano()))
	if *measured {
		source = actions.NewMeasured(source)
	}

	app := &app{ctrl: ctrl, source: source, historyLimit: *limit}
	if err := app.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	ctrl         *session.Controller
	source       actions.Source
	historyLimit int
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	warnings, err := a.ctrl.Load(ctx)
	if err != nil {
		return err
	}

	if cmd == "register" {
		if len(args) != 1 {
			return errors.New("register needs a username")
		}
		warnings, err = a.ctrl.Register(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Registered as %s\n\n", args[0])
		return a.show(ctx, session.ModeDashboard, warnings)
	}

	if !a.ctrl.Snapshot().Registered() {
		return errors.New("no account yet, run: dashboard register <username>")
	}

	switch cmd {
	case "status":
		return a.show(ctx, session.ModeDashboard, warnings)
	case "leaderboard":
		return a.show(ctx, session.ModeLeaderboard, warnings)
	case "history":
		return a.show(ctx, session.ModeHistory, warnings)
	case "act":
		return a.act(ctx, args)
	case "redeem":
		return a.redeem(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) act(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("act needs an action type")
	}

	sub, err := actions.Submission(ctx, a.source, args[0])
	if err != nil {
		return err
	}

	out, err := a.ctrl.SubmitAction(ctx, sub)
	if err != nil {
		return err
	}

	r := out.Result
	fmt.Printf("✅ %s\n💰 +%s GreenCoins\n🔥 Streak: %d days\n\n", r.Message, r.CoinsMinted.StringFixed(2), r.StreakDays)
	return a.show(ctx, session.ModeDashboard, out.Warnings)
}

func (a *app) redeem(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("redeem needs a wallet and an amount")
	}

	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	kind := greencoin.RedeemCash
	if len(args) > 2 {
		kind = args[2]
	}

	out, err := a.ctrl.Redeem(ctx, greencoin.Redemption{
		WalletType:     args[0],
		Amount:         amount,
		RedemptionType: kind,
	})
	if err != nil {
		return err
	}

	r := out.Result
	fmt.Printf("🎁 Redeemed %s coins, you receive $%s\n\n", r.CoinsRedeemed.StringFixed(2), r.YouReceive.StringFixed(2))
	return a.show(ctx, session.ModeDashboard, out.Warnings)
}

func (a *app) show(ctx context.Context, mode session.Mode, warnings []session.Warning) error {
	if err := a.ctrl.SelectView(mode); err != nil {
		return err
	}

	snap := a.ctrl.Snapshot()
	m := view.Select(snap, snap.Mode)
	if m.Kind == view.KindHistory {
		entries, err := a.ctrl.LoadHistory(ctx, a.historyLimit)
		if err != nil {
			return err
		}
		m = m.WithHistory(entries)
	}

	fmt.Print(render(m))
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	return nil
}

func render(m view.Model) string {
	var b strings.Builder

	switch m.Kind {
	case view.KindRegistration:
		if m.Resumable {
			fmt.Fprintf(&b, "Account %s could not be loaded. Retry, or register again.\n", m.UserID)
		} else {
			b.WriteString("Not registered.\n")
		}

	case view.KindDashboard, view.KindActions:
		fmt.Fprintf(&b, "%s\n", m.Username)
		fmt.Fprintf(&b, "  money   %10s coins  $%s\n", m.Wallets.Money.BalanceCoins.StringFixed(2), m.Wallets.Money.BalanceUSD.StringFixed(2))
		fmt.Fprintf(&b, "  points  %10s coins  $%s\n", m.Wallets.Points.BalanceCoins.StringFixed(2), m.Wallets.Points.BalanceUSD.StringFixed(2))
		fmt.Fprintf(&b, "  CO2 saved %.2f kg, streak %d, actions %d\n", m.Stats.TotalCO2SavedKg, m.Stats.CurrentStreakDays, m.Stats.ActionsCount)
		if g := m.Global; g != nil {
			fmt.Fprintf(&b, "community: %d users, %.2f kg CO2, %.1f trees, %s coins minted\n",
				g.TotalUsers, g.TotalCO2SavedKg, g.TreesEquivalent, g.TotalCoinsMinted.StringFixed(2))
		}

	case view.KindLeaderboard:
		if len(m.Rows) == 0 {
			b.WriteString("Leaderboard is empty.\n")
		}
		for _, r := range m.Rows {
			place := r.Medal
			if !r.Podium {
				place = fmt.Sprintf("#%d", r.Rank)
			}
			self := ""
			if r.Self {
				self = " (you)"
			}
			fmt.Fprintf(&b, "%-4s %-16s %8.2f kg %10s coins  streak %d%s\n",
				place, r.Username, r.CO2SavedKg, r.TotalCoins.StringFixed(2), r.StreakDays, self)
		}

	case view.KindHistory:
		if len(m.History) == 0 {
			b.WriteString("No actions logged yet.\n")
		}
		for _, h := range m.History {
			fmt.Fprintf(&b, "%s  %-16s +%s coins  %.2f kg\n", h.Timestamp, h.ActionType, h.CoinsMinted.StringFixed(2), h.CO2SavedKg)
		}
	}

	return b.String()
}
