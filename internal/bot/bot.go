package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"polyscout/internal/notify"
	"polyscout/internal/repository"
	"polyscout/internal/session"
	"polyscout/internal/settings"
)

const helpText = `*Commands*
/scan [query] - start the scan loop (query searches the catalog)
/stop - stop the scan loop
/status - show the running scan's last round
/settings - show effective settings
/setprice <p> - set the No price threshold
/setsize <n> - set the order size in shares
/incsize <n> - add to the order size
/setsell <p> - set the sell target
/setauto on|off - toggle automatic order placement
/monitor <conditionId> [tokenId] [seconds] [pollSeconds] - watch one market's fills
/stopmonitor - end the monitor early
/orders - show recent order attempts`

// Bot dispatches chat commands to the session registry and settings
// store. Only allow-listed chats are served; everything else is
// silently dropped.
type Bot struct {
	API      *telego.Bot
	Registry *session.Registry
	Settings *settings.Store
	Repo     repository.Repository
	Notifier notify.Notifier
	Logger   *zap.Logger

	AllowedChats    []int64
	MonitorDuration time.Duration
	MonitorPoll     time.Duration
}

// Run consumes updates until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.API.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("bot: long polling: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	if len(b.AllowedChats) == 0 {
		return true
	}
	for _, id := range b.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) handle(ctx context.Context, msg *telego.Message) {
	chatID := msg.Chat.ID
	if !b.allowed(chatID) {
		if b.Logger != nil {
			b.Logger.Warn("dropped message from unlisted chat", zap.Int64("chat_id", chatID))
		}
		return
	}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start", "/help":
		b.reply(ctx, chatID, helpText)
	case "/scan":
		b.cmdScan(ctx, chatID, args)
	case "/stop":
		b.cmdStop(ctx, chatID)
	case "/status":
		b.cmdStatus(ctx, chatID)
	case "/settings":
		b.cmdSettings(ctx, chatID)
	case "/setprice":
		b.applyFloat(ctx, chatID, args, "price threshold", func(v float64) settings.Patch {
			return settings.Patch{PriceThreshold: &v}
		})
	case "/setsize":
		b.applyFloat(ctx, chatID, args, "order size", func(v float64) settings.Patch {
			return settings.Patch{OrderSize: &v}
		})
	case "/incsize":
		b.cmdIncSize(ctx, chatID, args)
	case "/setsell":
		b.applyFloat(ctx, chatID, args, "sell target", func(v float64) settings.Patch {
			return settings.Patch{SellTarget: &v}
		})
	case "/setauto":
		b.cmdSetAuto(ctx, chatID, args)
	case "/monitor":
		b.cmdMonitor(ctx, chatID, args)
	case "/stopmonitor":
		b.cmdStopMonitor(ctx, chatID)
	case "/orders":
		b.cmdOrders(ctx, chatID)
	default:
		b.reply(ctx, chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) cmdScan(ctx context.Context, chatID int64, args []string) {
	query := strings.Join(args, " ")
	if b.Registry.StartScan(ctx, chatID, query) {
		if query == "" {
			b.reply(ctx, chatID, "🔍 Scan started over the full catalog.")
		} else {
			b.reply(ctx, chatID, fmt.Sprintf("🔍 Scan started for %q.", query))
		}
		return
	}
	b.reply(ctx, chatID, "A scan is already running. /stop it first to change the query.")
}

func (b *Bot) cmdStop(ctx context.Context, chatID int64) {
	if b.Registry.StopScan(chatID) {
		b.reply(ctx, chatID, "🛑 Scan stopped.")
		return
	}
	b.reply(ctx, chatID, "No scan is running.")
}

func (b *Bot) cmdStatus(ctx context.Context, chatID int64) {
	st, ok := b.Registry.ScanState(chatID)
	if !ok {
		b.reply(ctx, chatID, "No scan is running. Start one with /scan.")
		return
	}
	var sb strings.Builder
	sb.WriteString("*Scan status*\n")
	if st.Query != "" {
		fmt.Fprintf(&sb, "query: %q\n", st.Query)
	}
	fmt.Fprintf(&sb, "running since: %s\n", st.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "rounds: %d\n", st.Iterations)
	if !st.LastRun.IsZero() {
		fmt.Fprintf(&sb, "last round: %s (%d markets, %d hits via %s)\n",
			st.LastRun.Format(time.RFC3339), st.LastScanned, st.LastFound, st.LastSource)
	}
	if st.OrdersPlaced > 0 {
		fmt.Fprintf(&sb, "orders placed: %d\n", st.OrdersPlaced)
	}
	if st.LastError != "" {
		fmt.Fprintf(&sb, "last error: %s\n", truncate(st.LastError, 200))
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) cmdSettings(ctx context.Context, chatID int64) {
	cfg, err := b.Settings.Get(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, "Could not load settings: "+err.Error())
		return
	}
	b.reply(ctx, chatID, session.FormatSettings(cfg))
}

func (b *Bot) applyFloat(ctx context.Context, chatID int64, args []string, name string, patch func(float64) settings.Patch) {
	if len(args) != 1 {
		b.reply(ctx, chatID, fmt.Sprintf("Usage: give one number for the %s.", name))
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || v <= 0 {
		b.reply(ctx, chatID, fmt.Sprintf("The %s must be a positive number.", name))
		return
	}
	cfg, err := b.Settings.Apply(ctx, chatID, patch(v))
	if err != nil {
		b.reply(ctx, chatID, "Could not save: "+err.Error())
		return
	}
	b.reply(ctx, chatID, session.FormatSettings(cfg))
}

func (b *Bot) cmdIncSize(ctx context.Context, chatID int64, args []string) {
	delta := 10.0
	if len(args) == 1 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			b.reply(ctx, chatID, "Usage: /incsize <number>")
			return
		}
		delta = v
	}
	cfg, err := b.Settings.IncrementOrderSize(ctx, chatID, delta)
	if err != nil {
		b.reply(ctx, chatID, "Could not save: "+err.Error())
		return
	}
	b.reply(ctx, chatID, session.FormatSettings(cfg))
}

func (b *Bot) cmdSetAuto(ctx context.Context, chatID int64, args []string) {
	if len(args) != 1 {
		b.reply(ctx, chatID, "Usage: /setauto on|off")
		return
	}
	var on bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1", "yes":
		on = true
	case "off", "false", "0", "no":
		on = false
	default:
		b.reply(ctx, chatID, "Usage: /setauto on|off")
		return
	}
	cfg, err := b.Settings.Apply(ctx, chatID, settings.Patch{AutoPlace: &on})
	if err != nil {
		b.reply(ctx, chatID, "Could not save: "+err.Error())
		return
	}
	b.reply(ctx, chatID, session.FormatSettings(cfg))
}

func (b *Bot) cmdMonitor(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Usage: /monitor <conditionId> [tokenId] [seconds] [pollSeconds]")
		return
	}
	conditionID := args[0]
	tokenID := ""
	if len(args) >= 2 {
		tokenID = args[1]
	}
	duration := b.MonitorDuration
	if len(args) >= 3 {
		secs, err := strconv.Atoi(args[2])
		if err != nil || secs <= 0 {
			b.reply(ctx, chatID, "Invalid duration.")
			return
		}
		duration = time.Duration(secs) * time.Second
	}
	poll := b.MonitorPoll
	if len(args) >= 4 {
		secs, err := strconv.Atoi(args[3])
		if err != nil || secs <= 0 {
			b.reply(ctx, chatID, "Invalid poll interval.")
			return
		}
		poll = time.Duration(secs) * time.Second
	}
	if b.Registry.StartMonitor(ctx, chatID, conditionID, tokenID, duration, poll) {
		return
	}
	b.reply(ctx, chatID, "A monitor is already running. /stopmonitor to end it.")
}

func (b *Bot) cmdStopMonitor(ctx context.Context, chatID int64) {
	if b.Registry.StopMonitor(chatID) {
		b.reply(ctx, chatID, "Monitor stopped.")
		return
	}
	b.reply(ctx, chatID, "No monitor is running.")
}

func (b *Bot) cmdOrders(ctx context.Context, chatID int64) {
	recs, err := b.Repo.ListOrderRecords(ctx, chatID, 10)
	if err != nil {
		b.reply(ctx, chatID, "Could not load orders: "+err.Error())
		return
	}
	if len(recs) == 0 {
		b.reply(ctx, chatID, "No orders recorded yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("*Recent orders*\n")
	for _, r := range recs {
		fmt.Fprintf(&sb, "\n%s %s %s @ %s [%s]",
			r.Side, r.Size.String(), r.Outcome, r.Price.String(), r.Status)
		if r.Slug != "" {
			fmt.Fprintf(&sb, "\n  %s", r.Slug)
		}
		if r.ErrorText != "" {
			fmt.Fprintf(&sb, "\n  %s", truncate(r.ErrorText, 120))
		}
	}
	b.reply(ctx, chatID, sb.String())
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.Notifier.Send(ctx, chatID, text); err != nil && b.Logger != nil {
		b.Logger.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
