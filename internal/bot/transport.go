package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/MellowIQ3/zi-hanki/core/config"
	"github.com/MellowIQ3/zi-hanki/core/telegram/keyboard"
	"github.com/MellowIQ3/zi-hanki/core/telegram/sender"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// ErrNotBound is returned for outbound sends before the bot runtime is up.
var ErrNotBound = errors.New("bot: messenger not bound to a running bot")

type binding struct {
	bot        *tele.Bot
	dispatcher *sender.Dispatcher
}

// Messenger delivers vending events over Telegram. It implements both
// vending.Notifier and vending.DisplayUpdater. The bot handle only exists
// once the runtime starts, so the binding is installed from the OnStart hook
// and swapped atomically.
type Messenger struct {
	approvalChat    int64
	achievementChat int64

	bound atomic.Pointer[binding]
}

// NewMessenger creates a Messenger targeting the configured operator chats.
func NewMessenger(cfg coreconfig.VendingConfig) *Messenger {
	return &Messenger{
		approvalChat:    cfg.ApprovalChatID,
		achievementChat: cfg.AchievementChatID,
	}
}

// Bind installs the live bot and outbound dispatcher.
func (m *Messenger) Bind(bot *tele.Bot, d *sender.Dispatcher) {
	m.bound.Store(&binding{bot: bot, dispatcher: d})
}

// Unbind drops the live binding; subsequent sends fail with ErrNotBound.
func (m *Messenger) Unbind() {
	m.bound.Store(nil)
}

// send enqueues an outbound call on the dispatcher, falling back to a direct
// call when the queue is saturated so lifecycle events are never dropped.
func (m *Messenger) send(ctx context.Context, action string, run func(*tele.Bot) error) error {
	b := m.bound.Load()
	if b == nil || b.bot == nil {
		return ErrNotBound
	}
	job := func() error { return run(b.bot) }
	if b.dispatcher == nil {
		return job()
	}
	if err := b.dispatcher.Enqueue(ctx, action, "sendMessage", job); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			return job()
		}
		return err
	}
	return nil
}

// NotifyPurchase delivers the receipt, payload included, to the buyer's DM.
func (m *Messenger) NotifyPurchase(ctx context.Context, r vending.Receipt) error {
	text := receiptText(r)
	return m.send(ctx, "notify.purchase", func(bot *tele.Bot) error {
		_, err := bot.Send(&tele.User{ID: r.BuyerID}, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		return err
	})
}

// NotifyAchievement posts the purchase record to the achievement chat.
// A zero chat ID disables achievement records entirely.
func (m *Messenger) NotifyAchievement(ctx context.Context, r vending.Receipt) error {
	if m.achievementChat == 0 {
		return nil
	}
	text := achievementText(r)
	return m.send(ctx, "notify.achievement", func(bot *tele.Bot) error {
		_, err := bot.Send(&tele.Chat{ID: m.achievementChat}, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		return err
	})
}

// NotifyDenied informs the buyer their request was rejected.
func (m *Messenger) NotifyDenied(ctx context.Context, req vending.ApprovalRequest) error {
	text := deniedText(req)
	return m.send(ctx, "notify.denied", func(bot *tele.Bot) error {
		_, err := bot.Send(&tele.User{ID: req.BuyerID}, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		return err
	})
}

// RequestDecision posts the pending request to the approval chat with
// approve/deny buttons carrying the request ID.
func (m *Messenger) RequestDecision(ctx context.Context, req vending.ApprovalRequest, price int) error {
	text := approvalRequestText(req, price)
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Approve", Unique: cbApprove, Data: req.ID},
		{Text: "🚫 Deny", Unique: cbDeny, Data: req.ID},
	})
	return m.send(ctx, "request.decision", func(bot *tele.Bot) error {
		_, err := bot.Send(&tele.Chat{ID: m.approvalChat}, text,
			&tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup})
		return err
	})
}

// UpdateDisplay edits one registered summary message in place.
func (m *Messenger) UpdateDisplay(ctx context.Context, machine string, ref vending.DisplayRef, rows []vending.Row) error {
	text := summaryText(machine, rows)
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
	return m.send(ctx, "display.update", func(bot *tele.Bot) error {
		_, err := bot.Edit(stored, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		if err != nil && errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("edit %d/%d: %w", ref.ChatID, ref.MessageID, err)
		}
		return nil
	})
}
