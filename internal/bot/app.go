// Package bot wires the vending service to the Telegram runtime: commands,
// callback flows, conversations, and outbound notifications.
package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/MellowIQ3/zi-hanki/core/config"
	tg "github.com/MellowIQ3/zi-hanki/core/telegram"
	tghelpers "github.com/MellowIQ3/zi-hanki/core/telegram/helpers"
	"github.com/MellowIQ3/zi-hanki/core/telegram/router"
	"github.com/MellowIQ3/zi-hanki/core/telegram/state"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// Handlers groups everything command, callback, and state handlers need.
type Handlers struct {
	svc *vending.Service
	fsm state.Manager

	adminID      int64
	approvalChat int64
	proofPrefix  string
}

// App is the assembled bot application.
type App struct {
	cfg       *coreconfig.Config
	svc       *vending.Service
	messenger *Messenger
	handlers  *Handlers
}

// New assembles the application from config plus an already-opened store.
func New(cfg *coreconfig.Config, st vending.Store) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	messenger := NewMessenger(cfg.Vending)
	svc := vending.New(st, vending.Options{
		Notifier:            messenger,
		Display:             messenger,
		Proof:               vending.PrefixValidator(cfg.Vending.ProofPrefix),
		ApproveIgnoresStock: cfg.Vending.ApproveIgnoresStock,
	})
	handlers := &Handlers{
		svc:          svc,
		fsm:          state.NewMemoryManager(),
		adminID:      cfg.Telegram.AdminID,
		approvalChat: cfg.Vending.ApprovalChatID,
		proofPrefix:  cfg.Vending.ProofPrefix,
	}
	return &App{
		cfg:       cfg,
		svc:       svc,
		messenger: messenger,
		handlers:  handlers,
	}, nil
}

// Service exposes the vending service, mainly for diagnostics and tests.
func (a *App) Service() *vending.Service {
	return a.svc
}

// TelegramRunOptions builds the full bot runtime: registry, middleware chain,
// routes, and the lifecycle hooks that bind the messenger to the live bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.handlers.registerCommands(reg)
	a.handlers.registerCallbacks(reg)
	a.handlers.registerStates()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "Operator commands are restricted.")
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.handlers.fsm, reg, router.TextOptions{
		UnknownText: func(c tele.Context) error {
			return tghelpers.SendText(c, "Unknown command, see /help.")
		},
	})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.messenger.Bind(rt.Bot, rt.Dispatcher)
			return nil
		},
		OnStop: func(_ context.Context, _ tg.Runtime) error {
			a.messenger.Unbind()
			return nil
		},
	}, nil
}
