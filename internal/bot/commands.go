package bot

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/MellowIQ3/zi-hanki/core/telegram"
	"github.com/MellowIQ3/zi-hanki/core/telegram/commands"
	tghelpers "github.com/MellowIQ3/zi-hanki/core/telegram/helpers"
	"github.com/MellowIQ3/zi-hanki/core/telegram/keyboard"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

const startText = `🤖 *Vending machine bot*

Use /vend to browse the machines and buy items.
Free items are dispensed immediately; paid items ask
for your payment link and wait for operator approval.`

const helpAdminText = `

*Operator commands*
/newmachine — create a machine
/additem — add an item to a machine
/removeitem — remove an item
/setstock — overwrite an item's stock
/senddisplay — post a self-updating machine summary here
/machines — list machines
/pending — list requests awaiting a decision`

// registerCommands wires all bot commands into the registry.
func (h *Handlers) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.cmdStart,
		Description: "What this bot does",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.cmdStart,
		Description: "Show usage",
		Hidden:      true,
	})
	reg.RegisterCommand("/vend", commands.Command{
		Handler:     h.cmdVend,
		Description: "Browse machines and buy",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.cmdCancel,
		Description: "Abort the current operation",
		Hidden:      true,
	})
	reg.RegisterCommand("/newmachine", commands.Command{
		Handler:     h.cmdNewMachine,
		Description: "Create a vending machine",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/additem", commands.Command{
		Handler:     h.machinePicker(actionAddItem, "Add an item to which machine?"),
		Description: "Add an item to a machine",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/removeitem", commands.Command{
		Handler:     h.machinePicker(actionRemoveItem, "Remove an item from which machine?"),
		Description: "Remove an item from a machine",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/setstock", commands.Command{
		Handler:     h.machinePicker(actionSetStock, "Set stock on which machine?"),
		Description: "Overwrite an item's stock",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/senddisplay", commands.Command{
		Handler:     h.machinePicker(actionSendDisplay, "Post a summary of which machine?"),
		Description: "Post a self-updating machine summary",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/machines", commands.Command{
		Handler:     h.cmdMachines,
		Description: "List machines",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/pending", commands.Command{
		Handler:     h.cmdPending,
		Description: "List requests awaiting a decision",
		AdminOnly:   true,
	})
}

func (h *Handlers) cmdStart(c tele.Context) error {
	text := startText
	if c.Sender() != nil && c.Sender().ID == h.adminID {
		text += helpAdminText
	}
	return tghelpers.SendMD(c, text)
}

func (h *Handlers) cmdCancel(c tele.Context) error {
	h.fsm.Clear(c.Sender().ID)
	return tghelpers.SendText(c, "Cancelled.")
}

// cmdVend shows the machine list as buttons; buyers pick from there.
func (h *Handlers) cmdVend(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	names, err := h.svc.Machines(ctx)
	if err != nil {
		return h.replyErr(c, err)
	}
	if len(names) == 0 {
		return tghelpers.SendText(c, "No machines are set up yet.")
	}
	btns := make([]keyboard.InlineBtn, 0, len(names))
	for _, name := range names {
		btns = append(btns, keyboard.InlineBtn{Text: "🛒 " + name, Unique: cbVendMachine, Data: name})
	}
	return tghelpers.SendMD(c, "Pick a machine:", keyboard.InlineButtonsNPerRow(btns, 2))
}

// machinePicker builds an admin command handler that asks which machine the
// given manage action targets.
func (h *Handlers) machinePicker(action, prompt string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		names, err := h.svc.Machines(ctx)
		if err != nil {
			return h.replyErr(c, err)
		}
		if len(names) == 0 {
			return tghelpers.SendText(c, "No machines yet. Use /newmachine first.")
		}
		btns := make([]keyboard.InlineBtn, 0, len(names))
		for _, name := range names {
			btns = append(btns, keyboard.InlineBtn{
				Text:   name,
				Unique: cbManageMachine,
				Data:   action + payloadSep + name,
			})
		}
		markup := keyboard.InlineButtonsNPerRow(btns, 2)
		markup.InlineKeyboard = append(markup.InlineKeyboard,
			[]tele.InlineButton{*keyboard.CancelButton(markup, cbCancel).Inline()})
		return tghelpers.SendMD(c, prompt, markup)
	}
}

func (h *Handlers) cmdNewMachine(c tele.Context) error {
	h.fsm.Set(c.Sender().ID, stAwaitMachineName)
	return tghelpers.SendText(c, "Name for the new machine?")
}

func (h *Handlers) cmdMachines(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	names, err := h.svc.Machines(ctx)
	if err != nil {
		return h.replyErr(c, err)
	}
	if len(names) == 0 {
		return tghelpers.SendText(c, "No machines yet.")
	}
	return tghelpers.SendText(c, "Machines:\n• "+strings.Join(names, "\n• "))
}

func (h *Handlers) cmdPending(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	pending, err := h.svc.PendingRequests(ctx)
	if err != nil {
		return h.replyErr(c, err)
	}
	if len(pending) == 0 {
		return tghelpers.SendText(c, "No pending requests.")
	}
	lines := make([]string, 0, len(pending))
	for _, req := range pending {
		lines = append(lines, pendingLineText(req))
	}
	return tghelpers.SendMD(c, "⏳ *Pending requests*\n\n"+strings.Join(lines, "\n"))
}

// replyErr maps domain errors to short user-facing messages.
func (h *Handlers) replyErr(c tele.Context, err error) error {
	switch {
	case errors.Is(err, vending.ErrNotFound):
		return tghelpers.SendText(c, "Not found. It may have been removed, check /vend.")
	case errors.Is(err, vending.ErrAlreadyExists):
		return tghelpers.SendText(c, "That name is already taken.")
	case errors.Is(err, vending.ErrOutOfStock):
		return tghelpers.SendText(c, "Sold out, sorry!")
	case errors.Is(err, vending.ErrInvalidPaymentProof):
		return tghelpers.SendText(c, "That doesn't look like a valid payment link. Nothing was submitted, try again.")
	case errors.Is(err, vending.ErrAlreadyResolved):
		return tghelpers.SendText(c, "This request has already been decided.")
	case errors.Is(err, vending.ErrInvalidInput):
		return tghelpers.SendText(c, "Invalid input: "+err.Error())
	default:
		return tghelpers.SendText(c, "Something went wrong, try again later.")
	}
}
