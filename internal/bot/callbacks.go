package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/MellowIQ3/zi-hanki/core/telegram"
	"github.com/MellowIQ3/zi-hanki/core/telegram/callbacks"
	tghelpers "github.com/MellowIQ3/zi-hanki/core/telegram/helpers"
	"github.com/MellowIQ3/zi-hanki/core/telegram/keyboard"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// Callback keys. Payload fields are joined with payloadSep, which machine and
// item names are forbidden to contain.
const (
	cbVendMachine   = "vmach"
	cbVendItem      = "vitem"
	cbManageMachine = "mmach"
	cbManageItem    = "mitem"
	cbApprove       = "vapprove"
	cbDeny          = "vdeny"
	cbCancel        = "vcancel"
)

const payloadSep = "|"

// Manage actions carried in cbManageMachine / cbManageItem payloads.
const (
	actionAddItem     = "add"
	actionRemoveItem  = "rm"
	actionSetStock    = "stock"
	actionSendDisplay = "disp"
)

func (h *Handlers) registerCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback(cbVendMachine, h.cbVendMachine)
	_ = reg.RegisterCallback(cbVendItem, h.cbVendItem)
	_ = reg.RegisterCallback(cbManageMachine, h.cbManageMachine)
	_ = reg.RegisterCallback(cbManageItem, h.cbManageItem)
	_ = reg.RegisterCallback(cbApprove, h.decisionHandler(true))
	_ = reg.RegisterCallback(cbDeny, h.decisionHandler(false))
	_ = reg.RegisterCallback(cbCancel, h.cbCancelFlow)
}

// cbVendMachine shows one machine's summary with a button per buyable item.
func (h *Handlers) cbVendMachine(c tele.Context) error {
	machine := callbacks.CallbackPayload(c)
	ctx := tghelpers.BuildContext(c)
	rows, err := h.svc.Render(ctx, machine)
	if err != nil {
		return h.replyErr(c, err)
	}
	var btns []keyboard.InlineBtn
	for _, row := range rows {
		if row.Status == vending.StatusOutOfStock {
			continue
		}
		btns = append(btns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s (%s)", row.Name, priceLine(row)),
			Unique: cbVendItem,
			Data:   machine + payloadSep + row.Name,
		})
	}
	text := summaryText(machine, rows)
	if len(btns) == 0 {
		return tghelpers.EditOrSendMD(c, text+"\n\n_Nothing is buyable right now._")
	}
	return tghelpers.EditOrSendMD(c, text, keyboard.InlineButtons(btns))
}

// cbVendItem runs the purchase flow for a picked item against live state.
// Free items dispense immediately; paid items start the proof conversation.
func (h *Handlers) cbVendItem(c tele.Context) error {
	machine, item, ok := splitPayload(c)
	if !ok {
		return tghelpers.SendText(c, "That button looks broken, use /vend again.")
	}
	ctx := tghelpers.BuildContext(c)
	sel, err := h.svc.Select(ctx, machine, item)
	if err != nil {
		return h.replyErr(c, err)
	}

	buyer := c.Sender().ID
	if !sel.PaymentRequired {
		if _, err := h.svc.BuyFree(ctx, machine, item, buyer); err != nil {
			return h.replyErr(c, err)
		}
		// the receipt with the payload arrives by DM
		return tghelpers.SendText(c, "Dispensed! Check your messages.")
	}

	h.fsm.SetTemp(buyer, tmpMachine, machine)
	h.fsm.SetTemp(buyer, tmpItem, item)
	h.fsm.Set(buyer, stAwaitProof)
	return tghelpers.SendMD(c, fmt.Sprintf(
		"*%s* costs *%d yen*.\n\nPay via %s and send the payment link here.\nUse /cancel to abort.",
		item, sel.Price, h.proofPrefix))
}

// cbManageMachine continues an admin flow after the machine pick.
func (h *Handlers) cbManageMachine(c tele.Context) error {
	action, machine, ok := splitPayload(c)
	if !ok {
		return tghelpers.SendText(c, "That button looks broken, run the command again.")
	}
	ctx := tghelpers.BuildContext(c)
	operator := c.Sender().ID

	switch action {
	case actionAddItem:
		h.fsm.SetTemp(operator, tmpMachine, machine)
		h.fsm.Set(operator, stAwaitItemSpec)
		return tghelpers.SendMD(c,
			"Send the item as:\n`name, stock, price[, payload]`\n\nPrice 0 makes it free. The payload is delivered to the buyer.")

	case actionRemoveItem, actionSetStock:
		rows, err := h.svc.Render(ctx, machine)
		if err != nil {
			return h.replyErr(c, err)
		}
		if len(rows) == 0 {
			return tghelpers.SendText(c, "The machine is empty.")
		}
		btns := make([]keyboard.InlineBtn, 0, len(rows))
		for _, row := range rows {
			btns = append(btns, keyboard.InlineBtn{
				Text:   row.Name,
				Unique: cbManageItem,
				Data:   strings.Join([]string{action, machine, row.Name}, payloadSep),
			})
		}
		return tghelpers.EditOrSendMD(c, "Which item?", keyboard.InlineButtonsNPerRow(btns, 2))

	case actionSendDisplay:
		return h.sendDisplay(c, machine)

	default:
		return tghelpers.SendText(c, "Unknown action.")
	}
}

// cbManageItem finishes remove/setstock flows after the item pick.
func (h *Handlers) cbManageItem(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, payloadSep)
	if err != nil || len(parts) != 3 {
		return tghelpers.SendText(c, "That button looks broken, run the command again.")
	}
	action, machine, item := parts[0], parts[1], parts[2]
	ctx := tghelpers.BuildContext(c)
	operator := c.Sender().ID

	switch action {
	case actionRemoveItem:
		if err := h.svc.RemoveItem(ctx, machine, item); err != nil {
			return h.replyErr(c, err)
		}
		return tghelpers.SendText(c, fmt.Sprintf("Removed %s from %s.", item, machine))

	case actionSetStock:
		h.fsm.SetTemp(operator, tmpMachine, machine)
		h.fsm.SetTemp(operator, tmpItem, item)
		h.fsm.Set(operator, stAwaitStock)
		return tghelpers.SendText(c, fmt.Sprintf("New stock for %s?", item))

	default:
		return tghelpers.SendText(c, "Unknown action.")
	}
}

// sendDisplay posts the machine summary into the current chat and registers
// the sent message for auto-refresh on every inventory change.
func (h *Handlers) sendDisplay(c tele.Context, machine string) error {
	ctx := tghelpers.BuildContext(c)
	rows, err := h.svc.Render(ctx, machine)
	if err != nil {
		return h.replyErr(c, err)
	}
	// synchronous send: the message ID is needed for registration
	msg, err := c.Bot().Send(c.Chat(), summaryText(machine, rows),
		&tele.SendOptions{ParseMode: tele.ModeMarkdown})
	if err != nil {
		return err
	}
	ref := vending.DisplayRef{ChatID: msg.Chat.ID, MessageID: msg.ID}
	if err := h.svc.RegisterDisplay(ctx, machine, ref); err != nil {
		return h.replyErr(c, err)
	}
	return nil
}

// decisionHandler resolves a pending request. Decisions are only accepted
// from the approval chat or the admin directly.
func (h *Handlers) decisionHandler(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !h.canDecide(c) {
			return tghelpers.SendText(c, "You can't decide purchase requests.")
		}
		requestID := callbacks.CallbackPayload(c)
		ctx := tghelpers.BuildContext(c)
		operator := c.Sender().ID

		if approve {
			receipt, err := h.svc.Approve(ctx, requestID, operator)
			if err != nil {
				return h.replyErr(c, err)
			}
			return tghelpers.EditOrSendMD(c, fmt.Sprintf(
				"✅ Approved: *%s* / *%s* for `%d` (%d left)",
				receipt.Machine, receipt.Item, receipt.BuyerID, receipt.Remaining))
		}

		req, err := h.svc.Deny(ctx, requestID, operator)
		if err != nil {
			return h.replyErr(c, err)
		}
		return tghelpers.EditOrSendMD(c, fmt.Sprintf(
			"🚫 Denied: *%s* / *%s* for `%d`",
			req.MachineName, req.ItemName, req.BuyerID))
	}
}

func (h *Handlers) canDecide(c tele.Context) bool {
	if c.Sender() != nil && c.Sender().ID == h.adminID {
		return true
	}
	return c.Chat() != nil && c.Chat().ID == h.approvalChat
}

func (h *Handlers) cbCancelFlow(c tele.Context) error {
	h.fsm.Clear(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, "Cancelled.")
}

func splitPayload(c tele.Context) (string, string, bool) {
	parts, err := callbacks.PayloadParts(c, payloadSep)
	if err != nil || len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
