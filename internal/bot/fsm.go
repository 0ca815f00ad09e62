package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/MellowIQ3/zi-hanki/core/telegram/helpers"
	"github.com/MellowIQ3/zi-hanki/core/telegram/state"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

// Conversation states.
const (
	stAwaitMachineName state.State = "await_machine_name"
	stAwaitItemSpec    state.State = "await_item_spec"
	stAwaitStock       state.State = "await_stock"
	stAwaitProof       state.State = "await_proof"
)

// Temp data keys.
const (
	tmpMachine = "machine"
	tmpItem    = "item"
)

func (h *Handlers) registerStates() {
	state.RegisterHandler(stAwaitMachineName, h.stateMachineName)
	state.RegisterHandler(stAwaitItemSpec, h.stateItemSpec)
	state.RegisterHandler(stAwaitStock, h.stateStock)
	state.RegisterHandler(stAwaitProof, h.stateProof)
}

func (h *Handlers) stateMachineName(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	name := strings.TrimSpace(c.Text())
	if strings.Contains(name, payloadSep) {
		return tghelpers.SendText(c, "Names can't contain \"|\".")
	}
	if err := h.svc.CreateMachine(ctx, name); err != nil {
		return h.replyErr(c, err)
	}
	h.fsm.Clear(c.Sender().ID)
	return tghelpers.SendText(c, fmt.Sprintf("Machine %q created. Add items with /additem.", name))
}

// stateItemSpec parses "name, stock, price[, payload]".
func (h *Handlers) stateItemSpec(c tele.Context) error {
	operator := c.Sender().ID
	machine, ok := h.tempString(operator, tmpMachine)
	if !ok {
		h.fsm.Clear(operator)
		return tghelpers.SendText(c, "The flow expired, run /additem again.")
	}

	parts := strings.SplitN(c.Text(), ",", 4)
	if len(parts) < 3 {
		return tghelpers.SendText(c, "Format: name, stock, price[, payload]")
	}
	stock, err := vending.ParseAmount(parts[1])
	if err != nil {
		return tghelpers.SendText(c, "Stock must be a number.")
	}
	price, err := vending.ParseAmount(parts[2])
	if err != nil {
		return tghelpers.SendText(c, "Price must be a number.")
	}
	if strings.Contains(parts[0], payloadSep) {
		return tghelpers.SendText(c, "Names can't contain \"|\".")
	}
	spec := vending.ItemSpec{
		Name:  strings.TrimSpace(parts[0]),
		Stock: stock,
		Price: price,
	}
	if len(parts) == 4 {
		spec.Payload = strings.TrimSpace(parts[3])
	}

	ctx := tghelpers.BuildContext(c)
	if err := h.svc.AddItem(ctx, machine, spec); err != nil {
		return h.replyErr(c, err)
	}
	h.fsm.Clear(operator)
	return tghelpers.SendText(c, fmt.Sprintf("Added %s to %s (stock %d, price %d).",
		spec.Name, machine, spec.Stock, spec.Price))
}

func (h *Handlers) stateStock(c tele.Context) error {
	operator := c.Sender().ID
	machine, okM := h.tempString(operator, tmpMachine)
	item, okI := h.tempString(operator, tmpItem)
	if !okM || !okI {
		h.fsm.Clear(operator)
		return tghelpers.SendText(c, "The flow expired, run /setstock again.")
	}
	stock, err := vending.ParseAmount(c.Text())
	if err != nil {
		return tghelpers.SendText(c, "Send the new stock as a number.")
	}
	ctx := tghelpers.BuildContext(c)
	if err := h.svc.SetStock(ctx, machine, item, stock); err != nil {
		return h.replyErr(c, err)
	}
	h.fsm.Clear(operator)
	return tghelpers.SendText(c, fmt.Sprintf("Stock of %s set to %d.", item, stock))
}

// stateProof submits the buyer's payment link. A bad link keeps the state so
// the buyer can just send a corrected one.
func (h *Handlers) stateProof(c tele.Context) error {
	buyer := c.Sender().ID
	machine, okM := h.tempString(buyer, tmpMachine)
	item, okI := h.tempString(buyer, tmpItem)
	if !okM || !okI {
		h.fsm.Clear(buyer)
		return tghelpers.SendText(c, "The purchase expired, pick the item again with /vend.")
	}

	ctx := tghelpers.BuildContext(c)
	_, err := h.svc.SubmitProof(ctx, machine, item, buyer, c.Text())
	if err != nil {
		if replyErr := h.replyErr(c, err); replyErr != nil {
			return replyErr
		}
		// invalid proof: stay in the conversation for a retry
		if errors.Is(err, vending.ErrInvalidPaymentProof) {
			return nil
		}
		h.fsm.Clear(buyer)
		return nil
	}

	h.fsm.Clear(buyer)
	return tghelpers.SendText(c, "Got it! Your purchase is waiting for approval, you'll hear back soon.")
}

func (h *Handlers) tempString(userID int64, key string) (string, bool) {
	v, ok := h.fsm.GetTemp(userID, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
