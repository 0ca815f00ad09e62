package vending

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MellowIQ3/zi-hanki/core/logger"
	"log/slog"
)

const (
	componentVending  = "service.vending"
	componentApproval = "service.approval"
	componentDisplay  = "display"
)

// ItemSpec carries validated fields for adding an item to a machine.
type ItemSpec struct {
	Name    string
	Stock   int
	Price   int
	Payload string
}

// Selection is the outcome of a buyer picking an item against live state.
type Selection struct {
	Machine         string
	Item            string
	Price           int
	PaymentRequired bool
}

// Options configure a Service.
type Options struct {
	Notifier Notifier
	Display  DisplayUpdater
	Proof    ProofValidator
	// ApproveIgnoresStock restores the legacy behaviour of committing an
	// approved purchase without re-checking stock, allowing negative stock.
	ApproveIgnoresStock bool
}

// Service is the inventory and purchase-approval state machine. Every
// mutation runs as a serialized load-mutate-save critical section against the
// store; notifications and display refreshes happen only after a successful
// save.
type Service struct {
	store    Store
	notifier Notifier
	display  DisplayUpdater
	proof    ProofValidator

	approveIgnoresStock bool

	mu sync.Mutex
}

// New constructs a Service. Notifier and Display may be nil (events are then
// dropped), which in-memory tests rely on.
func New(store Store, opts Options) *Service {
	proof := opts.Proof
	if proof == nil {
		proof = ProofValidatorFunc(func(string) bool { return false })
	}
	return &Service{
		store:               store,
		notifier:            opts.Notifier,
		display:             opts.Display,
		proof:               proof,
		approveIgnoresStock: opts.ApproveIgnoresStock,
	}
}

// ParseAmount parses a human-entered integer field (stock, price).
func ParseAmount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: not a number: %q", ErrInvalidInput, s)
	}
	return n, nil
}

// CreateMachine inserts an empty machine under the given name.
func (s *Service) CreateMachine(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: machine name is empty", ErrInvalidInput)
	}
	err := s.mutate(ctx, func(ds *Dataset) error {
		if _, ok := ds.Machines[name]; ok {
			return fmt.Errorf("%w: machine %q", ErrAlreadyExists, name)
		}
		ds.Machines[name] = NewMachine()
		return nil
	}, "")
	if err != nil {
		return err
	}
	logger.Info(ctx, componentVending, "machine.created", slog.String("machine", name))
	return nil
}

// AddItem inserts an item into a machine, silently overwriting an existing
// item of the same name. Price must be non-negative; stock accepts any
// integer a human enters.
func (s *Service) AddItem(ctx context.Context, machine string, spec ItemSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("%w: item name is empty", ErrInvalidInput)
	}
	if spec.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	err := s.mutate(ctx, func(ds *Dataset) error {
		m, ok := ds.Machines[machine]
		if !ok {
			return fmt.Errorf("%w: machine %q", ErrNotFound, machine)
		}
		pos := m.nextPosition()
		if prev, ok := m.Items[spec.Name]; ok {
			pos = prev.Position
		}
		m.Items[spec.Name] = Item{
			Stock:    spec.Stock,
			Price:    spec.Price,
			Payload:  spec.Payload,
			Position: pos,
		}
		return nil
	}, machine)
	if err != nil {
		return err
	}
	logger.Info(ctx, componentVending, "item.added",
		slog.String("machine", machine),
		slog.String("item", spec.Name),
		slog.Int("stock", spec.Stock),
		slog.Int("price", spec.Price),
	)
	return nil
}

// RemoveItem deletes an item from a machine.
func (s *Service) RemoveItem(ctx context.Context, machine, item string) error {
	err := s.mutate(ctx, func(ds *Dataset) error {
		m, ok := ds.Machines[machine]
		if !ok {
			return fmt.Errorf("%w: machine %q", ErrNotFound, machine)
		}
		if _, ok := m.Items[item]; !ok {
			return fmt.Errorf("%w: item %q", ErrNotFound, item)
		}
		delete(m.Items, item)
		return nil
	}, machine)
	if err != nil {
		return err
	}
	logger.Info(ctx, componentVending, "item.removed",
		slog.String("machine", machine),
		slog.String("item", item),
	)
	return nil
}

// SetStock overwrites an item's stock unconditionally. No lower bound is
// enforced on manual edits; a negative value simply makes the item unsellable
// until restocked.
func (s *Service) SetStock(ctx context.Context, machine, item string, stock int) error {
	err := s.mutate(ctx, func(ds *Dataset) error {
		m, ok := ds.Machines[machine]
		if !ok {
			return fmt.Errorf("%w: machine %q", ErrNotFound, machine)
		}
		it, ok := m.Items[item]
		if !ok {
			return fmt.Errorf("%w: item %q", ErrNotFound, item)
		}
		it.Stock = stock
		m.Items[item] = it
		return nil
	}, machine)
	if err != nil {
		return err
	}
	logger.Info(ctx, componentVending, "stock.set",
		slog.String("machine", machine),
		slog.String("item", item),
		slog.Int("stock", stock),
	)
	return nil
}

// RegisterDisplay records a rendered summary message for auto-refresh.
func (s *Service) RegisterDisplay(ctx context.Context, machine string, ref DisplayRef) error {
	err := s.mutate(ctx, func(ds *Dataset) error {
		m, ok := ds.Machines[machine]
		if !ok {
			return fmt.Errorf("%w: machine %q", ErrNotFound, machine)
		}
		m.DisplayRefs = append(m.DisplayRefs, ref)
		return nil
	}, "")
	if err != nil {
		return err
	}
	logger.Info(ctx, componentDisplay, "display.registered",
		slog.String("machine", machine),
		slog.Int64("chat_id", ref.ChatID),
	)
	return nil
}

// Machines lists machine names in lexical order.
func (s *Service) Machines(ctx context.Context) ([]string, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ds.Normalize()
	names := make([]string, 0, len(ds.Machines))
	for name := range ds.Machines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Render returns the summary projection of a machine from current state.
// It reads a snapshot and takes no lock.
func (s *Service) Render(ctx context.Context, machine string) ([]Row, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ds.Normalize()
	m, ok := ds.Machines[machine]
	if !ok {
		return nil, fmt.Errorf("%w: machine %q", ErrNotFound, machine)
	}
	return Render(m), nil
}

// Select validates a buyer's pick against live state, not a cached snapshot:
// the inventory may have changed since the listing was rendered.
func (s *Service) Select(ctx context.Context, machine, item string) (Selection, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return Selection{}, err
	}
	ds.Normalize()
	it, err := lookupItem(ds, machine, item)
	if err != nil {
		return Selection{}, err
	}
	if it.Stock <= 0 {
		return Selection{}, fmt.Errorf("%w: %s/%s", ErrOutOfStock, machine, item)
	}
	return Selection{
		Machine:         machine,
		Item:            item,
		Price:           it.Price,
		PaymentRequired: it.Price > 0,
	}, nil
}

// BuyFree commits a free-item purchase immediately. No approval request is
// ever created on this path.
func (s *Service) BuyFree(ctx context.Context, machine, item string, buyer int64) (*Receipt, error) {
	var (
		receipt *Receipt
		refresh refreshState
	)
	s.mu.Lock()
	err := func() error {
		ds, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		ds.Normalize()
		it, err := lookupItem(ds, machine, item)
		if err != nil {
			return err
		}
		if it.Price != 0 {
			return fmt.Errorf("%w: item %q requires payment", ErrInvalidInput, item)
		}
		receipt, err = commit(ds, machine, item, buyer, 0, false)
		if err != nil {
			return err
		}
		if err := s.store.Save(ctx, ds); err != nil {
			return err
		}
		refresh = snapshotRefresh(ds, machine)
		return nil
	}()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, componentVending, "purchase.free",
		slog.String("machine", machine),
		slog.String("item", item),
		slog.Int64("buyer_id", buyer),
		slog.Int("remaining", receipt.Remaining),
	)
	s.refreshDisplays(ctx, refresh)
	s.notifyPurchase(ctx, *receipt)
	return receipt, nil
}

// SubmitProof validates the payment proof and creates a Pending approval
// request. A failing proof has no side effects whatsoever.
func (s *Service) SubmitProof(ctx context.Context, machine, item string, buyer int64, proof string) (*ApprovalRequest, error) {
	proof = strings.TrimSpace(proof)
	if !s.proof.Valid(proof) {
		return nil, fmt.Errorf("%w: proof does not match the required payment link", ErrInvalidPaymentProof)
	}

	var (
		req   *ApprovalRequest
		price int
	)
	s.mu.Lock()
	err := func() error {
		ds, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		ds.Normalize()
		it, err := lookupItem(ds, machine, item)
		if err != nil {
			return err
		}
		if it.Stock <= 0 {
			return fmt.Errorf("%w: %s/%s", ErrOutOfStock, machine, item)
		}
		price = it.Price
		req = &ApprovalRequest{
			ID:           uuid.NewString(),
			MachineName:  machine,
			ItemName:     item,
			BuyerID:      buyer,
			PaymentProof: proof,
			Status:       RequestPending,
			CreatedAt:    time.Now().UTC(),
		}
		ds.Requests[req.ID] = req
		return s.store.Save(ctx, ds)
	}()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, componentApproval, "request.created",
		slog.String("request_id", req.ID),
		slog.String("machine", machine),
		slog.String("item", item),
		slog.Int64("buyer_id", buyer),
		slog.Int("price", price),
	)
	if s.notifier != nil {
		if err := s.notifier.RequestDecision(ctx, *req, price); err != nil {
			logger.Warn(ctx, componentApproval, "request.surface_failed",
				slog.String("request_id", req.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	return req, nil
}

// Approve commits a pending paid purchase. Stock is re-checked at decision
// time unless the legacy override is configured; an out-of-stock approve
// fails and leaves the request Pending so the operator can restock or deny.
func (s *Service) Approve(ctx context.Context, requestID string, operator int64) (*Receipt, error) {
	var (
		receipt *Receipt
		req     *ApprovalRequest
		refresh refreshState
	)
	s.mu.Lock()
	err := func() error {
		ds, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		ds.Normalize()
		var ok bool
		req, ok = ds.Requests[requestID]
		if !ok {
			return fmt.Errorf("%w: request %q", ErrNotFound, requestID)
		}
		if req.Terminal() {
			return fmt.Errorf("%w: request %q is %s", ErrAlreadyResolved, requestID, req.Status)
		}
		receipt, err = commit(ds, req.MachineName, req.ItemName, req.BuyerID, operator, s.approveIgnoresStock)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		req.Status = RequestApproved
		req.DecidedAt = &now
		if err := s.store.Save(ctx, ds); err != nil {
			return err
		}
		refresh = snapshotRefresh(ds, req.MachineName)
		return nil
	}()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, componentApproval, "request.approved",
		slog.String("request_id", requestID),
		slog.String("machine", receipt.Machine),
		slog.String("item", receipt.Item),
		slog.Int64("buyer_id", receipt.BuyerID),
		slog.Int64("operator_id", operator),
		slog.Int("remaining", receipt.Remaining),
	)
	s.refreshDisplays(ctx, refresh)
	s.notifyPurchase(ctx, *receipt)
	return receipt, nil
}

// Deny marks a pending request as rejected. Stock is untouched.
func (s *Service) Deny(ctx context.Context, requestID string, operator int64) (*ApprovalRequest, error) {
	var req *ApprovalRequest
	s.mu.Lock()
	err := func() error {
		ds, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		ds.Normalize()
		var ok bool
		req, ok = ds.Requests[requestID]
		if !ok {
			return fmt.Errorf("%w: request %q", ErrNotFound, requestID)
		}
		if req.Terminal() {
			return fmt.Errorf("%w: request %q is %s", ErrAlreadyResolved, requestID, req.Status)
		}
		now := time.Now().UTC()
		req.Status = RequestDenied
		req.DecidedAt = &now
		return s.store.Save(ctx, ds)
	}()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, componentApproval, "request.denied",
		slog.String("request_id", requestID),
		slog.Int64("operator_id", operator),
	)
	if s.notifier != nil {
		if err := s.notifier.NotifyDenied(ctx, *req); err != nil {
			logger.Warn(ctx, componentApproval, "notify.denied_failed",
				slog.String("request_id", requestID),
				slog.String("err", err.Error()),
			)
		}
	}
	return req, nil
}

// PendingRequests lists requests still awaiting a decision, oldest first.
func (s *Service) PendingRequests(ctx context.Context) ([]*ApprovalRequest, error) {
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ds.Normalize()
	var pending []*ApprovalRequest
	for _, req := range ds.Requests {
		if !req.Terminal() {
			pending = append(pending, req)
		}
	}
	sortRequests(pending)
	return pending, nil
}

// mutate runs fn as a serialized load-mutate-save unit. When machine is
// non-empty, its displays are refreshed after a successful save.
func (s *Service) mutate(ctx context.Context, fn func(*Dataset) error, machine string) error {
	var refresh refreshState
	s.mu.Lock()
	err := func() error {
		ds, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		ds.Normalize()
		if err := fn(ds); err != nil {
			return err
		}
		if err := s.store.Save(ctx, ds); err != nil {
			return err
		}
		if machine != "" {
			refresh = snapshotRefresh(ds, machine)
		}
		return nil
	}()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.refreshDisplays(ctx, refresh)
	return nil
}

// refreshState captures everything needed to push updated summaries after the
// lock is released.
type refreshState struct {
	machine string
	refs    []DisplayRef
	rows    []Row
}

func snapshotRefresh(ds *Dataset, machine string) refreshState {
	m, ok := ds.Machines[machine]
	if !ok {
		return refreshState{}
	}
	return refreshState{
		machine: machine,
		refs:    append([]DisplayRef(nil), m.DisplayRefs...),
		rows:    Render(m),
	}
}

// refreshDisplays pushes the projection to every registered surface. An
// unreachable surface is logged and skipped; it never aborts the loop.
func (s *Service) refreshDisplays(ctx context.Context, st refreshState) {
	if s.display == nil || st.machine == "" || len(st.refs) == 0 {
		return
	}
	for _, ref := range st.refs {
		if err := s.display.UpdateDisplay(ctx, st.machine, ref, st.rows); err != nil {
			logger.Warn(ctx, componentDisplay, "display.refresh_failed",
				slog.String("machine", st.machine),
				slog.Int64("chat_id", ref.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (s *Service) notifyPurchase(ctx context.Context, r Receipt) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPurchase(ctx, r); err != nil {
		logger.Warn(ctx, componentVending, "notify.purchase_failed",
			slog.String("machine", r.Machine),
			slog.String("item", r.Item),
			slog.Int64("buyer_id", r.BuyerID),
			slog.String("err", err.Error()),
		)
	}
	if err := s.notifier.NotifyAchievement(ctx, r); err != nil {
		logger.Warn(ctx, componentVending, "notify.achievement_failed",
			slog.String("machine", r.Machine),
			slog.String("item", r.Item),
			slog.String("err", err.Error()),
		)
	}
}

// commit is the shared decrement primitive used by the free path and the
// approved-paid path. It refuses at stock <= 0 unless ignoreStock carries the
// legacy override.
func commit(ds *Dataset, machine, item string, buyer, operator int64, ignoreStock bool) (*Receipt, error) {
	it, err := lookupItem(ds, machine, item)
	if err != nil {
		return nil, err
	}
	if it.Stock <= 0 && !ignoreStock {
		return nil, fmt.Errorf("%w: %s/%s", ErrOutOfStock, machine, item)
	}
	it.Stock--
	ds.Machines[machine].Items[item] = it
	return &Receipt{
		Machine:    machine,
		Item:       item,
		Price:      it.Price,
		Remaining:  it.Stock,
		Payload:    it.Payload,
		BuyerID:    buyer,
		OperatorID: operator,
	}, nil
}

func lookupItem(ds *Dataset, machine, item string) (Item, error) {
	m, ok := ds.Machines[machine]
	if !ok {
		return Item{}, fmt.Errorf("%w: machine %q", ErrNotFound, machine)
	}
	it, ok := m.Items[item]
	if !ok {
		return Item{}, fmt.Errorf("%w: item %q", ErrNotFound, item)
	}
	return it, nil
}

func sortRequests(reqs []*ApprovalRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
