package vending_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MellowIQ3/zi-hanki/internal/store"
	"github.com/MellowIQ3/zi-hanki/internal/vending"
)

type recorder struct {
	purchases    []vending.Receipt
	achievements []vending.Receipt
	denied       []vending.ApprovalRequest
	decisions    []vending.ApprovalRequest
	displays     int
}

func (r *recorder) NotifyPurchase(_ context.Context, rec vending.Receipt) error {
	r.purchases = append(r.purchases, rec)
	return nil
}

func (r *recorder) NotifyAchievement(_ context.Context, rec vending.Receipt) error {
	r.achievements = append(r.achievements, rec)
	return nil
}

func (r *recorder) NotifyDenied(_ context.Context, req vending.ApprovalRequest) error {
	r.denied = append(r.denied, req)
	return nil
}

func (r *recorder) RequestDecision(_ context.Context, req vending.ApprovalRequest, _ int) error {
	r.decisions = append(r.decisions, req)
	return nil
}

func (r *recorder) UpdateDisplay(_ context.Context, _ string, _ vending.DisplayRef, _ []vending.Row) error {
	r.displays++
	return nil
}

const proofPrefix = "https://pay.example.test/"

func newTestService(t *testing.T, opts vending.Options) (*vending.Service, *store.MemStore, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opts.Notifier == nil {
		opts.Notifier = rec
	}
	if opts.Display == nil {
		opts.Display = rec
	}
	if opts.Proof == nil {
		opts.Proof = vending.PrefixValidator(proofPrefix)
	}
	st := store.NewMemStore()
	return vending.New(st, opts), st, rec
}

func seedMachine(t *testing.T, svc *vending.Service, machine string, items ...vending.ItemSpec) {
	t.Helper()
	ctx := context.Background()
	if err := svc.CreateMachine(ctx, machine); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	for _, it := range items {
		if err := svc.AddItem(ctx, machine, it); err != nil {
			t.Fatalf("add item %s: %v", it.Name, err)
		}
	}
}

func TestFreePurchase(t *testing.T) {
	svc, _, rec := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "sticker", Stock: 3, Price: 0, Payload: "code-123"})

	receipt, err := svc.BuyFree(ctx, "lobby", "sticker", 42)
	if err != nil {
		t.Fatalf("buy free: %v", err)
	}
	if receipt.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", receipt.Remaining)
	}
	if receipt.Payload != "code-123" {
		t.Fatalf("payload = %q", receipt.Payload)
	}
	if len(rec.purchases) != 1 || len(rec.achievements) != 1 {
		t.Fatalf("notifications = %d/%d, want 1/1", len(rec.purchases), len(rec.achievements))
	}
	if len(rec.decisions) != 0 {
		t.Fatal("free purchase must not create an approval request")
	}
	pending, err := svc.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestBuyFreeRejectsPaidItem(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 2, Price: 300})

	if _, err := svc.BuyFree(context.Background(), "lobby", "coffee", 42); !errors.Is(err, vending.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPaidFlowApprove(t *testing.T) {
	svc, _, rec := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 2, Price: 300, Payload: "voucher"})

	req, err := svc.SubmitProof(ctx, "lobby", "coffee", 42, proofPrefix+"abc")
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if req.Status != vending.RequestPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if len(rec.decisions) != 1 {
		t.Fatalf("decision surfaces = %d, want 1", len(rec.decisions))
	}
	// proof submission must not touch stock
	rows, err := svc.Render(ctx, "lobby")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rows[0].Stock != 2 {
		t.Fatalf("stock after submit = %d, want 2", rows[0].Stock)
	}

	receipt, err := svc.Approve(ctx, req.ID, 7)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if receipt.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1", receipt.Remaining)
	}
	if receipt.OperatorID != 7 {
		t.Fatalf("operator = %d, want 7", receipt.OperatorID)
	}
	if len(rec.purchases) != 1 {
		t.Fatalf("purchase notifications = %d, want 1", len(rec.purchases))
	}

	// replaying either decision must fail without another decrement
	if _, err := svc.Approve(ctx, req.ID, 7); !errors.Is(err, vending.ErrAlreadyResolved) {
		t.Fatalf("replay approve err = %v, want ErrAlreadyResolved", err)
	}
	if _, err := svc.Deny(ctx, req.ID, 7); !errors.Is(err, vending.ErrAlreadyResolved) {
		t.Fatalf("replay deny err = %v, want ErrAlreadyResolved", err)
	}
	rows, _ = svc.Render(ctx, "lobby")
	if rows[0].Stock != 1 {
		t.Fatalf("stock after replays = %d, want 1", rows[0].Stock)
	}
}

func TestPaidFlowDeny(t *testing.T) {
	svc, _, rec := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 2, Price: 300})

	req, err := svc.SubmitProof(ctx, "lobby", "coffee", 42, proofPrefix+"abc")
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	denied, err := svc.Deny(ctx, req.ID, 7)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != vending.RequestDenied {
		t.Fatalf("status = %s, want denied", denied.Status)
	}
	if len(rec.denied) != 1 {
		t.Fatalf("denial notifications = %d, want 1", len(rec.denied))
	}
	rows, _ := svc.Render(ctx, "lobby")
	if rows[0].Stock != 2 {
		t.Fatalf("stock after deny = %d, want 2", rows[0].Stock)
	}
}

func TestInvalidProofHasNoSideEffects(t *testing.T) {
	svc, _, rec := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 2, Price: 300})

	_, err := svc.SubmitProof(ctx, "lobby", "coffee", 42, "https://evil.test/x")
	if !errors.Is(err, vending.ErrInvalidPaymentProof) {
		t.Fatalf("err = %v, want ErrInvalidPaymentProof", err)
	}
	if len(rec.decisions) != 0 {
		t.Fatal("rejected proof must not surface a request")
	}
	pending, _ := svc.PendingRequests(ctx)
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestApproveRechecksStock(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 1, Price: 300})

	first, err := svc.SubmitProof(ctx, "lobby", "coffee", 42, proofPrefix+"a")
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	second, err := svc.SubmitProof(ctx, "lobby", "coffee", 43, proofPrefix+"b")
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	if _, err := svc.Approve(ctx, first.ID, 7); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	if _, err := svc.Approve(ctx, second.ID, 7); !errors.Is(err, vending.ErrOutOfStock) {
		t.Fatalf("approve second err = %v, want ErrOutOfStock", err)
	}

	// the failed approval leaves the request pending for a restock or deny
	pending, err := svc.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("pending = %v, want just the second request", pending)
	}
	if err := svc.SetStock(ctx, "lobby", "coffee", 1); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := svc.Approve(ctx, second.ID, 7); err != nil {
		t.Fatalf("approve after restock: %v", err)
	}
}

func TestApproveIgnoresStockOverride(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{ApproveIgnoresStock: true})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 1, Price: 300})

	first, _ := svc.SubmitProof(ctx, "lobby", "coffee", 42, proofPrefix+"a")
	second, _ := svc.SubmitProof(ctx, "lobby", "coffee", 43, proofPrefix+"b")

	if _, err := svc.Approve(ctx, first.ID, 7); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	receipt, err := svc.Approve(ctx, second.ID, 7)
	if err != nil {
		t.Fatalf("approve second: %v", err)
	}
	if receipt.Remaining != -1 {
		t.Fatalf("remaining = %d, want -1", receipt.Remaining)
	}
}

func TestSelectOutOfStock(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "coffee", Stock: 0, Price: 300})

	if _, err := svc.Select(ctx, "lobby", "coffee"); !errors.Is(err, vending.ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}
}

func TestPersistBeforeNotify(t *testing.T) {
	svc, st, rec := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby", vending.ItemSpec{Name: "sticker", Stock: 3, Price: 0})

	st.SaveErr = errors.New("disk full")
	if _, err := svc.BuyFree(ctx, "lobby", "sticker", 42); err == nil {
		t.Fatal("expected save failure")
	}
	if len(rec.purchases) != 0 || len(rec.achievements) != 0 {
		t.Fatal("nothing may be announced when persisting failed")
	}

	st.SaveErr = nil
	rows, err := svc.Render(ctx, "lobby")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rows[0].Stock != 3 {
		t.Fatalf("stock = %d, want 3 (failed purchase must not stick)", rows[0].Stock)
	}
}

func TestCreateMachineDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	ctx := context.Background()
	if err := svc.CreateMachine(ctx, "lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.CreateMachine(ctx, "lobby"); !errors.Is(err, vending.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestAddItemValidation(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby")

	if err := svc.AddItem(ctx, "lobby", vending.ItemSpec{Name: "  ", Stock: 1}); !errors.Is(err, vending.ErrInvalidInput) {
		t.Fatalf("empty name err = %v, want ErrInvalidInput", err)
	}
	if err := svc.AddItem(ctx, "lobby", vending.ItemSpec{Name: "x", Price: -1}); !errors.Is(err, vending.ErrInvalidInput) {
		t.Fatalf("negative price err = %v, want ErrInvalidInput", err)
	}
	if err := svc.AddItem(ctx, "nope", vending.ItemSpec{Name: "x"}); !errors.Is(err, vending.ErrNotFound) {
		t.Fatalf("missing machine err = %v, want ErrNotFound", err)
	}
}

func TestAddItemOverwriteKeepsOrder(t *testing.T) {
	svc, _, _ := newTestService(t, vending.Options{})
	ctx := context.Background()
	seedMachine(t, svc, "lobby",
		vending.ItemSpec{Name: "a", Stock: 1, Price: 100},
		vending.ItemSpec{Name: "b", Stock: 1, Price: 100},
	)

	// overwriting "a" must not move it behind "b" in the equal-price tie
	if err := svc.AddItem(ctx, "lobby", vending.ItemSpec{Name: "a", Stock: 9, Price: 100}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rows, err := svc.Render(ctx, "lobby")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rows[0].Name != "a" || rows[1].Name != "b" {
		t.Fatalf("order = %s,%s, want a,b", rows[0].Name, rows[1].Name)
	}
	if rows[0].Stock != 9 {
		t.Fatalf("stock = %d, want 9", rows[0].Stock)
	}
}

func TestRequestsSurviveRestart(t *testing.T) {
	st := store.NewMemStore()
	rec := &recorder{}
	opts := vending.Options{Notifier: rec, Display: rec, Proof: vending.PrefixValidator(proofPrefix)}
	svc := vending.New(st, opts)
	ctx := context.Background()

	if err := svc.CreateMachine(ctx, "lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AddItem(ctx, "lobby", vending.ItemSpec{Name: "coffee", Stock: 2, Price: 300}); err != nil {
		t.Fatalf("add: %v", err)
	}
	req, err := svc.SubmitProof(ctx, "lobby", "coffee", 42, proofPrefix+"abc")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// a fresh service over the same store sees the pending request
	svc2 := vending.New(st, opts)
	if _, err := svc2.Approve(ctx, req.ID, 7); err != nil {
		t.Fatalf("approve after restart: %v", err)
	}
}
