package vending

import "context"

// Store provides atomic load/save of the whole dataset. Load on first run
// returns an empty dataset and persists it; a partial write must never be
// observable by a subsequent Load.
type Store interface {
	Load(ctx context.Context) (*Dataset, error)
	Save(ctx context.Context, ds *Dataset) error
}

// Receipt describes a committed purchase. It is only produced after the
// decrement has been persisted.
type Receipt struct {
	Machine   string
	Item      string
	Price     int
	Remaining int
	Payload   string
	BuyerID   int64
	// OperatorID is the approving operator; zero for free purchases.
	OperatorID int64
}

// Notifier delivers purchase lifecycle events to the chat transport.
// Implementations must not block indefinitely; delivery failures are the
// transport's problem and never roll back a committed purchase.
type Notifier interface {
	// NotifyPurchase sends the buyer-facing success record with the payload.
	NotifyPurchase(ctx context.Context, r Receipt) error
	// NotifyAchievement sends the operator-facing purchase record.
	NotifyAchievement(ctx context.Context, r Receipt) error
	// NotifyDenied informs the buyer their paid purchase was rejected.
	NotifyDenied(ctx context.Context, req ApprovalRequest) error
	// RequestDecision surfaces a pending request to the approval surface.
	RequestDecision(ctx context.Context, req ApprovalRequest, price int) error
}

// DisplayUpdater pushes a re-rendered machine summary to one display surface.
// A stale or missing surface must be reported as an error, not a panic; the
// caller skips it and continues with the remaining surfaces.
type DisplayUpdater interface {
	UpdateDisplay(ctx context.Context, machine string, ref DisplayRef, rows []Row) error
}
