package vending

import "time"

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	// RequestPending awaits an operator decision.
	RequestPending RequestStatus = "pending"
	// RequestApproved is terminal: stock was released to the buyer.
	RequestApproved RequestStatus = "approved"
	// RequestDenied is terminal: no stock change happened.
	RequestDenied RequestStatus = "denied"
)

// ApprovalRequest is a paid purchase awaiting an operator decision. It
// references the item it targets without owning it; stock is re-checked at
// decision time. Requests are persisted with the dataset so pending decisions
// survive process restarts.
type ApprovalRequest struct {
	ID           string        `json:"id"`
	MachineName  string        `json:"machine"`
	ItemName     string        `json:"item"`
	BuyerID      int64         `json:"buyer_id"`
	PaymentProof string        `json:"payment_proof"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	DecidedAt    *time.Time    `json:"decided_at,omitempty"`
}

// Terminal reports whether the request has reached a final status.
func (r *ApprovalRequest) Terminal() bool {
	return r.Status == RequestApproved || r.Status == RequestDenied
}
