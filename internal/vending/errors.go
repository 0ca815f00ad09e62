package vending

import "errors"

var (
	// ErrNotFound indicates a missing machine, item, or approval request.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a duplicate machine name.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput indicates an empty name or malformed numeric field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPaymentProof indicates a payment proof failing the prefix check.
	ErrInvalidPaymentProof = errors.New("invalid payment proof")
	// ErrOutOfStock indicates stock <= 0 at selection or commit time.
	ErrOutOfStock = errors.New("out of stock")
	// ErrAlreadyResolved indicates a decision replay on a terminal request.
	ErrAlreadyResolved = errors.New("request already resolved")
	// ErrStorageCorrupt indicates the persisted dataset cannot be parsed.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrStorageWrite indicates an I/O failure while persisting the dataset.
	ErrStorageWrite = errors.New("storage write failed")
)
