package vending

// DisplayRef points at a rendered machine summary message.
type DisplayRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Item is a sellable unit. Stock may go negative through manual edits or the
// legacy approval override; a purchase commit refuses to decrement at
// stock <= 0. Payload is the secret delivered to the buyer on success.
type Item struct {
	Stock   int    `json:"stock"`
	Price   int    `json:"price"`
	Payload string `json:"payload,omitempty"`
	// Position records insertion order within the machine so equal-price
	// items keep a stable listing order.
	Position int `json:"pos"`
}

// Machine is a named catalog of items plus the display messages that render it.
type Machine struct {
	Items       map[string]Item `json:"items"`
	DisplayRefs []DisplayRef    `json:"display_refs,omitempty"`
}

// NewMachine returns an empty machine.
func NewMachine() *Machine {
	return &Machine{Items: make(map[string]Item)}
}

func (m *Machine) nextPosition() int {
	next := 0
	for _, it := range m.Items {
		if it.Position >= next {
			next = it.Position + 1
		}
	}
	return next
}

// Dataset is the whole persisted state: machines plus approval requests.
// It is loaded and saved wholesale; the store is the single source of truth.
type Dataset struct {
	Machines map[string]*Machine         `json:"machines"`
	Requests map[string]*ApprovalRequest `json:"requests,omitempty"`
}

// NewDataset returns an empty dataset with initialized maps.
func NewDataset() *Dataset {
	return &Dataset{
		Machines: make(map[string]*Machine),
		Requests: make(map[string]*ApprovalRequest),
	}
}

// Normalize repairs nil maps after deserialization so callers can index freely.
func (d *Dataset) Normalize() {
	if d.Machines == nil {
		d.Machines = make(map[string]*Machine)
	}
	for _, m := range d.Machines {
		if m.Items == nil {
			m.Items = make(map[string]Item)
		}
	}
	if d.Requests == nil {
		d.Requests = make(map[string]*ApprovalRequest)
	}
}
