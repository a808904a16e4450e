package settlement

import "time"

// Job evento "callback recibido" que viaja por la cola de liquidación.
type Job struct {
	ID         string    `json:"id"`
	CheckoutID string    `json:"checkout_id"`
	Callback   Callback  `json:"callback"`
	Source     string    `json:"source"` // callback | query
	Attempt    int       `json:"attempt"`
	ReceivedAt time.Time `json:"received_at"`
}

// Orígenes de un Job.
const (
	SourceCallback = "callback"
	SourceQuery    = "query"
)
