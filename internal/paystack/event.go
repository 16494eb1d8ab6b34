package paystack

import (
	"encoding/json"
	"fmt"
)

// Event is a webhook notification.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData is the subset of a charge event the wallet needs.
type EventData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook: %w", err)
	}
	return ev, nil
}
