package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Wire schema of a purchase-requests record. Exactly three fields are
// read; anything else in the payload is ignored.
type purchaseMsg struct {
	UserID   string `json:"userId"`
	EventID  string `json:"eventId"`
	Quantity *int   `json:"quantity"`
}

type purchaseRequest struct {
	UserID   string
	EventID  uuid.UUID
	Quantity int
}

// parsePurchase validates the raw payload. Any failure here routes the
// record to the dead-letter channel verbatim.
func parsePurchase(payload []byte) (purchaseRequest, error) {
	var msg purchaseMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return purchaseRequest{}, fmt.Errorf("invalid json: %w", err)
	}
	if msg.UserID == "" {
		return purchaseRequest{}, fmt.Errorf("missing userId")
	}
	if msg.EventID == "" {
		return purchaseRequest{}, fmt.Errorf("missing eventId")
	}
	if msg.Quantity == nil {
		return purchaseRequest{}, fmt.Errorf("missing quantity")
	}
	if *msg.Quantity <= 0 {
		return purchaseRequest{}, fmt.Errorf("quantity must be positive")
	}
	eventID, err := uuid.Parse(msg.EventID)
	if err != nil {
		return purchaseRequest{}, fmt.Errorf("invalid eventId: %w", err)
	}
	return purchaseRequest{UserID: msg.UserID, EventID: eventID, Quantity: *msg.Quantity}, nil
}
