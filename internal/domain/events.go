package domain

import (
	"strconv"
	"time"
)

// EventTypeMovementCommitted is the type of every published movement event.
const EventTypeMovementCommitted = "movement.committed"

// MovementEvent is the published form of a committed record.
type MovementEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Seq           int64  `json:"seq"`
	Kind          string `json:"kind"`
	Base          string `json:"base"`
	EquipmentType string `json:"equipment_type"`
	Leg           string `json:"leg,omitempty"`
	Counterparty  string `json:"counterparty_base,omitempty"`
	TransferID    string `json:"transfer_id,omitempty"`
	Quantity      int64  `json:"quantity"`
	Personnel     string `json:"personnel,omitempty"`
	Notes         string `json:"notes,omitempty"`
	OccurredAt    string `json:"occurred_at,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}

// NewMovementEvent converts a committed record to its event payload.
func NewMovementEvent(id string, rec Transaction) MovementEvent {
	ev := MovementEvent{
		ID:            id,
		Type:          EventTypeMovementCommitted,
		Seq:           rec.Seq,
		Kind:          string(rec.Kind),
		Base:          rec.Account.Base,
		EquipmentType: rec.Account.EquipmentType,
		Leg:           string(rec.Leg),
		Counterparty:  rec.Counterparty.Base,
		TransferID:    rec.TransferID,
		Quantity:      rec.Quantity,
		Personnel:     rec.Personnel,
		Notes:         rec.Notes,
		RecordedAt:    rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}

	if !rec.OccurredAt.IsZero() {
		ev.OccurredAt = rec.OccurredAt.UTC().Format(DateLayout)
	}

	return ev
}

// Values flattens the event into field/value pairs for stream transports.
func (e MovementEvent) Values() map[string]any {
	values := map[string]any{
		"id":             e.ID,
		"type":           e.Type,
		"seq":            strconv.FormatInt(e.Seq, 10),
		"kind":           e.Kind,
		"base":           e.Base,
		"equipment_type": e.EquipmentType,
		"quantity":       strconv.FormatInt(e.Quantity, 10),
		"recorded_at":    e.RecordedAt,
	}

	optional := map[string]string{
		"leg":               e.Leg,
		"counterparty_base": e.Counterparty,
		"transfer_id":       e.TransferID,
		"personnel":         e.Personnel,
		"notes":             e.Notes,
		"occurred_at":       e.OccurredAt,
	}
	for k, v := range optional {
		if v != "" {
			values[k] = v
		}
	}

	return values
}
