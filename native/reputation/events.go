package reputation

import (
	"encoding/hex"
	"strconv"

	"lendchain/core/types"
)

const (
	// EventTypeReputationAdjusted is emitted whenever a score changes.
	EventTypeReputationAdjusted = "reputation.adjusted"
)

// AdjustedEvent wraps a reputation change for the event pipeline.
type AdjustedEvent struct {
	evt *types.Event
}

// EventType implements events.Event.
func (e AdjustedEvent) EventType() string { return EventTypeReputationAdjusted }

// Event returns the canonical payload.
func (e AdjustedEvent) Event() *types.Event { return e.evt }

// NewAdjustedEvent returns the canonical event payload for a change.
func NewAdjustedEvent(change Change, reason string) AdjustedEvent {
	attrs := map[string]string{
		"role":    change.Role.String(),
		"address": hex.EncodeToString(change.Address[:]),
		"delta":   strconv.FormatInt(change.Delta, 10),
		"before":  strconv.FormatInt(change.Before, 10),
		"after":   strconv.FormatInt(change.After, 10),
	}
	if reason != "" {
		attrs["reason"] = reason
	}
	return AdjustedEvent{evt: &types.Event{Type: EventTypeReputationAdjusted, Attributes: attrs}}
}
