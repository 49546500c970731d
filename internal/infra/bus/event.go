package bus

import "encoding/json"

// Event is the wire envelope delivered to subscribers: the channel it was
// published on, the event name, and the JSON payload.
type Event struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives every event the bus delivers locally. Implementations
// must not block; delivery is fire-and-forget.
type Handler interface {
	Deliver(ev Event)
}

// Envelope marshals a payload into an Event.
func Envelope(channel, event string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Channel: channel, Event: event, Payload: raw}, nil
}
