// Package ws provides the realtime backbone shared by the wait-list and
// scheduler hubs: clients wrapping WebSocket connections, a clinic-keyed
// broadcast hub, and a queue dispatcher draining inbound messages with a
// single consumer goroutine.
package ws

import "encoding/json"

// Message is the wire envelope both hubs speak. The message type is a
// numeric enum owned by each hub; the payload stays raw until the hub
// decodes it.
type Message struct {
	Type     int             `json:"messageType"`
	ClinicID int64           `json:"clinicId"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an envelope, marshaling data into the payload.
// A nil data leaves the payload empty.
func NewMessage(msgType int, clinicID int64, data interface{}) (Message, error) {
	msg := Message{Type: msgType, ClinicID: clinicID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// ErrorData is the payload of typed error messages.
type ErrorData struct {
	Error string `json:"error"`
}
