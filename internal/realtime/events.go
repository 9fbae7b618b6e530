// README: Event names, room naming and the wire envelope of the realtime bus.
package realtime

import (
	"encoding/json"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/types"
)

const (
	EventPickupCreated      = "pickup-created"
	EventPickupUpdated      = "pickup-updated"
	EventPickupDeleted      = "pickup-deleted"
	EventPickupAssigned     = "pickup-assigned"
	EventPickupAssignedUser = "pickup-assigned-user"
	EventPickupCompleted    = "pickup-completed"
	EventPointsAwarded      = "points-awarded"

	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventError         = "error"
)

const OperatorsRoom = "operators"

func UserRoom(id types.ID) string {
	return "user:" + string(id)
}

// Envelope is the frame exchanged over the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire frame for event with payload as data.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type AuthenticatedPayload struct {
	UserID types.ID `json:"userId"`
	Rooms  []string `json:"rooms"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
