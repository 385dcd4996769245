package hub

import "parley/internal/models"

type audienceKind int

const (
	audienceCaller audienceKind = iota
	audienceConnections
	audienceRoom
	audienceEveryone
)

// Audience selects the connections an event is delivered to. It is
// resolved against live state only after the handler has finished mutating.
type Audience struct {
	kind        audienceKind
	roomID      string
	connections []string
	except      string
}

// toCaller addresses the connection that sent the inbound event.
func toCaller() Audience {
	return Audience{kind: audienceCaller}
}

// toConnections addresses specific connections regardless of subscriptions.
func toConnections(connections ...string) Audience {
	return Audience{kind: audienceConnections, connections: connections}
}

// toRoom addresses the room's subscribers, plus the live participants of a
// private room.
func toRoom(roomID string) Audience {
	return Audience{kind: audienceRoom, roomID: roomID}
}

// toEveryone addresses every connected session.
func toEveryone() Audience {
	return Audience{kind: audienceEveryone}
}

func (a Audience) butNot(connection string) Audience {
	a.except = connection
	return a
}

// Delivery pairs an outbound event with its audience.
type Delivery struct {
	To    Audience
	Event models.ServerEvent
}

func deliver(to Audience, typ models.ServerEventType, payload any) Delivery {
	return Delivery{
		To:    to,
		Event: models.ServerEvent{Type: typ, Payload: payload},
	}
}

func errorEvent(err error) models.ServerEvent {
	return models.ServerEvent{
		Type: models.ServerEventError,
		Payload: models.ErrorPayload{
			Kind:   models.KindOf(err),
			Detail: err.Error(),
		},
	}
}
