// Package protocol defines the signaling wire messages exchanged between peers and the hub.
//
// Every message is a JSON object with a required "type" string. Inbound records are
// decoded into one concrete Message variant per type so that dispatch is a type switch.
// Relay messages (offer, answer, ice-candidate) keep every field they arrived with;
// the hub only rewrites "source" before forwarding.
package protocol

import (
	"encoding/json"
	"errors"
)

// Type is the value of the "type" field of a signaling message.
type Type string

// Message types understood by the hub.
const (
	TypeRegister         Type = "register"
	TypePeers            Type = "peers"
	TypeNewPeer          Type = "new_peer"
	TypePeerDisconnected Type = "peer_disconnected"
	TypeOffer            Type = "offer"
	TypeAnswer           Type = "answer"
	TypeICECandidate     Type = "ice-candidate"
	TypePing             Type = "ping"
)

var (
	// ErrMalformed is returned when a payload is not a JSON object or a known field has the wrong shape.
	ErrMalformed = errors.New("malformed message")
	// ErrUnsupported is returned by Encode for values it cannot serialize.
	ErrUnsupported = errors.New("unsupported message")
)

// IsRelayType reports whether t is forwarded verbatim between peers.
func IsRelayType(t Type) bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// Message is implemented by every decoded signaling message.
type Message interface {
	Type() Type
	isMessage()
}

// Register announces the identity of the sending connection.
type Register struct {
	NodeID string
}

// Peers is sent to a newly registered peer with the identities already present.
type Peers struct {
	Peers []string
}

// NewPeer tells existing peers that NodeID joined.
type NewPeer struct {
	NodeID string
}

// PeerDisconnected tells remaining peers that NodeID left.
type PeerDisconnected struct {
	NodeID string
}

// Ping is the server keep-alive message.
type Ping struct{}

// Unknown carries any type the hub does not handle. It is never forwarded.
type Unknown struct {
	Name string
}

func (Register) Type() Type         { return TypeRegister }
func (Peers) Type() Type            { return TypePeers }
func (NewPeer) Type() Type          { return TypeNewPeer }
func (PeerDisconnected) Type() Type { return TypePeerDisconnected }
func (Ping) Type() Type             { return TypePing }
func (u Unknown) Type() Type        { return Type(u.Name) }

func (Register) isMessage()         {}
func (Peers) isMessage()            {}
func (NewPeer) isMessage()          {}
func (PeerDisconnected) isMessage() {}
func (Ping) isMessage()             {}
func (Unknown) isMessage()          {}

// Relay is an offer, answer or ice-candidate. Fields holds the raw record so that
// everything the sender put in it survives forwarding unchanged.
type Relay struct {
	Kind   Type
	Target string
	fields map[string]json.RawMessage
}

// Type implements Message.
func (r Relay) Type() Type { return r.Kind }
func (Relay) isMessage()   {}

// Source returns the "source" field if it is a string.
func (r Relay) Source() (string, bool) {
	raw, ok := r.fields["source"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// WithSource returns a copy of r whose "source" field is source, or JSON null
// when source is empty. The receiver is not modified.
func (r Relay) WithSource(source string) Relay {
	fields := make(map[string]json.RawMessage, len(r.fields)+1)
	for k, v := range r.fields {
		fields[k] = v
	}
	if source == "" {
		fields["source"] = json.RawMessage("null")
	} else {
		raw, _ := json.Marshal(source)
		fields["source"] = raw
	}
	return Relay{Kind: r.Kind, Target: r.Target, fields: fields}
}
