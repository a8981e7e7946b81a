package protocol

import (
	"encoding/json"
	"fmt"
)

// Decode parses one inbound record.
// Payloads that are not JSON objects, or whose "type" is not a string, return ErrMalformed.
// A record without a type decodes to Unknown{}.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var t string
	if raw, ok := fields["type"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("%w: type is not a string", ErrMalformed)
		}
	}

	if IsRelayType(Type(t)) {
		// A non-string target cannot name a registered peer; it is kept in the
		// raw fields and the relay is treated as untargeted.
		var target string
		if raw, ok := fields["target"]; ok {
			_ = json.Unmarshal(raw, &target)
		}
		return Relay{Kind: Type(t), Target: target, fields: fields}, nil
	}

	switch Type(t) {
	case TypeRegister:
		id, err := optionalString(fields, "nodeId")
		if err != nil {
			return nil, err
		}
		return Register{NodeID: id}, nil
	case TypePeers:
		var peers []string
		if raw, ok := fields["peers"]; ok && !isNull(raw) {
			if err := json.Unmarshal(raw, &peers); err != nil {
				return nil, fmt.Errorf("%w: peers: %v", ErrMalformed, err)
			}
		}
		return Peers{Peers: peers}, nil
	case TypeNewPeer:
		id, err := optionalString(fields, "nodeId")
		if err != nil {
			return nil, err
		}
		return NewPeer{NodeID: id}, nil
	case TypePeerDisconnected:
		id, err := optionalString(fields, "nodeId")
		if err != nil {
			return nil, err
		}
		return PeerDisconnected{NodeID: id}, nil
	case TypePing:
		return Ping{}, nil
	default:
		return Unknown{Name: t}, nil
	}
}

// Encode serializes a message to its JSON wire form.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Register:
		return json.Marshal(nodeIDRecord{Type: TypeRegister, NodeID: m.NodeID})
	case Peers:
		peers := m.Peers
		if peers == nil {
			peers = []string{}
		}
		return json.Marshal(peersRecord{Type: TypePeers, Peers: peers})
	case NewPeer:
		return json.Marshal(nodeIDRecord{Type: TypeNewPeer, NodeID: m.NodeID})
	case PeerDisconnected:
		return json.Marshal(nodeIDRecord{Type: TypePeerDisconnected, NodeID: m.NodeID})
	case Ping:
		return json.Marshal(typeRecord{Type: TypePing})
	case Relay:
		fields := make(map[string]json.RawMessage, len(m.fields)+1)
		for k, v := range m.fields {
			fields[k] = v
		}
		raw, err := json.Marshal(m.Kind)
		if err != nil {
			return nil, err
		}
		fields["type"] = raw
		return json.Marshal(fields)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, msg)
	}
}

type typeRecord struct {
	Type Type `json:"type"`
}

type nodeIDRecord struct {
	Type   Type   `json:"type"`
	NodeID string `json:"nodeId"`
}

type peersRecord struct {
	Type  Type     `json:"type"`
	Peers []string `json:"peers"`
}

func optionalString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformed, name)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
