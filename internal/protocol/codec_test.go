package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Register(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"register","nodeId":"alpha"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{NodeID: "alpha"}, msg)
}

func TestDecode_RegisterWithoutNodeID(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"register"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{}, msg)
}

func TestDecode_RelayKeepsFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"offer","target":"beta","sdp":{"type":"offer","sdp":"v=0"},"extra":[1,2]}`))
	require.NoError(t, err)

	relay, ok := msg.(Relay)
	require.True(t, ok)
	assert.Equal(t, TypeOffer, relay.Type())
	assert.Equal(t, "beta", relay.Target)

	require.Contains(t, relay.fields, "sdp")
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(relay.fields["sdp"]))
	require.Contains(t, relay.fields, "extra")
	assert.JSONEq(t, `[1,2]`, string(relay.fields["extra"]))
}

func TestDecode_RelayNonStringTarget(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"answer","target":42}`))
	require.NoError(t, err)
	relay, ok := msg.(Relay)
	require.True(t, ok)
	assert.Empty(t, relay.Target)
}

func TestDecode_AllRelayKinds(t *testing.T) {
	for _, kind := range []Type{TypeOffer, TypeAnswer, TypeICECandidate} {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := Decode([]byte(`{"type":"` + string(kind) + `","target":"x"}`))
			require.NoError(t, err)
			assert.Equal(t, kind, msg.Type())
			assert.IsType(t, Relay{}, msg)
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Name: "hello"}, msg)

	msg, err = Decode([]byte(`{"nodeId":"alpha"}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{}, msg)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{not json`},
		{"empty", ``},
		{"array", `[1,2,3]`},
		{"string", `"register"`},
		{"null", `null`},
		{"number type", `{"type":7}`},
		{"number nodeId", `{"type":"register","nodeId":7}`},
		{"bad peers", `{"type":"peers","peers":"alpha"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.data))
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestEncode_ServerMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"peers", Peers{Peers: []string{"a", "b"}}, `{"type":"peers","peers":["a","b"]}`},
		{"empty peers", Peers{}, `{"type":"peers","peers":[]}`},
		{"new peer", NewPeer{NodeID: "a"}, `{"type":"new_peer","nodeId":"a"}`},
		{"disconnected", PeerDisconnected{NodeID: "a"}, `{"type":"peer_disconnected","nodeId":"a"}`},
		{"ping", Ping{}, `{"type":"ping"}`},
		{"register", Register{NodeID: "a"}, `{"type":"register","nodeId":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_Unknown(t *testing.T) {
	_, err := Encode(Unknown{Name: "hello"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRelay_WithSourceOverwrites(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"ice-candidate","target":"beta","source":"mallory","candidate":{"candidate":"c1"}}`))
	require.NoError(t, err)
	relay := msg.(Relay)

	out := relay.WithSource("alpha")
	src, ok := out.Source()
	require.True(t, ok)
	assert.Equal(t, "alpha", src)

	// original untouched
	src, ok = relay.Source()
	require.True(t, ok)
	assert.Equal(t, "mallory", src)

	data, err := Encode(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ice-candidate","target":"beta","source":"alpha","candidate":{"candidate":"c1"}}`, string(data))
}

func TestRelay_WithEmptySourceIsNull(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"offer","target":"beta","sdp":"v=0"}`))
	require.NoError(t, err)
	relay := msg.(Relay)

	data, err := Encode(relay.WithSource(""))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	v, ok := decoded["source"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "v=0", decoded["sdp"])
}

func TestIsRelayType(t *testing.T) {
	for _, kind := range []Type{TypeOffer, TypeAnswer, TypeICECandidate} {
		assert.True(t, IsRelayType(kind), kind)
	}
	for _, kind := range []Type{TypeRegister, TypePeers, TypeNewPeer, TypePeerDisconnected, TypePing, ""} {
		assert.False(t, IsRelayType(kind), kind)
	}
}
