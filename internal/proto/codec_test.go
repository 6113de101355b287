package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Name(t *testing.T) {
	assert.Equal(t, "cbor", Codec{}.Name())
}

func TestCodec_PushRequestRoundTrip(t *testing.T) {
	in := &PushRequest{
		Kind: "product",
		Records: []WireRecord{
			{LocalID: 3, LastModifiedAt: 100, Payload: json.RawMessage(`{"name":"Rice","stock":4,"price":12.5,"unit":"kg"}`)},
			{LocalID: 4, ServerID: 7, LastModifiedAt: 300, Tombstoned: true},
		},
	}

	b, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := &PushRequest{}
	require.NoError(t, Codec{}.Unmarshal(b, out))
	assert.Equal(t, in, out)
}

func TestCodec_PullWatermarkNilAndSet(t *testing.T) {
	var c Codec

	b, err := c.Marshal(&PullRequest{Kind: "service"})
	require.NoError(t, err)
	out := &PullRequest{}
	require.NoError(t, c.Unmarshal(b, out))
	assert.Nil(t, out.Watermark)

	wm := int64(1700000000000)
	b, err = c.Marshal(&PullRequest{Kind: "service", Watermark: &wm})
	require.NoError(t, err)
	out = &PullRequest{}
	require.NoError(t, c.Unmarshal(b, out))
	require.NotNil(t, out.Watermark)
	assert.Equal(t, wm, *out.Watermark)
}

func TestCodec_Deterministic(t *testing.T) {
	ev := &SyncEvent{Kind: "transaction", ServerTime: 5, Records: []WireRecord{{ServerID: 1, LastModifiedAt: 2}}}
	a, err := Codec{}.Marshal(ev)
	require.NoError(t, err)
	b, err := Codec{}.Marshal(ev)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCodec_UnmarshalGarbage(t *testing.T) {
	err := Codec{}.Unmarshal([]byte{0xff, 0x00, 0x13}, &PushResponse{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cbor unmarshal")
}

func TestWireRecord_JSONShape(t *testing.T) {
	b, err := json.Marshal(WireRecord{LocalID: 1, ServerID: 7, LastModifiedAt: 100, Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"localId":1,"serverId":7,"lastModifiedAt":100,"payload":{"a":1}}`, string(b))
}
