package keycodec

import (
	"testing"

	"github.com/akostadinov/chunchun/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVariants(t *testing.T) {
	cases := []struct {
		name string
		key  Key
		want string
	}{
		{"short", Short(-7), "\uFEFF1-7"},
		{"byte", Byte(12), "\uFEFF212"},
		{"long", Long(1 << 40), "\uFEFF31099511627776"},
		{"int", Int(42), "\uFEFF442"},
		{"double", Double(1.5), "\uFEFF51.5"},
		{"float", Float(0.25), "\uFEFF60.25"},
		{"bool", Bool(true), "\uFEFF7true"},
		{"bytes", Bytes("hi"), "\uFEFF8aGk="},
		{"post", Post(types.PostKey{Owner: "alice", Timestamp: 255}), "\uFEFFpff:alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.key)
			assert.Equal(t, tc.want, encoded)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.key, decoded)
		})
	}
}

func TestStringPassesThrough(t *testing.T) {
	assert.Equal(t, "user1", Encode(String("user1")))

	k, err := Decode("user1")
	require.NoError(t, err)
	assert.Equal(t, String("user1"), k)
}

func TestEncodePostMatchesCanonicalString(t *testing.T) {
	key := types.PostKey{Owner: "alice", Timestamp: 255}
	assert.Equal(t, "\uFEFFp"+key.String(), EncodePost(key))

	back, err := DecodePost(EncodePost(key))
	require.NoError(t, err)
	assert.Equal(t, key, back)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode("\uFEFFz123")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrMalformed)

	_, err = Decode("\uFEFF")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeMalformedPayload(t *testing.T) {
	for _, s := range []string{
		"\uFEFF1notanumber",
		"\uFEFF2300",
		"\uFEFF7maybe",
		"\uFEFF8***",
		"\uFEFFpnocolon",
	} {
		_, err := Decode(s)
		assert.ErrorIs(t, err, ErrUnsupported, s)
		assert.ErrorIs(t, err, ErrMalformed, s)
	}
}

func TestDecodePostRejectsOtherVariants(t *testing.T) {
	_, err := DecodePost(Encode(Long(3)))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = DecodePost("plain")
	assert.ErrorIs(t, err, ErrUnsupported)
}
