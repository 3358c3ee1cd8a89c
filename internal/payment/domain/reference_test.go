package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceRoundTrip(t *testing.T) {
	for _, prefix := range []string{"prod", "stage-eu", "a"} {
		codec, err := NewReferenceCodec(prefix)
		require.NoError(t, err)
		for _, id := range []snowflake.ID{1, 42, 1891231231231231231} {
			got, err := codec.Decode(codec.Encode(id))
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestReferenceDecodeRejects(t *testing.T) {
	codec, err := NewReferenceCodec("prod")
	require.NoError(t, err)

	cases := map[string]error{
		"":                                   ErrParseFailure,
		"ORDER-prod-1":                       ErrParseFailure,
		"BOOTCAMP-prod":                      ErrParseFailure,
		"BOOTCAMP-test-1":                    ErrReferenceMismatch,
		"BOOTCAMP-prod-x-1":                  ErrReferenceMismatch,
		"BOOTCAMP-prod-":                     ErrParseFailure,
		"BOOTCAMP-prod-abc":                  ErrParseFailure,
		"BOOTCAMP-prod-0":                    ErrParseFailure,
		"BOOTCAMP-prod-1.5":                  ErrParseFailure,
		"BOOTCAMP-prod-99999999999999999999": ErrParseFailure,
	}
	for ref, want := range cases {
		_, err := codec.Decode(ref)
		assert.ErrorIs(t, err, want, ref)
	}
}

func TestNewReferenceCodecRequiresPrefix(t *testing.T) {
	_, err := NewReferenceCodec(" ")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
}
