package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "****cdef", MaskSecret("0123456789abcdef"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@example.com", MaskEmail("alice@example.com"))
	assert.Equal(t, "****", MaskEmail("nope"))
}

func TestMaskFieldsNested(t *testing.T) {
	in := map[string]any{
		"signature": "abcdefghijklmnop",
		"decision":  "ACCEPT",
		"nested": map[string]any{
			"Access_Token": "tok_1234567890",
			"count":        3,
		},
	}

	out := MaskFields(in, "signature", "access_token")

	assert.Equal(t, "****mnop", out["signature"])
	assert.Equal(t, "ACCEPT", out["decision"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "****7890", nested["Access_Token"])
	assert.Equal(t, 3, nested["count"])
	assert.Equal(t, "abcdefghijklmnop", in["signature"], "input must not be mutated")
}
