// Package gateway speaks the hosted-checkout wire format: HMAC signatures
// over a named field list and the signed checkout payload.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	FieldSignedNames   = "signed_field_names"
	FieldUnsignedNames = "unsigned_field_names"
	FieldSignature     = "signature"
)

var (
	ErrMissingSignedFields = errors.New("missing_signed_field_names")
	ErrMissingField        = errors.New("missing_signed_field")
)

// Sign computes base64(HMAC-SHA256(secret, "k1=v1,k2=v2,...")) over the
// keys listed in fields["signed_field_names"], in listed order.
func Sign(fields map[string]string, secret string) (string, error) {
	names := strings.TrimSpace(fields[FieldSignedNames])
	if names == "" {
		return "", ErrMissingSignedFields
	}

	parts := make([]string, 0, strings.Count(names, ",")+1)
	for _, name := range strings.Split(names, ",") {
		value, ok := fields[name]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingField, name)
		}
		parts = append(parts, name+"="+value)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(parts, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it with fields["signature"]
// in constant time.
func Verify(fields map[string]string, secret string) bool {
	got := fields[FieldSignature]
	if got == "" {
		return false
	}
	want, err := Sign(fields, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}

// SignedFieldNames lists every key except the signature, plus
// signed_field_names itself, sorted.
func SignedFieldNames(fields map[string]string) string {
	names := make([]string, 0, len(fields)+1)
	for k := range fields {
		if k == FieldSignature || k == FieldSignedNames {
			continue
		}
		names = append(names, k)
	}
	names = append(names, FieldSignedNames)
	sort.Strings(names)
	return strings.Join(names, ",")
}
