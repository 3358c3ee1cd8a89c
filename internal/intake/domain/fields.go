package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/smallbiznis/bootcamp/pkg/money"
)

// Fields is a decoded JSON object whose values are read lazily, so that a
// key that is absent can be told apart from one that is null.
type Fields map[string]json.RawMessage

func DecodeFields(body []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrParse)
	}
	return f, nil
}

func (f Fields) empty(key string) (raw json.RawMessage, present, blank bool) {
	raw, present = f[key]
	if !present {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(raw)
	return trimmed, true, len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == `""`
}

// String accepts JSON strings and numbers. Missing and null give "".
func (f Fields) String(key string) (string, error) {
	raw, _, blank := f.empty(key)
	if blank {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: %s is not a string", ErrParse, key)
}

// Require is String for mandatory keys.
func (f Fields) Require(key string) (string, error) {
	s, err := f.String(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrParse, key)
	}
	return s, nil
}

// Int reads an integer that may be quoted. Missing and null give nil.
func (f Fields) Int(key string) (*int64, error) {
	s, err := f.String(key)
	if err != nil || s == "" {
		return nil, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not an integer", ErrParse, key)
	}
	return &n, nil
}

// Amount reads a decimal. cleared reports a key that is present but null or
// empty.
func (f Fields) Amount(key string) (amount *money.Amount, cleared bool, err error) {
	_, present, blank := f.empty(key)
	if blank {
		return nil, present, nil
	}
	s, err := f.String(key)
	if err != nil {
		return nil, false, err
	}
	a, err := money.Parse(s)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrParse, key, err)
	}
	if a.IsNegative() {
		return nil, false, fmt.Errorf("%w: %s is negative", ErrParse, key)
	}
	return &a, false, nil
}
