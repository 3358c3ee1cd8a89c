package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ReferenceHeader starts every reference number this system issues.
const ReferenceHeader = "BOOTCAMP-"

var (
	ErrReferenceMismatch = errors.New("reference_mismatch")
	ErrParseFailure      = errors.New("reference_parse_failure")
	ErrInvalidPrefix     = errors.New("invalid_reference_prefix")
)

// ReferenceCodec maps order ids to BOOTCAMP-<prefix>-<id> and back. The
// prefix keeps references from one environment from matching another's.
type ReferenceCodec struct {
	prefix string
}

func NewReferenceCodec(prefix string) (ReferenceCodec, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ReferenceCodec{}, ErrInvalidPrefix
	}
	return ReferenceCodec{prefix: prefix}, nil
}

func (c ReferenceCodec) Prefix() string { return c.prefix }

func (c ReferenceCodec) Encode(orderID snowflake.ID) string {
	return ReferenceHeader + c.prefix + "-" + orderID.String()
}

// Decode returns the order id in ref. The prefix may itself contain dashes;
// the id is whatever follows the last one.
func (c ReferenceCodec) Decode(ref string) (snowflake.ID, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, ReferenceHeader) {
		return 0, ErrParseFailure
	}
	body := strings.TrimPrefix(ref, ReferenceHeader)
	i := strings.LastIndexByte(body, '-')
	if i < 0 {
		return 0, ErrParseFailure
	}
	if body[:i] != c.prefix {
		return 0, ErrReferenceMismatch
	}
	id, err := strconv.ParseInt(body[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrParseFailure
	}
	return snowflake.ID(id), nil
}
