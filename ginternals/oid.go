package ginternals

import (
	"crypto/sha1" //nolint:gosec // git's object model is defined in terms of SHA-1
	"encoding/hex"
	"regexp"

	"golang.org/x/xerrors"
)

// OidSize is the length, in bytes, of a raw Oid
const OidSize = 20

// NullOid is the zero-value Oid
var NullOid = Oid{}

// isHashRegex matches a 40 character lowercase hex SHA-1, which is the
// only OID shape this package understands
var isHashRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Oid represents a Git Object ID: the SHA-1 of an object's canonical
// framed representation
type Oid [OidSize]byte

// NewOidFromHex builds an Oid from a raw 20-byte slice
func NewOidFromHex(raw []byte) (Oid, error) {
	if len(raw) != OidSize {
		return NullOid, xerrors.Errorf("oid must be %d bytes, got %d: %w", OidSize, len(raw), ErrMalformedObject)
	}
	var o Oid
	copy(o[:], raw)
	return o, nil
}

// NewOidFromChars builds an Oid from its 40-character hex
// representation, provided as a byte slice
func NewOidFromChars(id []byte) (Oid, error) {
	return NewOidFromString(string(id))
}

// NewOidFromString builds an Oid from its 40-character hex
// representation
func NewOidFromString(id string) (Oid, error) {
	if !IsHash(id) {
		return NullOid, xerrors.Errorf("%q is not a valid oid: %w", id, ErrMalformedObject)
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return NullOid, xerrors.Errorf("could not decode oid %q: %w", id, err)
	}
	return NewOidFromHex(raw)
}

// NewOidFromContent returns the Oid of the given (already framed)
// content
func NewOidFromContent(data []byte) Oid {
	return Oid(sha1.Sum(data)) //nolint:gosec // SHA-1 is part of the git object format, not used for cryptographic purposes here
}

// IsHash returns whether s has the shape of a valid Oid: 40 lowercase
// hexadecimal characters
func IsHash(s string) bool {
	return isHashRegex.MatchString(s)
}

// Bytes returns the raw Oid as a 20-byte slice.
// This is different from []byte(oid.String()): that would return the
// 40-character hex encoding instead of the raw bytes.
func (o Oid) Bytes() []byte {
	return o[:]
}

// String returns the 40-character lowercase hex encoding of the Oid
func (o Oid) String() string {
	return hex.EncodeToString(o[:])
}

// IsZero returns whether the Oid is the zero-value NullOid
func (o Oid) IsZero() bool {
	return o == NullOid
}
