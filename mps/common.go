// Package mps implements the cryptographic core of the multi-party signing
// protocol: the signer list binding, the per-signer share production, the
// verification of shares and aggregates, and the share aggregation.
package mps

import "strconv"

// Custom TLV types for the multi-party signing protocol packet encoding.
// The values are part of the wire contract and must not change.
const (
	TypeEcdhPub              uint32 = 145
	TypeSalt                 uint32 = 149
	TypeInitializationVector uint32 = 157
	TypeEncryptedPayload     uint32 = 159
	TypeAuthenticationTag    uint32 = 175

	TypeMpsSignerList     uint32 = 200
	TypeStatus            uint32 = 203
	TypeParameterDataName uint32 = 205
	TypeResultAfter       uint32 = 209
	TypeResultName        uint32 = 211
	TypeBLSSigValue       uint32 = 213
)

// SignatureSha256WithBls is the signature type value of a BLS signature over
// the SHA-256 canonical form of a packet.
const SignatureSha256WithBls uint64 = 64

// ReplyCode is the HTTP-like status code of a protocol reply.
type ReplyCode int

// Reply status codes.
const (
	Processing       ReplyCode = 102
	OK               ReplyCode = 200
	BadRequest       ReplyCode = 400
	Unauthorized     ReplyCode = 401
	NotFound         ReplyCode = 404
	FailedDependency ReplyCode = 424
	InternalError    ReplyCode = 500
	Unavailable      ReplyCode = 503
)

// String returns the decimal form used on the wire inside the Status TLV.
func (c ReplyCode) String() string {
	return strconv.Itoa(int(c))
}

// ParseReplyCode parses the decimal wire form of a reply code.
func ParseReplyCode(str string) (ReplyCode, error) {
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, err
	}

	return ReplyCode(v), nil
}
