// Package change defines the log entries the node manager replays to bring
// a Node up to date, and the claim identifier derivation rules from §3 and
// §4.1 of the protocol.
package change

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// ClaimIDSize is the width, in bytes, of a ClaimID (160 bits).
const ClaimIDSize = 20

var errInvalidClaimIDLength = errors.New("invalid claim id length")

// ClaimID identifies a claim across updates; it is stable even though the
// underlying outpoint changes on every update.
type ClaimID [ClaimIDSize]byte

// NewClaimID derives a fresh ClaimID for a newly created claim:
// RIPEMD160(SHA256(SHA256(txHash || outputIndex))).
func NewClaimID(op wire.OutPoint) ClaimID {
	var buf [36]byte
	copy(buf[:32], op.Hash[:])
	buf[32] = byte(op.Index)
	buf[33] = byte(op.Index >> 8)
	buf[34] = byte(op.Index >> 16)
	buf[35] = byte(op.Index >> 24)

	h := chainhash.DoubleHashB(buf[:])
	r := ripemd160.New()
	r.Write(h)

	var id ClaimID
	copy(id[:], r.Sum(nil))
	return id
}

// IsZero reports whether the id is the zero value, used as the "no claim"
// sentinel in takeover records.
func (id ClaimID) IsZero() bool {
	return id == ClaimID{}
}

// String renders the id as lowercase hex, matching how claim ids are
// displayed and accepted at the RPC boundary.
func (id ClaimID) String() string {
	return hex.EncodeToString(id[:])
}

// NewIDFromString parses a claim id previously produced by String.
func NewIDFromString(s string) (ClaimID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ClaimID{}, err
	}
	if len(b) != ClaimIDSize {
		return ClaimID{}, errInvalidClaimIDLength
	}
	var id ClaimID
	copy(id[:], b)
	return id, nil
}

// Type enumerates the kinds of mutation the node manager can replay.
type Type int

const (
	_ Type = iota
	// AddClaim creates a brand-new claim.
	AddClaim
	// UpdateClaim rewrites an existing claim's outpoint/amount while
	// keeping its ClaimID, triggering the zero-delay update path of
	// §4.6.
	UpdateClaim
	// SpendClaim removes a claim outright (spec's removeClaim).
	SpendClaim
	// AddSupport creates a support pledged to an existing claim.
	AddSupport
	// SpendSupport removes a support (spec's removeSupport).
	SpendSupport
)

func (t Type) String() string {
	switch t {
	case AddClaim:
		return "AddClaim"
	case UpdateClaim:
		return "UpdateClaim"
	case SpendClaim:
		return "SpendClaim"
	case AddSupport:
		return "AddSupport"
	case SpendSupport:
		return "SpendSupport"
	default:
		return "Unknown"
	}
}

// Change is a single log entry applied to a node by its Manager. Name is the
// raw (pre-normalization) name; node.NormalizingManager normalizes it into
// nodeName when the fork in §9 applies.
type Change struct {
	Type Type

	Height int32

	Name     []byte
	ClaimID  ClaimID
	OutPoint wire.OutPoint

	Amount   int64
	Metadata []byte

	// ActiveHeight optionally pins validHeight (the spec's validHeight?
	// parameter); zero means "compute via the activation-delay rule".
	ActiveHeight int32
}
