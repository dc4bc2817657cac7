package node

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/lbryio/lbcd/claimtrie/change"
)

// InsertUndo records the prior validHeight of a claim or support that was
// rewritten by the early-activation sweep (§4.6), so decrementBlock can put
// it back (§3 UndoRecord "insert" variant, §4.8 step 2).
type InsertUndo struct {
	Name             []byte
	OutPoint         wire.OutPoint
	PriorValidHeight int32
}

// ClaimExpireUndo records a claim that SpendClaim removed from its node
// during this block, so decrementBlock can append the saved claim back
// (§4.8 step 3, §3 UndoRecord "claimExpire"). Claims that merely pass
// their expirationHeight stay in the row and produce no entry.
type ClaimExpireUndo struct {
	Name  []byte
	Claim Claim
}

// SupportExpireUndo is the support-side twin of ClaimExpireUndo.
type SupportExpireUndo struct {
	Name    []byte
	Support Support
}

// ClaimCreateUndo marks that chg.Type == AddClaim created a brand new claim
// row this block (no prior claim with that ClaimID existed), so
// decrementBlock can delete it outright rather than restore a prior state.
type ClaimCreateUndo struct {
	Name     []byte
	ClaimID  change.ClaimID
	OutPoint wire.OutPoint
}

// SupportCreateUndo is the support-side twin of ClaimCreateUndo.
type SupportCreateUndo struct {
	Name     []byte
	OutPoint wire.OutPoint
}

// ClaimUpdateUndo snapshots a claim's fields immediately before chg.Type ==
// UpdateClaim overwrote them in place, so decrementBlock can restore the
// pre-update claim verbatim.
type ClaimUpdateUndo struct {
	Name  []byte
	Prior Claim
}

// TakeoverUndo records the previous takeover record of a node before a
// takeover overwrote it (§3 UndoRecord "takeover", §4.6 "Persistence of
// takeover").
type TakeoverUndo struct {
	Name            []byte
	HadPriorClaimID bool
	PriorHeight     int32
	PriorClaimID    change.ClaimID
}

// UndoBuckets is the eight parallel lists of undo entries a single block
// produces (§4.8/§9). decrementBlock replays each list in reverse order.
type UndoBuckets struct {
	Height int32

	Inserts            []InsertUndo
	SupportInserts     []InsertUndo
	ClaimExpirations   []ClaimExpireUndo
	SupportExpirations []SupportExpireUndo
	Takeovers          []TakeoverUndo
	ClaimCreates       []ClaimCreateUndo
	SupportCreates     []SupportCreateUndo
	ClaimUpdates       []ClaimUpdateUndo
}

// IsEmpty reports whether nothing happened during the block these buckets
// describe. ClaimTrie persists the undo record of every block, empty or not.
func (u *UndoBuckets) IsEmpty() bool {
	return len(u.Inserts) == 0 && len(u.SupportInserts) == 0 &&
		len(u.ClaimExpirations) == 0 && len(u.SupportExpirations) == 0 &&
		len(u.Takeovers) == 0 && len(u.ClaimCreates) == 0 &&
		len(u.SupportCreates) == 0 && len(u.ClaimUpdates) == 0
}
