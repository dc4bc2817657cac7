// Package node implements the per-name claim/support bookkeeping (C2
// StateStore's claim/support relations, C3 PrefixTrieView, C4 ClaimIndex,
// C5 DelayQueues and C6 TakeoverEngine) described in §3, §4.2-§4.6.
package node

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lbryio/lbcd/claimtrie/change"
)

// Claim is a single name claim, matching §3's Claim entity.
type Claim struct {
	ClaimID  change.ClaimID
	OutPoint wire.OutPoint

	Amount int64

	// BlockHeight is the height at which the claim was first broadcast
	// (creation height, invariant blockHeight <= validHeight).
	BlockHeight int32

	// ValidHeight is the height at which the claim becomes eligible to
	// be the best claim for its name; mutated in place by the
	// early-activation sweep (§4.6) and restored on decrement.
	ValidHeight int32

	// ExpirationHeight is the height at which the claim stops being
	// active; the row is never deleted when this height passes, only
	// filtered out of "active" queries (§4.2 visibility predicate).
	ExpirationHeight int32

	Metadata []byte
}

// ActiveAt reports whether the claim is active (part of the visibility
// predicate in §4.2) at height.
func (c *Claim) ActiveAt(height int32) bool {
	return c.ValidHeight < height && c.ExpirationHeight >= height
}

// Support pledges additional weight to a claim without itself controlling
// the name, per §3.
type Support struct {
	SupportedClaimID change.ClaimID
	OutPoint         wire.OutPoint

	Amount int64

	BlockHeight      int32
	ValidHeight      int32
	ExpirationHeight int32

	Metadata []byte
}

// ActiveAt mirrors Claim.ActiveAt.
func (s *Support) ActiveAt(height int32) bool {
	return s.ValidHeight < height && s.ExpirationHeight >= height
}

// Node is the per-nodeName row: every claim and support ever observed for
// that name, plus the persisted takeover record (§3's TrieNode, folded
// together with the claim/support relations per §4.2's "takeovers merged
// into nodes" option).
type Node struct {
	Name []byte

	Claims   []*Claim
	Supports []*Support

	// TakeoverHeight/TakeoverClaimID are the currently persisted
	// takeover record; TakeoverClaimID is the zero value when the name
	// has no controller.
	TakeoverHeight  int32
	HasTakeover     bool
	TakeoverClaimID change.ClaimID

	// Hash is not read or written by the managers, the noderepo codec or
	// the merkletrie; Merkle hashes are kept in the merkletrie's own nodes.
	Hash *chainhash.Hash
}

// NewNode returns an empty Node for name.
func NewNode(name []byte) *Node {
	return &Node{Name: append([]byte(nil), name...)}
}

// Clone performs a deep-enough copy for safe mutation by the manager's
// read-modify-write cycle without aliasing the repo's cached copy.
func (n *Node) Clone() *Node {
	c := &Node{
		Name:            append([]byte(nil), n.Name...),
		TakeoverHeight:  n.TakeoverHeight,
		HasTakeover:     n.HasTakeover,
		TakeoverClaimID: n.TakeoverClaimID,
	}
	for _, cl := range n.Claims {
		cp := *cl
		c.Claims = append(c.Claims, &cp)
	}
	for _, s := range n.Supports {
		cp := *s
		c.Supports = append(c.Supports, &cp)
	}
	return c
}

// IsEmpty reports whether the node holds no claims at all (active or not);
// an empty node is a candidate for the collapse quirk in §4.3.
func (n *Node) IsEmpty() bool {
	return len(n.Claims) == 0
}

// HasActiveClaim reports whether any claim on the node is active at height.
func (n *Node) HasActiveClaim(height int32) bool {
	for _, c := range n.Claims {
		if c.ActiveAt(height) {
			return true
		}
	}
	return false
}

// FindClaim returns the claim with the given id, or nil.
func (n *Node) FindClaim(id change.ClaimID) *Claim {
	for _, c := range n.Claims {
		if c.ClaimID == id {
			return c
		}
	}
	return nil
}

// FindClaimByOutPoint returns the claim with the given outpoint, or nil.
func (n *Node) FindClaimByOutPoint(op wire.OutPoint) *Claim {
	for _, c := range n.Claims {
		if c.OutPoint == op {
			return c
		}
	}
	return nil
}

// FindSupportByOutPoint returns the support with the given outpoint, or nil.
func (n *Node) FindSupportByOutPoint(op wire.OutPoint) *Support {
	for _, s := range n.Supports {
		if s.OutPoint == op {
			return s
		}
	}
	return nil
}

// EffectiveAmount computes the §3 "effective amount" of claim at height:
// the claim's own amount plus every active matching support's amount.
func (n *Node) EffectiveAmount(claim *Claim, height int32) int64 {
	total := claim.Amount
	for _, s := range n.Supports {
		if s.SupportedClaimID == claim.ClaimID && s.ActiveAt(height) {
			total += s.Amount
		}
	}
	return total
}

// claimLess implements the strict weak order of §3/§4.4: higher effective
// amount wins; tie -> lower blockHeight; tie -> lexicographically smaller
// (txHash, outputIndex).
func claimLess(a, b *Claim, amtA, amtB int64) bool {
	if amtA != amtB {
		return amtA > amtB // higher effective amount sorts first
	}
	if a.BlockHeight != b.BlockHeight {
		return a.BlockHeight < b.BlockHeight
	}
	cmp := bytes.Compare(a.OutPoint.Hash[:], b.OutPoint.Hash[:])
	if cmp != 0 {
		return cmp < 0
	}
	return a.OutPoint.Index < b.OutPoint.Index
}

// ActiveClaimsAt returns every claim active at height, sorted "best first"
// per §3/§4.4's ordering (descending effective amount, ties broken toward
// the earlier and lexicographically smaller claim).
func (n *Node) ActiveClaimsAt(height int32) []*Claim {
	var active []*Claim
	for _, c := range n.Claims {
		if c.ActiveAt(height) {
			active = append(active, c)
		}
	}
	amounts := make(map[change.ClaimID]int64, len(active))
	for _, c := range active {
		amounts[c.ClaimID] = n.EffectiveAmount(c, height)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return claimLess(active[i], active[j], amounts[active[i].ClaimID], amounts[active[j].ClaimID])
	})
	return active
}

// BestClaimAt returns the controlling claim at height, or nil if none is
// active.
func (n *Node) BestClaimAt(height int32) *Claim {
	claims := n.ActiveClaimsAt(height)
	if len(claims) == 0 {
		return nil
	}
	return claims[0]
}

// ActiveSupportsFor returns the active supports matching claimID at height.
func (n *Node) ActiveSupportsFor(claimID change.ClaimID, height int32) []*Support {
	var out []*Support
	for _, s := range n.Supports {
		if s.SupportedClaimID == claimID && s.ActiveAt(height) {
			out = append(out, s)
		}
	}
	return out
}
