package node

import (
	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/normalization"
)

// NormalizingManager layers the Unicode-normalization fork (§4.9, §9's
// nodeName/name distinction) on top of a BaseManager: at or below the fork
// height nodeName == name; above it, every external name is folded through
// normalization.Normalize before touching the inner Manager.
type NormalizingManager struct {
	*BaseManager
}

// NewNormalizingManager wraps base.
func NewNormalizingManager(base *BaseManager) *NormalizingManager {
	return &NormalizingManager{BaseManager: base}
}

func (m *NormalizingManager) normalize(name []byte, height int32) []byte {
	if !m.params.NormalizationActive(height) {
		return name
	}
	return normalization.Normalize(name)
}

// AppendChange normalizes chg.Name (when the fork is active at chg.Height)
// before delegating.
func (m *NormalizingManager) AppendChange(chg change.Change) error {
	chg.Name = m.normalize(chg.Name, chg.Height)
	return m.BaseManager.AppendChange(chg)
}

// Node normalizes name using the manager's current height, since queries
// are always made against "now".
func (m *NormalizingManager) Node(name []byte) (*Node, error) {
	return m.BaseManager.Node(m.normalize(name, m.height+1))
}

// NextUpdateHeightOfName normalizes per Node.
func (m *NormalizingManager) NextUpdateHeightOfName(name []byte) (int32, bool) {
	return m.BaseManager.NextUpdateHeightOfName(m.normalize(name, m.height+1))
}

// MigrateNamesAtFork bulk-migrates every existing node whose name differs
// from its normalized form at the fork block, folding claims/supports that
// collide under the normalized nodeName together (§4.9 "Existing claims at
// the fork block are migrated in bulk").
func (m *NormalizingManager) MigrateNamesAtFork() ([][]byte, error) {
	if m.height != m.params.NormalizedNameForkHeight {
		return nil, errors.Errorf("migration must run exactly at the fork height, got %d want %d", m.height, m.params.NormalizedNameForkHeight)
	}

	type pair struct {
		old, normalized []byte
	}
	var toMigrate []pair

	err := m.repo.IterateNames(func(name []byte) bool {
		normalized := normalization.Normalize(name)
		if string(normalized) != string(name) {
			toMigrate = append(toMigrate, pair{old: append([]byte(nil), name...), normalized: normalized})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var touched [][]byte
	for _, p := range toMigrate {
		oldNode, err := m.repo.Get(p.old)
		if err != nil {
			return nil, err
		}
		if oldNode == nil {
			continue
		}

		newNode, err := m.getOrNew(p.normalized)
		if err != nil {
			return nil, err
		}
		newNode.Claims = append(newNode.Claims, oldNode.Claims...)
		newNode.Supports = append(newNode.Supports, oldNode.Supports...)
		// The takeover record is cleared here; no takeover pass runs
		// for the merged node in this call, the next one happens when
		// the normalized name is next changed or scheduled.
		newNode.HasTakeover = false
		newNode.TakeoverClaimID = change.ClaimID{}
		newNode.TakeoverHeight = 0

		if err := m.repo.Set(p.normalized, newNode); err != nil {
			return nil, err
		}
		if err := m.repo.Delete(p.old); err != nil {
			return nil, err
		}
		touched = append(touched, p.normalized, p.old)
	}

	return touched, nil
}
