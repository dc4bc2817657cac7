package node

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/lbryio/lbcd/claimtrie/change"
	"github.com/lbryio/lbcd/claimtrie/param"
)

// Manager is the composite owner of C3 PrefixTrieView, C4 ClaimIndex, C5
// DelayQueues' row-level half and C6 TakeoverEngine: everything that reads
// or writes a Node's claims, supports and takeover record.
type Manager interface {
	// AppendChange schedules chg to be applied when IncrementHeightTo
	// reaches chg.Height (normally the caller's currentHeight+1).
	AppendChange(chg change.Change) error

	// IncrementHeightTo applies every change scheduled for height,
	// then runs the TakeoverEngine pass (§4.6) over the union of
	// changed names and names passed in expired, returning every name
	// whose Node row changed plus the undo information for decrement.
	IncrementHeightTo(height int32, expired [][]byte) ([][]byte, UndoBuckets, error)

	// DecrementHeightTo reverses a single block's UndoBuckets. names is
	// accepted for symmetry with the teacher's ResetHeight signature
	// but is not required by this implementation since undo replay is
	// self-describing.
	DecrementHeightTo(names [][]byte, height int32, undo UndoBuckets) error

	// NextUpdateHeightOfName returns the next height at which name must
	// be reconsidered (soonest pending validHeight, or the height just
	// after a pending expirationHeight),
	// and false if nothing is scheduled.
	NextUpdateHeightOfName(name []byte) (int32, bool)

	// Node returns the full row for name as currently persisted (no
	// height filtering applied by this call; callers use Node.ActiveAt
	// helpers or BestClaimAt for height-aware queries).
	Node(name []byte) (*Node, error)

	IterateNames(fn func(name []byte) bool) error

	// MigrateNamesAtFork bulk-folds existing names into their normalized
	// form at the Unicode-normalization fork height (§4.9). BaseManager's
	// implementation is a no-op since it never normalizes names itself;
	// NormalizingManager overrides it with the real bulk migration.
	MigrateNamesAtFork() ([][]byte, error)

	// RewritePendingExpirations adds delta to the ExpirationHeight of
	// every claim/support created before beforeHeight (§4.9, "extended
	// expiration"). Called once with a positive delta when AppendBlock
	// crosses the extended-expiration fork height, and with the negated
	// delta when ResetHeight crosses back below it.
	RewritePendingExpirations(delta, beforeHeight int32) ([][]byte, error)

	// FindNodeForClaimID locates the node name owning id, by a linear
	// scan (findNameForClaim, §6); acceptable since it is an
	// operational/debug query, not part of the block-processing hot
	// path.
	FindNodeForClaimID(id change.ClaimID) ([]byte, *Claim, error)

	Height() int32
	Params() param.ForkParams

	Flush() error
	Close() error
}

// BaseManager is the direct, non-normalizing Manager implementation: names
// passed in are used verbatim as nodeName (§4.9's normalization fork is
// layered on top by NormalizingManager).
type BaseManager struct {
	repo   Repo
	params param.ForkParams

	height int32

	pending map[int32][]change.Change

	// removalWorkaround is the §4.3 quirk set: names whose empty-node
	// collapse observed a surviving longer-named descendant still
	// holding an active claim, forcing the next claim added at this
	// exact name to skip the activation delay.
	removalWorkaround map[string]bool
}

// NewBaseManager constructs a BaseManager backed by repo, starting at
// height 0 with Mainnet fork parameters; callers adjust params via
// SetParams before replaying any blocks.
func NewBaseManager(repo Repo) (*BaseManager, error) {
	return &BaseManager{
		repo:              repo,
		params:            param.Mainnet(),
		pending:           make(map[int32][]change.Change),
		removalWorkaround: make(map[string]bool),
	}, nil
}

// SetParams overrides the fork parameters, e.g. to param.Regtest() for
// tests.
func (m *BaseManager) SetParams(p param.ForkParams) {
	m.params = p
}

// SetHeight primes the manager's notion of "current height" after loading
// from disk (mirrors teacher's restore-from-blockRepo.Load flow).
func (m *BaseManager) SetHeight(h int32) {
	m.height = h
}

func (m *BaseManager) Height() int32 { return m.height }

// Params returns the fork parameters the manager is running with.
func (m *BaseManager) Params() param.ForkParams { return m.params }

// AppendChange implements Manager.
func (m *BaseManager) AppendChange(chg change.Change) error {
	if chg.Height <= m.height {
		return errors.Errorf("change scheduled for height %d at or before current height %d", chg.Height, m.height)
	}
	m.pending[chg.Height] = append(m.pending[chg.Height], chg)
	return nil
}

func (m *BaseManager) getOrNew(name []byte) (*Node, error) {
	n, err := m.repo.Get(name)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = NewNode(name)
	}
	return n, nil
}

// computeDelay implements the activation-delay rule of §4.6.
func (m *BaseManager) computeDelay(n *Node, id change.ClaimID, height int32) int32 {
	if n.HasTakeover && n.TakeoverClaimID == id {
		return 0
	}
	if m.removalWorkaround[string(n.Name)] {
		delete(m.removalWorkaround, string(n.Name))
		return 0
	}
	if !n.HasTakeover {
		return 0
	}
	delay := (height - n.TakeoverHeight) / m.params.ProportionalDelayFactor
	if delay > m.params.MaxActiveDelay {
		delay = m.params.MaxActiveDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// applyChange mutates (or creates) the node row for chg.Name according to
// chg, returning the node so the caller can persist it and fold in undo
// bookkeeping for spends.
func (m *BaseManager) applyChange(chg change.Change, undo *UndoBuckets) ([]byte, error) {
	n, err := m.getOrNew(chg.Name)
	if err != nil {
		return nil, err
	}

	switch chg.Type {
	case change.AddClaim, change.UpdateClaim:
		expiration := chg.Height + m.params.ActiveExpirationTime(chg.Height)
		if existing := n.FindClaim(chg.ClaimID); existing != nil {
			if undo != nil {
				prior := *existing
				undo.ClaimUpdates = append(undo.ClaimUpdates, ClaimUpdateUndo{Name: append([]byte(nil), chg.Name...), Prior: prior})
			}
			existing.OutPoint = chg.OutPoint
			existing.Amount = chg.Amount
			existing.BlockHeight = chg.Height
			existing.ExpirationHeight = expiration
			existing.Metadata = chg.Metadata
			if chg.ActiveHeight > 0 {
				existing.ValidHeight = chg.ActiveHeight
			} else {
				existing.ValidHeight = chg.Height + m.computeDelay(n, chg.ClaimID, chg.Height)
			}
		} else {
			validHeight := chg.Height + m.computeDelay(n, chg.ClaimID, chg.Height)
			if chg.ActiveHeight > 0 {
				validHeight = chg.ActiveHeight
			}
			n.Claims = append(n.Claims, &Claim{
				ClaimID:          chg.ClaimID,
				OutPoint:         chg.OutPoint,
				Amount:           chg.Amount,
				BlockHeight:      chg.Height,
				ValidHeight:      validHeight,
				ExpirationHeight: expiration,
				Metadata:         chg.Metadata,
			})
			if undo != nil {
				undo.ClaimCreates = append(undo.ClaimCreates, ClaimCreateUndo{
					Name:     append([]byte(nil), chg.Name...),
					ClaimID:  chg.ClaimID,
					OutPoint: chg.OutPoint,
				})
			}
		}

	case change.SpendClaim:
		idx := -1
		for i, c := range n.Claims {
			if c.ClaimID == chg.ClaimID && c.OutPoint == chg.OutPoint {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errNotFound
		}
		removed := *n.Claims[idx]
		n.Claims = append(n.Claims[:idx], n.Claims[idx+1:]...)
		if undo != nil {
			undo.ClaimExpirations = append(undo.ClaimExpirations, ClaimExpireUndo{Name: append([]byte(nil), chg.Name...), Claim: removed})
		}
		m.checkCollapseQuirk(n, chg.Name)

	case change.AddSupport:
		expiration := chg.Height + m.params.ActiveExpirationTime(chg.Height)
		validHeight := chg.Height
		if chg.ActiveHeight > 0 {
			validHeight = chg.ActiveHeight
		}
		metadata := chg.Metadata
		if !m.params.AllowSupportMetadata(chg.Height) {
			metadata = nil
		}
		n.Supports = append(n.Supports, &Support{
			SupportedClaimID: chg.ClaimID,
			OutPoint:         chg.OutPoint,
			Amount:           chg.Amount,
			BlockHeight:      chg.Height,
			ValidHeight:      validHeight,
			ExpirationHeight: expiration,
			Metadata:         metadata,
		})
		if undo != nil {
			undo.SupportCreates = append(undo.SupportCreates, SupportCreateUndo{
				Name:     append([]byte(nil), chg.Name...),
				OutPoint: chg.OutPoint,
			})
		}

	case change.SpendSupport:
		idx := -1
		for i, s := range n.Supports {
			if s.OutPoint == chg.OutPoint {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errNotFound
		}
		removed := *n.Supports[idx]
		n.Supports = append(n.Supports[:idx], n.Supports[idx+1:]...)
		if undo != nil {
			undo.SupportExpirations = append(undo.SupportExpirations, SupportExpireUndo{Name: append([]byte(nil), chg.Name...), Support: removed})
		}

	default:
		return nil, errors.Errorf("unknown change type %v", chg.Type)
	}

	if err := m.repo.Set(chg.Name, n); err != nil {
		return nil, err
	}
	return chg.Name, nil
}

var errNotFound = errors.New("not found")

// IsNotFound reports whether err indicates a missing claim/support row
// (§7 NotFound: "not an error" for removeClaim/removeSupport callers).
func IsNotFound(err error) bool {
	return errors.Cause(err) == errNotFound
}

// checkCollapseQuirk implements the removal-workaround quirk of §4.3: if,
// after removing the claim, name holds no active claims but a longer
// descendant name still does, mark name for a zero-delay re-add.
func (m *BaseManager) checkCollapseQuirk(n *Node, name []byte) {
	if n.HasActiveClaim(m.height + 1) {
		return
	}
	descendants, err := m.repo.NodesInPrefix(name)
	if err != nil {
		return
	}
	for _, d := range descendants {
		if len(d) <= len(name) || !bytes.HasPrefix(d, name) {
			continue
		}
		dn, err := m.repo.Get(d)
		if err != nil || dn == nil {
			continue
		}
		if dn.HasActiveClaim(m.height + 1) {
			m.removalWorkaround[string(name)] = true
			return
		}
	}
}

// MigrateNamesAtFork implements Manager; BaseManager never normalizes
// names, so there is nothing to fold together.
func (m *BaseManager) MigrateNamesAtFork() ([][]byte, error) {
	return nil, nil
}

// RewritePendingExpirations implements Manager.
func (m *BaseManager) RewritePendingExpirations(delta, beforeHeight int32) ([][]byte, error) {
	var names [][]byte
	if err := m.repo.IterateNames(func(name []byte) bool {
		names = append(names, append([]byte(nil), name...))
		return true
	}); err != nil {
		return nil, err
	}

	var touched [][]byte
	for _, name := range names {
		n, err := m.repo.Get(name)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}

		changed := false
		for _, c := range n.Claims {
			if c.BlockHeight < beforeHeight {
				c.ExpirationHeight += delta
				changed = true
			}
		}
		for _, s := range n.Supports {
			if s.BlockHeight < beforeHeight {
				s.ExpirationHeight += delta
				changed = true
			}
		}
		if !changed {
			continue
		}

		if err := m.repo.Set(name, n); err != nil {
			return nil, err
		}
		touched = append(touched, name)
	}
	return touched, nil
}

// IncrementHeightTo implements Manager.
func (m *BaseManager) IncrementHeightTo(height int32, expired [][]byte) ([][]byte, UndoBuckets, error) {
	if height != m.height+1 {
		return nil, UndoBuckets{}, errors.Errorf("IncrementHeightTo called with %d, expected %d", height, m.height+1)
	}

	var undo UndoBuckets
	undo.Height = height

	touchedSet := make(map[string][]byte)
	for _, chg := range m.pending[height] {
		name, err := m.applyChange(chg, &undo)
		if err != nil && !IsNotFound(err) {
			return nil, undo, errors.Wrapf(err, "applying change for %q", chg.Name)
		}
		if name != nil {
			touchedSet[string(name)] = name
		}
	}
	delete(m.pending, height)

	for _, name := range expired {
		touchedSet[string(name)] = name
	}

	names := make([][]byte, 0, len(touchedSet))
	for _, n := range touchedSet {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return bytes.Compare(names[i], names[j]) < 0 })

	if err := m.runTakeovers(names, height, &undo); err != nil {
		return nil, undo, err
	}

	m.height = height
	return names, undo, nil
}

// runTakeovers implements the per-block TakeoverEngine pass of §4.6 over
// every dirty name, ascending, for determinism (§5).
func (m *BaseManager) runTakeovers(names [][]byte, height int32, undo *UndoBuckets) error {
	for _, name := range names {
		n, err := m.repo.Get(name)
		if err != nil {
			return err
		}
		if n == nil {
			continue
		}

		best := n.BestClaimAt(height + 1)

		takeoverHappens := !n.HasTakeover
		if n.HasTakeover && best != nil && best.ClaimID != n.TakeoverClaimID {
			takeoverHappens = true
		}
		if n.HasTakeover && best == nil {
			takeoverHappens = true
		}
		if height < m.params.MaxRemovalWorkaroundHeight {
			if _, ok := param.TakeoverWorkaround(height, name); ok {
				takeoverHappens = true
			}
		}

		if !takeoverHappens {
			if err := m.repo.Set(name, n); err != nil {
				return err
			}
			continue
		}

		undo.Takeovers = append(undo.Takeovers, TakeoverUndo{
			Name:            append([]byte(nil), name...),
			HadPriorClaimID: n.HasTakeover,
			PriorHeight:     n.TakeoverHeight,
			PriorClaimID:    n.TakeoverClaimID,
		})

		if best != nil {
			for _, c := range n.Claims {
				if c.ValidHeight > height && c.ExpirationHeight > height {
					undo.Inserts = append(undo.Inserts, InsertUndo{
						Name:             append([]byte(nil), name...),
						OutPoint:         c.OutPoint,
						PriorValidHeight: c.ValidHeight,
					})
					c.ValidHeight = height
				}
			}
			for _, s := range n.Supports {
				if s.ValidHeight > height && s.ExpirationHeight > height {
					undo.SupportInserts = append(undo.SupportInserts, InsertUndo{
						Name:             append([]byte(nil), name...),
						OutPoint:         s.OutPoint,
						PriorValidHeight: s.ValidHeight,
					})
					s.ValidHeight = height
				}
			}
			best = n.BestClaimAt(height + 1)
		}

		n.HasTakeover = best != nil
		n.TakeoverHeight = height
		if best != nil {
			n.TakeoverClaimID = best.ClaimID
		} else {
			n.TakeoverClaimID = change.ClaimID{}
		}

		if err := m.repo.Set(name, n); err != nil {
			return err
		}
	}
	return nil
}

// DecrementHeightTo implements Manager.
func (m *BaseManager) DecrementHeightTo(_ [][]byte, height int32, undo UndoBuckets) error {
	if height != m.height-1 {
		return errors.Errorf("DecrementHeightTo called with %d, expected %d", height, m.height-1)
	}

	touched := make(map[string]bool)

	for i := len(undo.SupportExpirations) - 1; i >= 0; i-- {
		rec := undo.SupportExpirations[i]
		n, err := m.getOrNew(rec.Name)
		if err != nil {
			return err
		}
		s := rec.Support
		n.Supports = append(n.Supports, &s)
		if err := m.repo.Set(rec.Name, n); err != nil {
			return err
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.ClaimExpirations) - 1; i >= 0; i-- {
		rec := undo.ClaimExpirations[i]
		n, err := m.getOrNew(rec.Name)
		if err != nil {
			return err
		}
		c := rec.Claim
		n.Claims = append(n.Claims, &c)
		if err := m.repo.Set(rec.Name, n); err != nil {
			return err
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.ClaimUpdates) - 1; i >= 0; i-- {
		rec := undo.ClaimUpdates[i]
		n, err := m.repo.Get(rec.Name)
		if err != nil {
			return err
		}
		if n != nil {
			for j, c := range n.Claims {
				if c.ClaimID == rec.Prior.ClaimID {
					cp := rec.Prior
					n.Claims[j] = &cp
					break
				}
			}
			if err := m.repo.Set(rec.Name, n); err != nil {
				return err
			}
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.ClaimCreates) - 1; i >= 0; i-- {
		rec := undo.ClaimCreates[i]
		n, err := m.repo.Get(rec.Name)
		if err != nil {
			return err
		}
		if n != nil {
			for j, c := range n.Claims {
				if c.ClaimID == rec.ClaimID && c.OutPoint == rec.OutPoint {
					n.Claims = append(n.Claims[:j], n.Claims[j+1:]...)
					break
				}
			}
			if err := m.repo.Set(rec.Name, n); err != nil {
				return err
			}
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.SupportCreates) - 1; i >= 0; i-- {
		rec := undo.SupportCreates[i]
		n, err := m.repo.Get(rec.Name)
		if err != nil {
			return err
		}
		if n != nil {
			for j, s := range n.Supports {
				if s.OutPoint == rec.OutPoint {
					n.Supports = append(n.Supports[:j], n.Supports[j+1:]...)
					break
				}
			}
			if err := m.repo.Set(rec.Name, n); err != nil {
				return err
			}
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.SupportInserts) - 1; i >= 0; i-- {
		rec := undo.SupportInserts[i]
		n, err := m.repo.Get(rec.Name)
		if err != nil {
			return err
		}
		if n != nil {
			for _, s := range n.Supports {
				if s.OutPoint == rec.OutPoint {
					s.ValidHeight = rec.PriorValidHeight
					break
				}
			}
			if err := m.repo.Set(rec.Name, n); err != nil {
				return err
			}
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.Inserts) - 1; i >= 0; i-- {
		rec := undo.Inserts[i]
		n, err := m.repo.Get(rec.Name)
		if err != nil {
			return err
		}
		if n != nil {
			for _, c := range n.Claims {
				if c.OutPoint == rec.OutPoint {
					c.ValidHeight = rec.PriorValidHeight
					break
				}
			}
			if err := m.repo.Set(rec.Name, n); err != nil {
				return err
			}
		}
		touched[string(rec.Name)] = true
	}

	for i := len(undo.Takeovers) - 1; i >= 0; i-- {
		rec := undo.Takeovers[i]
		n, err := m.getOrNew(rec.Name)
		if err != nil {
			return err
		}
		n.HasTakeover = rec.HadPriorClaimID
		n.TakeoverHeight = rec.PriorHeight
		n.TakeoverClaimID = rec.PriorClaimID
		if err := m.repo.Set(rec.Name, n); err != nil {
			return err
		}
		touched[string(rec.Name)] = true
	}

	m.height = height
	return nil
}

// NextUpdateHeightOfName implements Manager.
func (m *BaseManager) NextUpdateHeightOfName(name []byte) (int32, bool) {
	n, err := m.repo.Get(name)
	if err != nil || n == nil {
		return 0, false
	}

	next := int32(0)
	consider := func(h int32) {
		if h > m.height && (next == 0 || h < next) {
			next = h
		}
	}
	for _, c := range n.Claims {
		consider(c.ValidHeight)
		consider(c.ExpirationHeight + 1)
	}
	for _, s := range n.Supports {
		consider(s.ValidHeight)
		consider(s.ExpirationHeight + 1)
	}
	return next, next != 0
}

func (m *BaseManager) Node(name []byte) (*Node, error) {
	return m.repo.Get(name)
}

func (m *BaseManager) IterateNames(fn func(name []byte) bool) error {
	return m.repo.IterateNames(fn)
}

func (m *BaseManager) FindNodeForClaimID(id change.ClaimID) ([]byte, *Claim, error) {
	var foundName []byte
	var foundClaim *Claim
	err := m.repo.IterateNames(func(name []byte) bool {
		n, err := m.repo.Get(name)
		if err != nil || n == nil {
			return true
		}
		if c := n.FindClaim(id); c != nil {
			foundName = append([]byte(nil), name...)
			foundClaim = c
			return false
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	return foundName, foundClaim, nil
}

func (m *BaseManager) Flush() error { return m.repo.Flush() }
func (m *BaseManager) Close() error { return m.repo.Close() }
