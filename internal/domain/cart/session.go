package cart

import (
	"strings"
	"time"

	"github.com/marketbay/storefront/internal/domain/promotion"
)

// Evaluation is the read-only snapshot a transition evaluates against. The
// session performs no I/O: callers fetch the promotion catalog and the
// user's usage records, fix the clock, and pass everything in.
type Evaluation struct {
	Catalog []*promotion.Promotion
	Usage   []promotion.UsageRecord
	Now     time.Time
}

// Changes reports what a transition did beyond its direct effect, so the
// caller can reflect silent attach/detach in the UI. A manual promotion that
// loses eligibility after a cart edit is removed without error; it shows up
// here instead.
type Changes struct {
	// ManualRemoved is the code of a manual promotion that was silently
	// detached because the cart no longer satisfies it.
	ManualRemoved string
	// AutoAttached and AutoDetached list promotion IDs whose auto-applied
	// status changed during this transition.
	AutoAttached []string
	AutoDetached []string
}

// Empty reports whether the transition changed nothing beyond its direct
// effect.
func (c Changes) Empty() bool {
	return c.ManualRemoved == "" && len(c.AutoAttached) == 0 && len(c.AutoDetached) == 0
}

// Session is the cart aggregate: raw lines plus the applied-promotion set,
// with derived totals and annotated lines recomputed after every transition.
// At most one applied promotion is manual (code-entered); any number of
// auto-applied promotions coexist as long as each remains eligible.
//
// Sessions are not safe for concurrent use. Callers serialize transitions
// per cart; a full evaluation pass is one atomic logical operation.
type Session struct {
	id     string
	userID string

	// base holds the customer's lines without promotion annotations; view
	// is the reconciled projection served to callers.
	base   []Line
	view   []Line
	autos  []Applied
	manual *Applied

	totals        Totals
	freeShipping  bool
	suggestedCode string
}

// New creates an empty session in its initial state: no manual promotion,
// no auto-applied promotions.
func New(id, userID string) *Session {
	return &Session{id: id, userID: userID}
}

// Restore rebuilds a session from persisted state. The manual code, if any,
// is re-applied against the current catalog; if it no longer resolves or
// qualifies it is dropped and reported via Changes rather than failing the
// load.
func Restore(id, userID string, lines []Line, manualCode string, ev Evaluation) (*Session, Changes) {
	s := New(id, userID)
	s.base = stripAnnotations(lines)

	if manualCode != "" {
		if ch, err := s.ApplyCode(ev, manualCode); err == nil {
			return s, ch
		}
		ch := s.recalc(ev)
		ch.ManualRemoved = manualCode
		return s, ch
	}
	return s, s.recalc(ev)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user, or empty for anonymous sessions.
func (s *Session) UserID() string { return s.userID }

// Lines returns the reconciled cart lines with free-quantity annotations.
func (s *Session) Lines() []Line {
	out := make([]Line, len(s.view))
	copy(out, s.view)
	return out
}

// BaseLines returns the customer's lines without promotion annotations,
// suitable for persistence.
func (s *Session) BaseLines() []Line {
	out := make([]Line, len(s.base))
	copy(out, s.base)
	return out
}

// AppliedPromotions returns the current applied set, auto promotions first
// and the manual promotion last.
func (s *Session) AppliedPromotions() []Applied {
	out := make([]Applied, 0, len(s.autos)+1)
	out = append(out, s.autos...)
	if s.manual != nil {
		out = append(out, *s.manual)
	}
	return out
}

// Manual returns the currently applied manual promotion, if any.
func (s *Session) Manual() (Applied, bool) {
	if s.manual == nil {
		return Applied{}, false
	}
	return *s.manual, true
}

// ManualCode returns the active manual promotion code, or empty.
func (s *Session) ManualCode() string {
	if s.manual == nil {
		return ""
	}
	return s.manual.Code
}

// Totals returns the cart totals derived from the last transition.
func (s *Session) Totals() Totals { return s.totals }

// FreeShipping reports whether any applied promotion grants free shipping.
func (s *Session) FreeShipping() bool { return s.freeShipping }

// SuggestedCode returns the highest-ranked code the customer has not
// applied yet, or empty when none qualifies.
func (s *Session) SuggestedCode() string { return s.suggestedCode }

// ApplyCode attaches the promotion identified by code as the manual
// promotion. A currently active manual promotion is detached first, so the
// session never holds two. On failure the session is left unchanged and the
// error identifies the reason: promotion.ErrNotFound, ErrExpired,
// ErrIneligible, or ErrUsageExceeded.
func (s *Session) ApplyCode(ev Evaluation, code string) (Changes, error) {
	p := findByCode(ev.Catalog, code)
	if p == nil {
		return Changes{}, promotion.ErrNotFound
	}
	if !p.IsActive || ev.Now.Before(p.StartDate) || ev.Now.After(p.EndDate) {
		return Changes{}, promotion.ErrExpired
	}
	if !promotion.Eligible(p, items(s.base), ev.Now) {
		return Changes{}, promotion.ErrIneligible
	}
	if promotion.Exhausted(p) || !promotion.CanUse(p, s.userID, ev.Usage) {
		return Changes{}, promotion.ErrUsageExceeded
	}

	s.manual = &Applied{Promotion: p, Code: p.Code}
	return s.recalc(ev), nil
}

// RemoveManual detaches the current manual promotion. It is a no-op when no
// manual promotion is applied.
func (s *Session) RemoveManual(ev Evaluation) Changes {
	if s.manual == nil {
		return Changes{}
	}
	s.manual = nil
	return s.recalc(ev)
}

// AddItem adds quantity of a product to the cart, merging into an existing
// line when present.
func (s *Session) AddItem(ev Evaluation, line Line) Changes {
	if line.Quantity <= 0 {
		return Changes{}
	}
	line.FreeQuantity = 0
	line.FreeItem = false
	merged := false
	for i := range s.base {
		if s.base[i].ProductID == line.ProductID {
			s.base[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.base = append(s.base, line)
	}
	return s.recalc(ev)
}

// SetQuantity updates a line's quantity; a non-positive quantity removes the
// line.
func (s *Session) SetQuantity(ev Evaluation, productID string, quantity int) Changes {
	if quantity <= 0 {
		return s.RemoveItem(ev, productID)
	}
	for i := range s.base {
		if s.base[i].ProductID == productID {
			s.base[i].Quantity = quantity
			return s.recalc(ev)
		}
	}
	return Changes{}
}

// RemoveItem deletes a line from the cart.
func (s *Session) RemoveItem(ev Evaluation, productID string) Changes {
	for i := range s.base {
		if s.base[i].ProductID == productID {
			s.base = append(s.base[:i], s.base[i+1:]...)
			return s.recalc(ev)
		}
	}
	return Changes{}
}

// Clear resets the session to its initial state.
func (s *Session) Clear() {
	*s = *New(s.id, s.userID)
}

// recalc is the onCartChanged pass: it re-validates the manual promotion,
// recomputes the auto-applied set over the full catalog, recalculates every
// applied promotion's savings, reconciles totals, and refreshes the
// suggested code.
func (s *Session) recalc(ev Evaluation) Changes {
	var ch Changes
	base := items(s.base)

	// A manual promotion that lost eligibility detaches silently; the
	// caller learns about it through Changes, not an error.
	if s.manual != nil && !promotion.Eligible(s.manual.Promotion, base, ev.Now) {
		ch.ManualRemoved = s.manual.Code
		s.manual = nil
	}

	ch.AutoAttached, ch.AutoDetached = s.refreshAutos(ev, base)

	for i := range s.autos {
		s.autos[i].Savings = promotion.ComputeSavings(s.autos[i].Promotion, base)
	}
	if s.manual != nil {
		s.manual.Savings = promotion.ComputeSavings(s.manual.Promotion, base)
	}

	applied := s.AppliedPromotions()
	s.view, s.totals = Reconcile(s.base, applied)

	s.freeShipping = false
	for _, a := range applied {
		if a.Savings.FreeShipping {
			s.freeShipping = true
			break
		}
	}

	s.suggestedCode = s.suggest(ev, base)
	return ch
}

// refreshAutos recomputes the auto-applied set: promotions flagged for auto
// application that are currently eligible, not globally exhausted, and
// within the user's allowance. Returns the IDs that were attached and
// detached relative to the previous set.
func (s *Session) refreshAutos(ev Evaluation, base []promotion.Item) (attached, detached []string) {
	prev := make(map[string]bool, len(s.autos))
	for _, a := range s.autos {
		prev[a.Promotion.ID] = true
	}

	next := make([]Applied, 0, len(s.autos))
	current := make(map[string]bool)
	for _, p := range ev.Catalog {
		if !p.AutoApply || p.RequiresCode {
			continue
		}
		if s.manual != nil && s.manual.Promotion.ID == p.ID {
			continue
		}
		if !promotion.Eligible(p, base, ev.Now) || promotion.Exhausted(p) || !promotion.CanUse(p, s.userID, ev.Usage) {
			continue
		}
		next = append(next, Applied{Promotion: p, AutoApplied: true})
		current[p.ID] = true
		if !prev[p.ID] {
			attached = append(attached, p.ID)
		}
	}
	for id := range prev {
		if !current[id] {
			detached = append(detached, id)
		}
	}

	s.autos = next
	return attached, detached
}

// suggest ranks the not-yet-applied, code-bearing eligible promotions and
// returns the top code.
func (s *Session) suggest(ev Evaluation, base []promotion.Item) string {
	appliedIDs := make(map[string]bool)
	for _, a := range s.AppliedPromotions() {
		appliedIDs[a.Promotion.ID] = true
	}

	var pool []*promotion.Promotion
	for _, p := range ev.Catalog {
		if p.Code == "" || appliedIDs[p.ID] {
			continue
		}
		if !promotion.Eligible(p, base, ev.Now) || promotion.Exhausted(p) || !promotion.CanUse(p, s.userID, ev.Usage) {
			continue
		}
		pool = append(pool, p)
	}
	if len(pool) == 0 {
		return ""
	}
	return promotion.Rank(pool, base)[0].Promotion.Code
}

func findByCode(catalog []*promotion.Promotion, code string) *promotion.Promotion {
	for _, p := range catalog {
		if p.Code != "" && strings.EqualFold(p.Code, code) {
			return p
		}
	}
	return nil
}
