package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marketbay/storefront/internal/domain/cart"
	"github.com/marketbay/storefront/internal/domain/product"
	"github.com/marketbay/storefront/internal/domain/promotion"
)

// Service coordinates cart transitions and order placement. Every operation
// runs one full evaluation pass (eligibility, usage, discount, priority,
// policy, reconciliation) as a single atomic step under a per-cart lock.
type Service struct {
	promotions promotion.Repository
	usage      promotion.UsageRepository
	products   product.Repository
	sessions   SessionStore
	orders     OrderRepository
	now        func() time.Time

	// locks serializes transitions per cart; the engine itself does not
	// coordinate concurrent mutations.
	locks sync.Map
}

// NewService creates a checkout Service with the required collaborators.
func NewService(
	promotions promotion.Repository,
	usage promotion.UsageRepository,
	products product.Repository,
	sessions SessionStore,
	orders OrderRepository,
) *Service {
	return &Service{
		promotions: promotions,
		usage:      usage,
		products:   products,
		sessions:   sessions,
		orders:     orders,
		now:        time.Now,
	}
}

// Result is the outcome of a cart transition: the refreshed session
// projection plus the silent attach/detach changes the caller should surface.
type Result struct {
	Session *cart.Session
	Changes cart.Changes
}

// GetCart loads (or lazily creates) the cart session and runs a fresh
// evaluation pass against the current catalog.
func (s *Service) GetCart(ctx context.Context, cartID, userID string) (*Result, error) {
	unlock := s.lock(cartID)
	defer unlock()
	return s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return cart.Changes{}, nil
	})
}

// AddItem adds quantity of a product to the cart. The unit price is fixed
// at add time from the product catalog.
func (s *Service) AddItem(ctx context.Context, cartID, userID, productID string, quantity int) (*Result, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	unlock := s.lock(cartID)
	defer unlock()
	return s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return sess.AddItem(ev, cart.Line{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			Name:       p.Name,
			UnitPrice:  p.Price,
			Quantity:   quantity,
		}), nil
	})
}

// SetQuantity updates a line's quantity; non-positive removes the line.
func (s *Service) SetQuantity(ctx context.Context, cartID, userID, productID string, quantity int) (*Result, error) {
	unlock := s.lock(cartID)
	defer unlock()
	return s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return sess.SetQuantity(ev, productID, quantity), nil
	})
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, userID, productID string) (*Result, error) {
	unlock := s.lock(cartID)
	defer unlock()
	return s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return sess.RemoveItem(ev, productID), nil
	})
}

// ApplyCode attaches a manual promotion code, replacing any current one.
// Failures are typed: promotion.ErrNotFound, ErrExpired, ErrIneligible, or
// ErrUsageExceeded, with the cart left unchanged.
func (s *Service) ApplyCode(ctx context.Context, cartID, userID, code string) (*Result, error) {
	unlock := s.lock(cartID)
	defer unlock()
	res, err := s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return sess.ApplyCode(ev, code)
	})
	if err != nil && errors.Is(err, promotion.ErrNotFound) {
		// The evaluation snapshot only carries active promotions. A code
		// that resolves to a disabled promotion is expired, not unknown.
		if p, lookupErr := s.promotions.FindByCode(ctx, code); lookupErr == nil && !p.IsActive {
			return nil, promotion.ErrExpired
		}
	}
	return res, err
}

// RemoveCode detaches the current manual promotion, if any.
func (s *Service) RemoveCode(ctx context.Context, cartID, userID string) (*Result, error) {
	unlock := s.lock(cartID)
	defer unlock()
	return s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return sess.RemoveManual(ev), nil
	})
}

// PlaceOrder converts the cart into an order, persists it, consumes usage
// allowances for every applied promotion, and resets the session. This is
// the only path that writes usage counters.
func (s *Service) PlaceOrder(ctx context.Context, cartID, userID string) (*Order, error) {
	unlock := s.lock(cartID)
	defer unlock()

	res, err := s.withSession(ctx, cartID, userID, func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error) {
		return cart.Changes{}, nil
	})
	if err != nil {
		return nil, err
	}
	sess := res.Session
	if len(sess.BaseLines()) == 0 {
		return nil, ErrEmptyCart
	}

	applied := sess.AppliedPromotions()
	o := &Order{
		ID:           uuid.New().String(),
		CartID:       cartID,
		UserID:       userID,
		Lines:        sess.Lines(),
		Totals:       sess.Totals(),
		FreeShipping: sess.FreeShipping(),
		CreatedAt:    s.now(),
	}
	for _, a := range applied {
		o.Promotions = append(o.Promotions, AppliedSummary{
			PromotionID: a.Promotion.ID,
			Code:        a.Code,
			AutoApplied: a.AutoApplied,
			Discount:    a.DiscountAmount().StringFixed(2),
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	for _, a := range applied {
		if err := s.promotions.IncrementUsage(ctx, a.Promotion.ID); err != nil {
			return nil, errors.Wrap(err, "increment promotion usage")
		}
		if userID == "" {
			continue
		}
		rec := promotion.UsageRecord{
			PromotionID: a.Promotion.ID,
			UserID:      userID,
			OrderID:     o.ID,
			UsedAt:      o.CreatedAt,
		}
		if err := s.usage.Record(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "record promotion usage")
		}
	}

	if err := s.sessions.Delete(ctx, cartID); err != nil {
		return nil, errors.Wrap(err, "delete cart session")
	}

	return o, nil
}

// withSession loads the session, takes a fresh evaluation snapshot, runs
// the transition, and persists the resulting state.
func (s *Service) withSession(
	ctx context.Context,
	cartID, userID string,
	fn func(sess *cart.Session, ev cart.Evaluation) (cart.Changes, error),
) (*Result, error) {
	ev, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, restoreCh, err := s.load(ctx, cartID, userID, ev)
	if err != nil {
		return nil, err
	}

	ch, err := fn(sess, ev)
	if err != nil {
		return nil, err
	}
	ch = mergeChanges(restoreCh, ch)

	state := SessionState{
		ID:         sess.ID(),
		UserID:     sess.UserID(),
		Lines:      sess.BaseLines(),
		ManualCode: sess.ManualCode(),
		UpdatedAt:  s.now(),
	}
	if err := s.sessions.Save(ctx, state); err != nil {
		return nil, errors.Wrap(err, "save cart session")
	}

	return &Result{Session: sess, Changes: ch}, nil
}

// snapshot fetches the promotion catalog and the user's usage records
// concurrently and fixes the evaluation clock.
func (s *Service) snapshot(ctx context.Context, userID string) (cart.Evaluation, error) {
	var (
		catalog []promotion.Promotion
		records []promotion.UsageRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = s.promotions.ListActive(gctx)
		if err != nil {
			return errors.Wrap(err, "list promotions")
		}
		return nil
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			records, err = s.usage.ListByUser(gctx, userID)
			if err != nil {
				return errors.Wrap(err, "list usage records")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cart.Evaluation{}, err
	}

	refs := make([]*promotion.Promotion, len(catalog))
	for i := range catalog {
		refs[i] = &catalog[i]
	}
	return cart.Evaluation{Catalog: refs, Usage: records, Now: s.now()}, nil
}

func (s *Service) load(ctx context.Context, cartID, userID string, ev cart.Evaluation) (*cart.Session, cart.Changes, error) {
	state, err := s.sessions.Get(ctx, cartID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			sess, ch := cart.Restore(cartID, userID, nil, "", ev)
			return sess, ch, nil
		}
		return nil, cart.Changes{}, errors.Wrap(err, "load cart session")
	}

	// The requester's identity wins over the persisted one: a cart created
	// anonymously binds to the user as soon as a request carries one, so
	// per-user allowances apply from then on.
	if userID == "" {
		userID = state.UserID
	}
	sess, ch := cart.Restore(state.ID, userID, state.Lines, state.ManualCode, ev)
	return sess, ch, nil
}

// lock acquires the per-cart mutex and returns its release function.
func (s *Service) lock(cartID string) func() {
	v, _ := s.locks.LoadOrStore(cartID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func mergeChanges(a, b cart.Changes) cart.Changes {
	if a.ManualRemoved == "" {
		a.ManualRemoved = b.ManualRemoved
	}
	a.AutoAttached = append(a.AutoAttached, b.AutoAttached...)
	a.AutoDetached = append(a.AutoDetached, b.AutoDetached...)
	return a
}
