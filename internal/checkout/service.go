// Package checkout turns a session cart into a persisted order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MikeMC777/storefront/internal/cart"
	"github.com/MikeMC777/storefront/internal/events"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/pricing"
	"github.com/MikeMC777/storefront/internal/validation"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrOrderNumberCollision = errors.New("could not allocate an order number, please try again")
	ErrPersistence          = errors.New("order could not be saved, please try again")
	ErrTotalsMismatch       = errors.New("ledger totals differ from quote")
)

// ValidationError carries per-field messages for the customer form.
type ValidationError = validation.Error

const DefaultMaxAttempts = 5

type Pricer interface {
	PriceCart(ctx context.Context, lines []cart.Line, at time.Time) (pricing.Quote, error)
}

type Ledger interface {
	WithTx(ctx context.Context, fn func(order.Tx) error) error
	CreateOrder(ctx context.Context, tx order.Tx, c order.Customer, lines []pricing.Line, now time.Time) (*order.Order, error)
	CalculateTotals(ctx context.Context, tx order.Tx, o *order.Order) error
}

type UserValidator interface {
	ValidateUser(ctx context.Context, id string) (bool, error)
}

type Service struct {
	carts       cart.Store
	pricer      Pricer
	ledger      Ledger
	users       UserValidator
	publisher   events.Publisher
	clock       func() time.Time
	maxAttempts int
	log         zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.clock = now } }

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithUsers enables the existence check for customers that send a user_id.
func WithUsers(u UserValidator) Option { return func(s *Service) { s.users = u } }

func NewService(carts cart.Store, pricer Pricer, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		carts:       carts,
		pricer:      pricer,
		ledger:      ledger,
		publisher:   events.NopPublisher{},
		clock:       time.Now,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalize(c order.Customer) order.Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Instructions = strings.TrimSpace(c.Instructions)
	if c.UserID != nil && strings.TrimSpace(*c.UserID) == "" {
		c.UserID = nil
	}
	return c
}

// Checkout validates the customer, prices the session cart and writes the order
// with its items and totals in one transaction. The cart is cleared only after commit.
func (s *Service) Checkout(ctx context.Context, sessionID string, customer order.Customer) (*order.Order, error) {
	customer = normalize(customer)
	if err := validation.Struct(customer); err != nil {
		return nil, err
	}
	if customer.UserID != nil && s.users != nil {
		ok, err := s.users.ValidateUser(ctx, *customer.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user lookup: %w", ErrPersistence, err)
		}
		if !ok {
			return nil, validation.Field("user_id", "unknown user")
		}
	}

	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	now := s.clock()
	quote, err := s.pricer.PriceCart(ctx, c.Snapshot(), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if quote.Empty() {
		return nil, ErrEmptyCart
	}

	log := s.log.With().Str("session", sessionID).Logger()

	var placed *order.Order
	for attempt := 1; ; attempt++ {
		placed, err = s.place(ctx, customer, quote, now)
		if err == nil {
			break
		}
		if !order.IsRetryable(err) {
			log.Error().Err(err).Int("attempt", attempt).Msg("checkout failed")
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if attempt >= s.maxAttempts {
			log.Error().Err(err).Int("attempts", attempt).Msg("checkout retries exhausted")
			return nil, ErrOrderNumberCollision
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, ctxErr)
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("checkout conflict, retrying")
	}

	if err := s.carts.Delete(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("order_number", placed.OrderNumber).Msg("clear cart after checkout")
	}
	if err := s.publisher.Publish(ctx, events.Event{
		Type:        events.OrderPlaced,
		OrderNumber: placed.OrderNumber,
		OccurredAt:  now,
		Payload:     placed,
	}); err != nil {
		log.Warn().Err(err).Str("order_number", placed.OrderNumber).Msg("publish order.placed")
	}

	log.Info().
		Str("order_number", placed.OrderNumber).
		Str("final_total", placed.FinalTotal.StringFixed(2)).
		Int("items", len(placed.Items)).
		Msg("order placed")
	return placed, nil
}

func (s *Service) place(ctx context.Context, customer order.Customer, quote pricing.Quote, now time.Time) (*order.Order, error) {
	var placed *order.Order
	err := s.ledger.WithTx(ctx, func(tx order.Tx) error {
		o, err := s.ledger.CreateOrder(ctx, tx, customer, quote.Lines, now)
		if err != nil {
			return err
		}
		if err := s.ledger.CalculateTotals(ctx, tx, o); err != nil {
			return err
		}
		if !o.Totals().Equal(quote.Totals) {
			return fmt.Errorf("%w: order %s", ErrTotalsMismatch, o.OrderNumber)
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}
