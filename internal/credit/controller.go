package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/rs/zerolog"
)

// Outcome of an admission attempt
type Outcome string

const (
	Granted     Outcome = "granted"
	Denied      Outcome = "denied"
	SystemError Outcome = "system_error"
)

// Decision reports the outcome and which store produced it.
type Decision struct {
	Outcome Outcome
	Store   string
}

// Controller gates work on credits. The primary store is authoritative
// whenever it answers; the fallback is consulted only when it errors.
type Controller struct {
	primary      Store
	fallback     Store
	storeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Controller
type Option func(*Controller)

// WithStoreTimeout bounds each individual store call sequence.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Controller) { c.storeTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller. fallback may be nil.
func NewController(primary, fallback Store, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		primary:      primary,
		fallback:     fallback,
		storeTimeout: 3 * time.Second,
		logger:       logger.With().Str("component", "credit").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) stores() []Store {
	if c.fallback == nil {
		return []Store{c.primary}
	}
	return []Store{c.primary, c.fallback}
}

// TryConsume checks the user's balance and consumes one credit. A Granted
// decision corresponds to exactly one decrement in exactly one store.
func (c *Controller) TryConsume(ctx context.Context, userID string) (Decision, error) {
	var errs []error
	for _, store := range c.stores() {
		outcome, err := c.tryStore(ctx, store, userID)
		if err != nil {
			c.logger.Warn().Err(err).Str("store", store.Name()).Str("user_id", userID).Msg("credit store unavailable")
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			continue
		}
		c.metrics.Admission(string(outcome), store.Name())
		return Decision{Outcome: outcome, Store: store.Name()}, nil
	}

	c.metrics.Admission(string(SystemError), "none")
	c.logger.Error().Str("user_id", userID).Msg("no credit store reachable")
	return Decision{Outcome: SystemError}, fmt.Errorf("%w: %w", ErrSystem, errors.Join(errs...))
}

func (c *Controller) tryStore(ctx context.Context, store Store, userID string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	balance, err := store.Balance(ctx, userID)
	if err != nil {
		return "", err
	}
	if balance <= 0 {
		return Denied, nil
	}
	consumed, err := store.ConsumeOne(ctx, userID)
	if err != nil {
		return "", err
	}
	if !consumed {
		// lost a race for the last credit
		return Denied, nil
	}
	return Granted, nil
}

// Balance returns the balance from the first store that answers.
func (c *Controller) Balance(ctx context.Context, userID string) (int, string, error) {
	var errs []error
	for _, store := range c.stores() {
		sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
		balance, err := store.Balance(sctx, userID)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			continue
		}
		return balance, store.Name(), nil
	}
	return 0, "", fmt.Errorf("%w: %w", ErrSystem, errors.Join(errs...))
}

// AddCredits adds n credits in the first store that answers.
func (c *Controller) AddCredits(ctx context.Context, userID string, n int) (int, string, error) {
	if n <= 0 {
		return 0, "", ErrInvalidAmount
	}
	var errs []error
	for _, store := range c.stores() {
		sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
		balance, err := store.AddCredits(sctx, userID, n)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			continue
		}
		c.logger.Info().Str("user_id", userID).Str("store", store.Name()).Int("added", n).Int("balance", balance).Msg("credits added")
		return balance, store.Name(), nil
	}
	return 0, "", fmt.Errorf("%w: %w", ErrSystem, errors.Join(errs...))
}

// Provision creates the account with initial credits in the first store that
// answers. It reports whether the account was new.
func (c *Controller) Provision(ctx context.Context, userID string, initial int) (bool, string, error) {
	var errs []error
	for _, store := range c.stores() {
		sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
		created, err := store.Provision(sctx, userID, initial)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			continue
		}
		return created, store.Name(), nil
	}
	return false, "", fmt.Errorf("%w: %w", ErrSystem, errors.Join(errs...))
}
