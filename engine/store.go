package engine

import (
	"log/slog"

	"github.com/roach88/tally/ir"
)

// Reducer is a pure transition function (state, action) -> next state.
//
// A reducer must return a non-nil value for every action, including the
// first call where state is nil (it supplies its initial value). For action
// types it does not recognize it must return state unchanged. Reducers must
// not switch on the engine's reserved action types.
type Reducer func(state ir.IRValue, action ir.Action) (ir.IRValue, error)

// DispatchFunc is the signature of Store.Dispatch.
type DispatchFunc func(action ir.Action) (ir.Action, error)

// Store holds one state value and the reducer that updates it.
//
// The core implementation is returned by New. Enhancers may return their
// own Store that decorates an inner one (see ApplyMiddleware).
type Store interface {
	// Dispatch applies action through the reducer and notifies listeners.
	// It returns the action it was given.
	Dispatch(action ir.Action) (ir.Action, error)

	// GetState returns the current state. It fails while the reducer runs.
	GetState() (ir.IRValue, error)

	// Subscribe registers a listener for the next and later dispatches.
	Subscribe(listener Listener) (Unsubscribe, error)

	// ReplaceReducer swaps the active reducer and re-seeds the state.
	ReplaceReducer(next Reducer) error

	// Observable exposes the store as a push-based subscription source.
	Observable() *Observable
}

// Option configures store construction.
type Option func(*config)

type config struct {
	preloaded     ir.IRValue
	enhancers     []Enhancer
	enhancerCount int
	logger        *slog.Logger
}

// WithPreloadedState sets the starting state. A nil value means "no
// preloaded state": the reducer supplies its own initial value.
func WithPreloadedState(state ir.IRValue) Option {
	return func(c *config) {
		c.preloaded = state
	}
}

// WithEnhancer hands construction to an enhancer. Only one enhancer may be
// supplied; combine several with ComposeEnhancers.
func WithEnhancer(enhancer Enhancer) Option {
	return func(c *config) {
		c.enhancers = append(c.enhancers, enhancer)
		c.enhancerCount++
	}
}

// WithLogger sets the logger used by the store. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates a store.
//
// Without an enhancer the store is created with the preloaded state (if any)
// and immediately receives the reserved INIT action, so the reducer fills in
// whatever the preloaded state left unset. Errors from that seeding dispatch
// are returned.
//
// With an enhancer, construction is delegated: the enhancer receives the
// plain constructor and returns the store it builds.
func New(reducer Reducer, opts ...Option) (Store, error) {
	if reducer == nil {
		return nil, argumentError("expected the root reducer to be a function, got nil")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	if cfg.enhancerCount > 1 {
		return nil, argumentError("passing several enhancers is not supported; compose them into a single enhancer with ComposeEnhancers")
	}
	if cfg.enhancerCount == 1 {
		enhancer := cfg.enhancers[0]
		if enhancer == nil {
			return nil, argumentError("expected the enhancer to be a function, got nil")
		}
		enhanced := enhancer(baseConstructor(cfg.logger))
		if enhanced == nil {
			return nil, argumentError("enhancer returned a nil constructor")
		}
		return enhanced(reducer, cfg.preloaded)
	}

	return construct(reducer, cfg.preloaded, cfg.logger)
}

// baseConstructor is the unenhanced constructor handed to enhancers.
func baseConstructor(logger *slog.Logger) Constructor {
	return func(reducer Reducer, preloaded ir.IRValue) (Store, error) {
		if reducer == nil {
			return nil, argumentError("expected the root reducer to be a function, got nil")
		}
		return construct(reducer, preloaded, logger)
	}
}

// construct wraps newStore so a failed construction yields a nil interface.
func construct(reducer Reducer, preloaded ir.IRValue, logger *slog.Logger) (Store, error) {
	s, err := newStore(reducer, preloaded, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// store is the core Store implementation.
//
// INVARIANTS:
//   - state is only assigned after the reducer returned successfully
//   - dispatching is true only while the reducer runs
//   - state is never nil after construction succeeds
type store struct {
	reducer     Reducer
	state       ir.IRValue
	listeners   *listenerList
	dispatching bool
	observable  *Observable
	logger      *slog.Logger
}

func newStore(reducer Reducer, preloaded ir.IRValue, logger *slog.Logger) (*store, error) {
	s := &store{
		reducer:   reducer,
		state:     preloaded,
		listeners: newListenerList(),
		logger:    logger,
	}
	s.observable = &Observable{store: s}

	if _, err := s.Dispatch(initAction()); err != nil {
		return nil, err
	}
	logger.Debug("store created", "state_kind", ir.Kind(s.state))
	return s, nil
}

// GetState returns the current state reference. Callers must treat it as
// read-only; all updates go through Dispatch.
func (s *store) GetState() (ir.IRValue, error) {
	if s.dispatching {
		return nil, reentrancyError("you may not call GetState while the reducer is executing; the reducer already received the state as an argument")
	}
	return s.state, nil
}

// Subscribe adds a listener. It is not called for a dispatch already in
// progress, only from the next one on.
func (s *store) Subscribe(listener Listener) (Unsubscribe, error) {
	if listener == nil {
		return nil, argumentError("expected the listener to be a function, got nil")
	}
	if s.dispatching {
		return nil, reentrancyError("you may not call Subscribe while the reducer is executing")
	}

	id := s.listeners.add(listener)
	subscribed := true

	return func() error {
		if !subscribed {
			return nil
		}
		if s.dispatching {
			return reentrancyError("you may not unsubscribe from a store listener while the reducer is executing")
		}
		subscribed = false
		s.listeners.remove(id)
		return nil
	}, nil
}

// Dispatch runs the reducer and notifies listeners.
//
// If the reducer fails (error or nil result) the state is left untouched and
// no listener runs. A panicking reducer still clears the dispatching flag.
func (s *store) Dispatch(action ir.Action) (ir.Action, error) {
	if action == nil {
		return nil, &Error{Code: ErrCodeActionShape, Message: "actions must be plain objects, got nil"}
	}
	if action.Type() == nil {
		return nil, &Error{Code: ErrCodeActionShape, Message: `actions may not have an undefined "type" field`}
	}
	if s.dispatching {
		return nil, &Error{
			Code:       ErrCodeReentrancy,
			Message:    "reducers may not dispatch actions",
			ActionType: action.TypeName(),
		}
	}

	next, err := s.reduce(action)
	if err != nil {
		return nil, err
	}
	s.state = next

	for _, l := range s.listeners.freeze() {
		l.fn()
	}

	return action, nil
}

// reduce runs the reducer with the dispatching flag held.
func (s *store) reduce(action ir.Action) (ir.IRValue, error) {
	s.dispatching = true
	defer func() { s.dispatching = false }()

	next, err := s.reducer(s.state, action)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, NewReducerContractError("", action.TypeName(),
			"the reducer returned an absent state; return the previous state to ignore an action, or IRNull for an empty value")
	}
	return next, nil
}

// ReplaceReducer swaps the reducer and dispatches the reserved REPLACE
// action so every slice is recomputed. Slices the new reducer shares with
// the old one keep their current value as the previous state.
func (s *store) ReplaceReducer(next Reducer) error {
	if next == nil {
		return argumentError("expected the next reducer to be a function, got nil")
	}
	if s.dispatching {
		return reentrancyError("you may not replace the reducer while the reducer is executing")
	}
	s.reducer = next
	s.logger.Debug("reducer replaced")

	_, err := s.Dispatch(replaceAction())
	return err
}

func (s *store) Observable() *Observable {
	return s.observable
}
