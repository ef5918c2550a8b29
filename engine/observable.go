package engine

import "github.com/roach88/tally/ir"

// Observer receives state pushes from an Observable. Next is optional.
type Observer struct {
	Next func(state ir.IRValue)
}

// Subscription is returned by Observable.Subscribe.
type Subscription struct {
	unsubscribe Unsubscribe
}

// Unsubscribe stops further pushes. It is idempotent.
func (s Subscription) Unsubscribe() error {
	if s.unsubscribe == nil {
		return nil
	}
	return s.unsubscribe()
}

// Observable adapts a store to a minimal push-based observable protocol.
type Observable struct {
	store Store
}

// Subscribe pushes the current state to observer.Next immediately and after
// every dispatch until the subscription is cancelled.
func (o *Observable) Subscribe(observer *Observer) (Subscription, error) {
	if observer == nil {
		return Subscription{}, &Error{Code: ErrCodeObserver, Message: "expected the observer to be an object, got nil"}
	}

	observe := func() {
		if observer.Next == nil {
			return
		}
		state, err := o.store.GetState()
		if err != nil {
			return
		}
		observer.Next(state)
	}

	observe()
	unsubscribe, err := o.store.Subscribe(observe)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{unsubscribe: unsubscribe}, nil
}
