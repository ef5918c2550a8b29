// Package engine implements the tally state container.
//
// A Store owns one state value. The only way to change it is Dispatch, which
// runs the active Reducer with the current state and an action, swaps in the
// result and notifies subscribed listeners.
//
// ARCHITECTURE:
//
// Synchronous Dispatch:
// Dispatch does not return until the reducer has finished and every listener
// in the frozen snapshot has run. There is no queue, no goroutine and no
// suspension point. Everything either completes or returns an error.
//
// Dispatch Flow:
// 1. Validate the action shape (object with a defined "type")
// 2. Reject reentrant calls while the reducer is running
// 3. Run the reducer with the dispatching flag set (cleared by defer)
// 4. Swap the state, freeze the listener snapshot
// 5. Call every listener in registration order
// 6. Return the very action that was passed in
//
// Listener Snapshots:
// Subscribe and unsubscribe edit a "next" list. Dispatch freezes that list as
// "current" before notifying. Listeners may subscribe, unsubscribe or even
// dispatch while being notified; those calls only affect later passes.
//
// Composition:
// CombineReducers merges per-key reducers into one reducer over an IRObject
// state. The merged reducer returns the previous state reference unchanged
// when no slice changed, so subscribers can compare with ir.Same.
//
// Extension:
// An Enhancer wraps store construction. ApplyMiddleware is the stock enhancer
// that decorates Dispatch; the SQLite journal is built on it.
//
// CONCURRENCY:
// A Store is NOT safe for concurrent use. It is designed for exactly one
// logical caller at a time and guards reentrancy with a plain flag, not a
// lock. Wrap it with external synchronization when sharing across goroutines.
package engine
