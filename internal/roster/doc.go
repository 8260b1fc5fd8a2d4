// Package roster owns the league's team and player state.
//
// A [Store] holds every team, its members, its captain and its star cap, plus
// every registered player's star rating. All reads and writes go through a
// single store-wide lock, so a trade's two-way swap is observed by other
// goroutines either fully applied or not at all.
//
// # Invariants
//
//   - A player belongs to at most one team.
//   - A team's captain, when set, is a current member. Moving a captain out
//     of a team (trade or removal) clears the captaincy.
//   - Star ratings are non-negative.
//
// The star cap is advisory. A mutation that pushes a team's total above its
// cap is still committed; the returned [CapStatus] reports the overflow and a
// [event.CapExceededEvent] is published so that callers can warn the league.
//
// # Ownership changes
//
// Team membership changes only through [Store.AddPlayer],
// [Store.RemovePlayer] and [Store.ApplyTrade].
//
// # Events
//
// When constructed with a bus, the store publishes a roster event after each
// committed mutation. Events are published after the lock is released.
package roster
