// Package trade implements the trade negotiation state machine.
//
// A captain starts a trade in a channel. The [Engine] asks them to mention
// the players they give up (group A) and the players they want (group B),
// asks the captain of group B's team to consent by direct message, then
// opens a public vote. A strict majority of approving votes commits the
// swap through the roster store in one atomic step.
//
// # States
//
//	collecting_group_a -> collecting_group_b -> awaiting_captain_consent -> voting -> completed
//
// Any step can end in rejected or timed_out instead. A commit error ends
// the proposal in failed; it is reported, never retried. The roster is
// only written at the final commit, so an abandoned proposal leaves
// nothing to roll back.
//
// Captaincy is checked once, right after group A is collected. Setting
// [Settings.RevalidateCaptaincy] checks it again after group B and just
// before the commit.
//
// # Concurrency
//
// [Engine.Negotiate] blocks for the whole negotiation. Callers run each
// negotiation on its own goroutine; [Engine.Active] lists the ones still in
// flight.
package trade
