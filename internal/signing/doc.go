// Package signing implements the player signing workflow.
//
// A captain nominates a player for their team. The player receives a
// direct message and accepts with ✅ or declines with ❌. Acceptance adds
// the player to the roster and grants them the team's chat role.
//
//	idle -> awaiting_player_consent -> signed | declined | timed_out
//
// A roster commit error ends the signing in failed. A role grant error is
// logged and left for the periodic role sync to repair; the signing still
// counts as signed.
package signing
