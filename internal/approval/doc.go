// Package approval provides the timeout-bounded consensus primitive shared
// by the trade and signing workflows.
//
// A [Coordinator] asks a chat [gateway.Gateway] for a decision in one of two
// modes:
//
//   - Consent: one named user is sent a direct message and the first
//     allowed reaction they add decides. No reaction before the deadline
//     means [OutcomeTimedOut].
//   - Vote: a public poll stays open for a fixed window and is tallied
//     once when the window closes. The bot's own placeholder reaction is
//     subtracted from each count and the proposal passes only when the
//     approve count is strictly greater than the reject count.
//
// Timeouts and context cancellation are outcomes, not errors; an error is
// returned only when the gateway cannot run the request at all.
//
// # Usage
//
//	coord := approval.NewCoordinator(gw, bus, logger)
//
//	d, err := coord.Consent(ctx, approval.ConsentRequest{
//	    Subject:   proposalID,
//	    Recipient: captainID,
//	    Prompt:    "Approve the trade?",
//	    Approve:   gateway.ThumbsUp,
//	    Reject:    gateway.ThumbsDown,
//	    Timeout:   24 * time.Hour,
//	})
//	if err == nil && d.Outcome == approval.OutcomeApproved {
//	    // proceed
//	}
//
// # Thread Safety
//
// All methods on [Coordinator] are safe for concurrent use. In-flight
// requests are tracked under an internal mutex and listed by [Coordinator.Pending].
package approval
