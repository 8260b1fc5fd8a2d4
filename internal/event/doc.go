// Package event provides a pub-sub event bus that decouples the league
// workflows from the components that observe them.
//
// Trade and signing workflows, the roster store and the approval coordinator
// publish events; the metrics exporter, the Kafka outcome publisher and the
// gateway hub subscribe to them. Publishers never know who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Roster:
//   - [TeamCreatedEvent]: a team was created
//   - [RosterChangedEvent]: players joined or left a team, or captaincy, stars or cap changed
//   - [CapExceededEvent]: a committed mutation left a team above its star cap
//
// Workflows:
//   - [TradeStateChangedEvent]: a trade proposal moved between states
//   - [TradeFinishedEvent]: a trade proposal reached a terminal state
//   - [SigningFinishedEvent]: a signing reached a terminal state
//
// Approvals:
//   - [ApprovalRequestedEvent]: a consent or vote wait started
//   - [ApprovalResolvedEvent]: a consent or vote wait produced an outcome
//
// Commands:
//   - [CommandExecutedEvent]: a chat command finished
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publisher's goroutine, so long-running handlers
// should hand work off to their own goroutine. A panicking handler is
// recovered and logged; remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeTradeFinished, func(e event.Event) {
//	    fin := e.(event.TradeFinishedEvent)
//	    ...
//	})
//	bus.Publish(event.NewCapExceededEvent("Hawks", 11, 10))
package event
