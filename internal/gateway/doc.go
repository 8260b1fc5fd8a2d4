// Package gateway defines the chat platform contract the league workflows
// depend on, and ships [Hub], an in-process platform that implements it.
//
// Workflows never talk to a transport directly. They post notices with
// Send, wait for a user's reply with RequestText, ask one user for a
// reaction with RequestReaction and run public polls with OpenPoll. Every
// wait is bounded by a timeout and by its context, and selects inbound
// traffic with a [Predicate] value rather than a callback.
//
// # Hub
//
// A [Hub] keeps members, their roles, recent messages and the reactions on
// them. Transports such as the websocket server attach a [Sink] per
// connected member and push input through [Hub.Post] and [Hub.React]. The
// command router registers a [Listener] with [Hub.OnMessage].
//
// Channels whose name starts with [DirectPrefix] are direct-message
// channels owned by one member; only that member receives their deliveries
// and only that member may post or react there.
//
// # Reactions and polls
//
// Each member can hold one reaction per emoji on a message. When the bot
// invites reactions it adds its own placeholder reaction for every allowed
// emoji, so a raw [Tally] count includes the bot. Polls sleep for their
// whole window and read the tally once; reactions that arrive later are
// ignored.
//
// # Thread Safety
//
// All Hub methods are safe for concurrent use. Sinks and listeners are
// called without the hub lock held and may call back into the hub.
package gateway
