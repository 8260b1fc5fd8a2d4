// Package command parses league commands out of chat messages and runs
// them against the roster store and the trade and signing workflows.
//
// A command is a message starting with the configured prefix, followed by a
// name and whitespace-separated arguments. Double quotes group an argument
// that contains spaces:
//
//	/addplayer "Free Agent" Hawks
//
// Each message gets a fresh cobra command tree. Every subcommand carries a
// permission annotation checked before it runs:
//
//   - open: anyone
//   - admin: a role matching one of league.admin_roles (glob patterns)
//   - signer: the league.captain_role role, or admin
//   - captain: the captain of a team in the roster store
//
// Output is collected and posted to the originating channel as one reply.
// Failures are replied as "Error: ..." unless the workflow already
// announced them.
//
// # Concurrency
//
// [Router.Listener] runs each command on its own goroutine so a trade
// waiting on a vote never blocks other commands. [Router.Wait] drains them
// on shutdown.
package command
