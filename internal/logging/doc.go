// Package logging provides structured logging for the league bot.
//
// This package wraps Go's log/slog to emit JSON logs with persistent
// context attributes. Every trade and signing workflow gets a child logger
// carrying its workflow kind and ID, so the full history of one proposal can
// be pulled out of a busy log with a single filter.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (workflow, user, team, channel)
//   - Size-based log rotation with a bounded number of backups
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/aaflbot", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	wf := logger.WithWorkflow("trade", proposalID).WithUser(requesterID)
//	wf.Info("state changed", "from", "collecting_group_a", "to", "collecting_group_b")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"state changed","workflow":"trade","workflow_id":"...","user_id":"...","from":"collecting_group_a","to":"collecting_group_b"}
//
// When the directory is empty, logs go to stderr and rotation is disabled.
package logging
