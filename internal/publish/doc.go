// Package publish forwards league outcomes from the event bus to a Kafka
// topic.
//
// A [Publisher] subscribes to trade and signing completions and to roster
// changes. Bus handlers run on the publisher's goroutine, so events are
// encoded and queued there and a separate [Publisher.Run] loop writes them
// in batches. When the queue is full new records are dropped and counted.
//
// Each record is a JSON envelope:
//
//	{"type": "trade.finished", "time": "...", "data": {...event fields...}}
//
// keyed by the team it concerns so a team's history stays in one partition.
package publish
