// Package ratelimit limits how many chat commands each user may run per
// fixed window.
//
// [NewMemory] keeps counters in process. [NewRedis] keeps them in Redis so
// several bot processes share one budget; if Redis errors, the command is
// allowed and the error is logged. [New] picks one from configuration.
package ratelimit
