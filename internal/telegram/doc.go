// Package telegram delivers relay messages through the Telegram Bot API.
//
// Rate-limited calls (HTTP 429) are retried after the delay the API asks
// for, up to a total waiting budget per call.
package telegram
