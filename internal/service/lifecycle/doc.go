// Package lifecycle decides, for every trigger observation, whether the chat
// gets an alert, a reminder, a resolution, or nothing.
//
// The Engine is the only writer of the alarm store. Send failures leave the
// stored record untouched so the next poll cycle retries; nothing in here
// returns an error to the poll loop.
package lifecycle
