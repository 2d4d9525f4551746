// Package alarms implements the alarm state store.
//
// The store maps alarm identifiers to their last known Record. It lives in
// memory only; records are dropped by RemoveOlderThan once the last send is
// older than the retention window, whatever their status.
package alarms
