// Package alarm contains the core domain types of the relay.
//
// Trigger is what the monitoring backend reports. Record is what the relay
// remembers about an alarm between polls: its Phase is either Problem or
// Resolved, and each phase carries only the fields valid for it.
package alarm
