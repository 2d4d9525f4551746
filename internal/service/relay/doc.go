// Package relay runs the poll loop: it fetches problem and resolved
// triggers from Zabbix on a fixed interval, feeds them to the lifecycle
// engine and keeps the store, metrics and health status current.
package relay
