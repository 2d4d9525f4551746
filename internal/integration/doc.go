// Package integration runs the relay end to end against in-process fakes of
// the Zabbix API and the Telegram Bot API.
package integration
