// Package zabbix reads triggers, host interfaces and items from the Zabbix
// JSON-RPC API and downloads item charts from the Zabbix frontend.
//
// Session owns the API token: it logs in lazily, caches the token and logs
// in again when the backend reports the session as expired. WebSession does
// the same for the frontend zbx_session cookie.
package zabbix
