// Package logger wraps zap with a global sugared console logger and
// context helpers (ToContext, FromContext, WithName, WithKV).
//
// Services take a context and pull the logger out of it, so a name set once
// by the poll loop ("alarm-relay") follows every trigger it processes.
package logger
