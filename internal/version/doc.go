// Package version holds the build metadata of alarm-relay.
//
// Version, Commit and BuildTime are set through -ldflags -X at build time;
// local builds keep the defaults.
package version
