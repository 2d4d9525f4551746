package relay

import "errors"

// errUnknownLogLevel is returned for a log level ParseLogLevel does not know.
var errUnknownLogLevel = errors.New("unknown log level")
