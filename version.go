package cadbridge

import _ "embed"

// Version is the release version of cadbridge.
//
//go:embed VERSION
var Version string
