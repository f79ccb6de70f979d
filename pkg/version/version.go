package version

import "runtime/debug"

// Name identifies the server in the MCP handshake and outbound requests.
const Name = "mcpsales"

// version is replaced at link time with
// -ldflags "-X github.com/vinodismyname/mcpsales/pkg/version.version=v1.2.3".
var version = "dev"

// Version prefers the module version stamped into the build info (go install
// pkg@version) and falls back to the link-time value.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	switch v := info.Main.Version; v {
	case "", "(devel)":
		return version
	default:
		return v
	}
}

// UserAgent is sent with remote sheet downloads.
func UserAgent() string {
	return Name + "/" + Version()
}
