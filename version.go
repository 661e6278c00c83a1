package backtrans

// Version information for backtrans.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/backtrans.GitCommit=abc1234"
const (
	// Name is the application name.
	Name = "backtrans"

	// Description is a short description of the application.
	Description = "Back-translation client with translation memory and batch runner"

	// Version is the semantic version of the application.
	Version = "0.3.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/backtrans"
)

// BuildInfo contains build-time information, set via ldflags.
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// FullVersion returns the version string with optional build info.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns the default User-Agent sent to translation endpoints.
func UserAgent() string {
	return "Mozilla/5.0 (compatible; " + Name + "/" + Version + ")"
}
