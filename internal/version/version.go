// Package version provides the card-catalog build version.
// Set it at build time with ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/card-catalog/internal/version.Version=v0.3.0" ./cmd/card-catalog
package version

// Version defaults to "dev" for local builds.
var Version = "dev"

// UserAgent is the User-Agent sent to Scryfall.
func UserAgent() string {
	return "card-catalog/" + Version
}
