// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build metadata, overwritten by the release pipeline via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
