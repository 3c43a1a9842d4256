package utils

import "strings"

// MediaURL turns a media library image id into a public URL. An empty base
// or id yields an empty URL so callers can skip the banner entirely.
func MediaURL(base, imageID string) string {
	if base == "" || imageID == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/media/" + imageID
}
