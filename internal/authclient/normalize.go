package authclient

import "strings"

// NormalizeAvatarURL rewrites a relative avatar reference to an absolute URL
// on the API origin. Already-absolute references pass through unchanged, so
// applying it twice is the same as applying it once.
func NormalizeAvatarURL(base, avatar string) string {
	if avatar == "" {
		return ""
	}

	if strings.HasPrefix(avatar, "http://") || strings.HasPrefix(avatar, "https://") {
		return avatar
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(avatar, "/")
}
