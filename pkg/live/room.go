package live

import (
	"fmt"
	"net/url"
	"strings"
)

// RoomHost is the web host serving live rooms.
const RoomHost = "live.douyin.com"

// ParseRoomURL normalizes a room reference to a fetchable room URL.
// It accepts full room URLs (with or without scheme) and bare web room ids.
func ParseRoomURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}

	if isDigits(ref) {
		return "https://" + RoomHost + "/" + ref, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRef, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRef, u.Scheme)
	}
	if !strings.HasSuffix(u.Hostname(), "douyin.com") {
		return "", fmt.Errorf("%w: not a douyin URL: %s", ErrInvalidRef, u.Hostname())
	}

	rid := strings.Trim(u.Path, "/")
	if i := strings.IndexByte(rid, '/'); i >= 0 {
		rid = rid[:i]
	}
	if rid == "" {
		return "", fmt.Errorf("%w: no room id in %s", ErrInvalidRef, ref)
	}

	u.Scheme = "https"
	u.Path = "/" + rid
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
