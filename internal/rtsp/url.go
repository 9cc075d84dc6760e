package rtsp

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidURL is wrapped by every Parse failure so callers can both match
// the kind and read the specific reason.
var ErrInvalidURL = errors.New("Invalid RTSP URL")

const maskPlaceholder = "***"

var maskRegex = regexp.MustCompile(`(?i)^(rtsp://[^:@/]+):([^@/]+)@`)

// Parsed holds the connection identity extracted from a stream URL.
type Parsed struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Parse extracts host, port, and credentials from an rtsp:// URL.
// The port defaults to 554 when absent; credentials are percent-decoded.
func Parse(raw string) (Parsed, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, "rtsp") {
		return Parsed{}, fmt.Errorf("%w: not rtsp scheme", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return Parsed{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := 554
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Parsed{}, fmt.Errorf("%w: invalid port", ErrInvalidURL)
		}
	}

	parsed := Parsed{
		Host: u.Hostname(),
		Port: port,
	}
	if u.User != nil {
		parsed.Username = u.User.Username()
		parsed.Password, _ = u.User.Password()
	}
	return parsed, nil
}

// Mask replaces the password in a stream URL with "***" for display.
// Textual substitution, not URL reassembly: serializing through
// net/url would percent-encode the placeholder. Non-rtsp strings and
// URLs without a password pass through untouched. Idempotent.
func Mask(raw string) string {
	return maskRegex.ReplaceAllString(raw, "${1}:"+maskPlaceholder+"@")
}

// IsMasked reports whether a URL still carries the "***" placeholder.
// Used to keep a masked value shown to a UI from being persisted as if
// it were a real credential.
func IsMasked(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return strings.Contains(raw, ":***@")
	}
	if !strings.EqualFold(u.Scheme, "rtsp") || u.User == nil {
		return false
	}
	pass, _ := u.User.Password()
	return pass == maskPlaceholder
}
