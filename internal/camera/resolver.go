package camera

import (
	"net"
	"net/url"
	"strconv"
)

// Defaults applied when a camera record leaves connection fields empty.
const (
	DefaultHost     = "192.168.1.64"
	DefaultPort     = 554
	DefaultUsername = "admin"
	DefaultPassword = "admin123"

	// StreamPath is the vendor's main-stream RTSP path.
	StreamPath = "/Streaming/Channels/101"
)

// ResolveSourceURI returns the RTSP address for cfg. An explicit SourceURI is
// authoritative and returned unchanged; otherwise the address is built from
// host, port and credentials, each falling back to its default.
func ResolveSourceURI(cfg Config) string {
	if cfg.SourceURI != nil && *cfg.SourceURI != "" {
		return *cfg.SourceURI
	}

	host := orDefault(cfg.Host, DefaultHost)
	port := DefaultPort
	if cfg.Port != nil && *cfg.Port > 0 {
		port = *cfg.Port
	}

	u := url.URL{
		Scheme: "rtsp",
		User:   url.UserPassword(orDefault(cfg.Username, DefaultUsername), orDefault(cfg.Password, DefaultPassword)),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   StreamPath,
	}
	return u.String()
}

func orDefault(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

// RedactURI masks the password in a source address for display. An address
// that cannot be parsed is replaced by an empty string.
func RedactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Redacted()
}
