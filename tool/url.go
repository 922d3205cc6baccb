package tool

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL validates base and strips trailing slashes.
func NormalizeBaseURL(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("base URL must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL has no host: %q", base)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func buildEndpointURL(base, path string) (string, error) {
	normalized, err := NormalizeBaseURL(base)
	if err != nil {
		return "", err
	}
	return normalized + path, nil
}

// BuildUploadURL builds the ingestion URL {base}/upload.
func BuildUploadURL(base string) (string, error) {
	return buildEndpointURL(base, "/upload")
}

// HostOf returns the hostname of base without port, used for reachability probes.
func HostOf(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base URL has no host: %q", base)
	}
	return u.Hostname(), nil
}
