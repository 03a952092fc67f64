package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // e.g., []string{"https", "http"}
	AllowedDomains []string // If non-empty, only these domains are allowed
	BlockPrivate   bool     // Whether to block private/local IP addresses (SSRF protection)
	MaxLength      int      // Maximum URL length (0 = no limit)
}

// PublicWebURLConstraints allows HTTP and HTTPS and blocks private addresses.
var PublicWebURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// URL validates a URL against the given constraints.
// Returns the validated URL string and an error if validation fails.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	// Trim whitespace
	urlStr = strings.TrimSpace(urlStr)

	// Check if empty
	if urlStr == "" {
		return "", ErrEmpty
	}

	// Check length
	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}

	// Parse URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	// Validate scheme
	if len(constraints.AllowedSchemes) > 0 {
		schemeAllowed := false
		for _, scheme := range constraints.AllowedSchemes {
			if parsedURL.Scheme == scheme {
				schemeAllowed = true
				break
			}
		}
		if !schemeAllowed {
			return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsedURL.Scheme, constraints.AllowedSchemes)
		}
	}

	// Validate hostname
	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	// Check domain allowlist if specified
	if len(constraints.AllowedDomains) > 0 {
		domainAllowed := false
		for _, domain := range constraints.AllowedDomains {
			// Check exact match or subdomain
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				domainAllowed = true
				break
			}
		}
		if !domainAllowed {
			return "", fmt.Errorf("%w: %q not in allowlist", ErrDisallowedDomain, hostname)
		}
	}

	// Check for SSRF risks (private IPs, localhost, etc.)
	if constraints.BlockPrivate {
		if err := checkSSRF(hostname); err != nil {
			return "", err
		}
	}

	return urlStr, nil
}

// checkSSRF checks if a hostname could be used for SSRF attacks.
// Blocks localhost, private IPs, link-local addresses, etc.
func checkSSRF(hostname string) error {
	// Block localhost variations
	lower := strings.ToLower(hostname)
	if lower == "localhost" || lower == "localhost.localdomain" {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	// Try to resolve the hostname to IP
	ips, err := net.LookupIP(hostname)
	if err != nil {
		// If we can't resolve, allow it (DNS errors handled elsewhere)
		// This prevents blocking legitimate domains with temporary DNS issues
		return nil
	}

	// Check each resolved IP
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip.String())
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is private, loopback, or link-local.
func isPrivateIP(ip net.IP) bool {
	// Check for loopback
	if ip.IsLoopback() {
		return true
	}

	// Check for link-local
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// Check for private IPv4 ranges
	if ip4 := ip.To4(); ip4 != nil {
		// 10.0.0.0/8
		if ip4[0] == 10 {
			return true
		}
		// 172.16.0.0/12
		if ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31 {
			return true
		}
		// 192.168.0.0/16
		if ip4[0] == 192 && ip4[1] == 168 {
			return true
		}
		// 169.254.0.0/16 (link-local)
		if ip4[0] == 169 && ip4[1] == 254 {
			return true
		}
	}

	// Check for private IPv6 ranges
	if ip.To4() == nil {
		// fc00::/7 (unique local addresses)
		if len(ip) == 16 && (ip[0]&0xfe) == 0xfc {
			return true
		}
	}

	return false
}

// GeocoderURL validates the base URL of the external geocoding service.
// Production deployments set blockPrivate so a misconfiguration cannot point
// the geocoder at an internal address.
func GeocoderURL(urlStr string, blockPrivate bool) (string, error) {
	c := PublicWebURLConstraints
	c.BlockPrivate = blockPrivate
	return URL(urlStr, c)
}

// ServiceURL validates the URL of an internal service the relay talks to.
// Private addresses are allowed.
func ServiceURL(urlStr string) (string, error) {
	c := PublicWebURLConstraints
	c.BlockPrivate = false
	return URL(urlStr, c)
}
