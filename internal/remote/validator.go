package remote

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// URLValidator decides which image URLs the relay will fetch.
//
// Host patterns match exactly, or as a domain suffix when they start with a
// dot: ".example.com" accepts cdn.example.com but not example.com.evil.
// An empty host list accepts any host.
type URLValidator struct {
	schemes []string
	hosts   []string
}

// NewURLValidator accepts http and https on any host.
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions(nil, nil)
}

// NewURLValidatorWithOptions restricts schemes and hosts. Nil schemes means
// http and https.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	v := &URLValidator{}
	for _, s := range schemes {
		v.schemes = append(v.schemes, strings.ToLower(strings.TrimSpace(s)))
	}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			v.hosts = append(v.hosts, h)
		}
	}
	return v
}

// ValidateImageURL checks imageURL before the relay fetches it.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("image URL cannot be empty", nil)
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("invalid image URL", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !contains(v.schemes, scheme) {
		return apperrors.NewValidationError(fmt.Sprintf("scheme %q not allowed", u.Scheme), nil)
	}
	if u.User != nil {
		return apperrors.NewValidationError("image URL must not carry credentials", nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return apperrors.NewValidationError("image URL must have a host", nil)
	}
	if !v.hostAllowed(host) {
		return apperrors.NewValidationError(fmt.Sprintf("host %s not allowed", host), nil)
	}
	return nil
}

func (v *URLValidator) hostAllowed(host string) bool {
	if len(v.hosts) == 0 {
		return true
	}
	for _, h := range v.hosts {
		if strings.HasPrefix(h, ".") {
			if strings.HasSuffix(host, h) {
				return true
			}
			continue
		}
		if host == h {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
