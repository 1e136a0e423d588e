package searchconsole

import (
	"net/url"
	"strings"
)

// DomainPropertyPrefix marks a domain property site identifier.
const DomainPropertyPrefix = "sc-domain:"

// NormalizeSiteURL returns the alternate form of a site identifier.
//
// URL-prefix properties map to their domain property (https://www.example.com/
// becomes sc-domain:www.example.com). Anything else, domain properties
// included, is prefixed with https://.
func NormalizeSiteURL(siteURL string) string {
	if u, err := url.Parse(siteURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != "" {
		return DomainPropertyPrefix + strings.ToLower(u.Hostname())
	}
	return "https://" + siteURL
}

// IsDomainProperty reports whether siteURL uses the sc-domain: form.
func IsDomainProperty(siteURL string) bool {
	return strings.HasPrefix(siteURL, DomainPropertyPrefix)
}

// IsPermissionError reports whether err looks like a permission denial.
// The API exposes no stable code for this, so the message is matched.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "permission")
}
