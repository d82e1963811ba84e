package domain

import (
	"regexp"
	"strings"
)

var domainPattern = regexp.MustCompile(`@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})$`)

// freemailProviders are consumer mail domains that never identify a company.
var freemailProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.de":       {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"web.de":         {},
	"gmx.de":         {},
	"gmx.net":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mail.com":       {},
	"t-online.de":    {},
	"freenet.de":     {},
}

// ExtractDomain returns the lower-cased domain part of an email address,
// or "" when the address has no parseable domain.
func ExtractDomain(email string) string {
	m := domainPattern.FindStringSubmatch(strings.TrimSpace(email))
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// IsFreemail reports whether the domain belongs to a consumer mail provider.
func IsFreemail(domain string) bool {
	_, ok := freemailProviders[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}
