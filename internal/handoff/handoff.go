// Package handoff builds the deep links that move a shopper's inquiry into
// a messaging app.
package handoff

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
)

// DefaultBaseURL is the WhatsApp click-to-chat endpoint.
const DefaultBaseURL = "https://wa.me"

// Linker renders inquiry and contact links.
type Linker struct {
	baseURL string
	brand   string
	phone   string
}

// NewLinker creates a linker. phone may contain any formatting; only its
// digits are used.
func NewLinker(baseURL, brand, phone string) *Linker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Linker{baseURL: strings.TrimRight(baseURL, "/"), brand: brand, phone: digits(phone)}
}

// Message returns the inquiry text for p.
func (l *Linker) Message(p domain.Product) string {
	return fmt.Sprintf("Hello %s! I'm interested in purchasing the %s priced at %s. Kindly provide more information...",
		l.brand, p.Name, domain.FormatPrice(p.PriceMinor))
}

// InquiryURL returns <base>/?text=<encoded message> for p.
func (l *Linker) InquiryURL(p domain.Product) string {
	return l.baseURL + "/?text=" + encodeComponent(l.Message(p))
}

// ContactURL returns <base>/<phone digits>, or "" when no phone is configured.
func (l *Linker) ContactURL() string {
	if l.phone == "" {
		return ""
	}
	return l.baseURL + "/" + l.phone
}

// encodeComponent escapes s for a query value, with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
