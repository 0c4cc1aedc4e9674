// Package phone provides phone number and WhatsApp JID utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	// DefaultRegion is used when a number has no international prefix.
	DefaultRegion = "BR"

	// DirectSuffix marks a one-to-one chat JID.
	DirectSuffix = "@s.whatsapp.net"
	// GroupSuffix marks a group chat JID.
	GroupSuffix = "@g.us"

	maxNationalDigits = 11
)

// Normalizer canonicalizes phone numbers for storage and lookup.
type Normalizer struct {
	region string
}

// NewNormalizer creates a normalizer for the given default region.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Region returns the default region used for national numbers.
func (n *Normalizer) Region() string {
	return n.region
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func (n *Normalizer) NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, ok := n.parse(trimmed)
	if !ok {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// CanonicalDigits returns the digits-only form used to correlate a lead phone
// with a chat JID. Valid numbers are expanded to their full international
// form; anything else falls back to the bare digits of the input.
func (n *Normalizer) CanonicalDigits(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if number, ok := n.parse(trimmed); ok {
		return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
	}
	return Digits(trimmed)
}

// parse reads bare digit strings longer than a national number as
// international, so digits taken from a JID keep their country code.
func (n *Normalizer) parse(input string) (*phonenumbers.PhoneNumber, bool) {
	candidates := []string{input}
	if !strings.HasPrefix(input, "+") && Digits(input) == input {
		if len(input) > maxNationalDigits {
			candidates = []string{"+" + input, input}
		} else {
			candidates = []string{input, "+" + input}
		}
	}

	for _, candidate := range candidates {
		number, err := phonenumbers.Parse(candidate, n.region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(number) {
			return number, true
		}
	}
	return nil, false
}

// Digits strips every non-digit character.
func Digits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsGroupJID reports whether the JID addresses a group chat.
func IsGroupJID(jid string) bool {
	return strings.Contains(jid, GroupSuffix)
}

// PhoneFromJID strips the direct-chat suffix and returns the bare number.
// The second result is false when the remainder is not all digits.
func PhoneFromJID(jid string) (string, bool) {
	bare := strings.TrimSpace(strings.Replace(jid, DirectSuffix, "", 1))
	if bare == "" {
		return "", false
	}
	for _, r := range bare {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return bare, true
}

// JIDFromDigits builds the direct-chat JID for a digit string.
func JIDFromDigits(digits string) string {
	return digits + DirectSuffix
}
