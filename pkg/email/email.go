// Package email derives presentable names from addresses for notification
// templating when a user has not supplied a profile name.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits the local part of an address into a first and
// last name guess. "jane.doe@example.com" becomes ("Jane", "Doe").
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

// DisplayName returns a single greeting-ready name for an address, preferring
// the provided profile name when present.
func DisplayName(profileName, address string) string {
	if trimmed := strings.TrimSpace(profileName); trimmed != "" {
		return trimmed
	}
	first, _ := DeriveNameFromEmail(address)
	return first
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
