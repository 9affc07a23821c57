package protocol

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/siohaza/tankwars/internal/validation"
)

const DefaultName = "player"

// SanitizeName normalizes a display name to NFC, drops control characters and
// caps it at validation.MaxNameLen runes.
func SanitizeName(raw string) string {
	name := norm.NFC.String(raw)

	var b strings.Builder
	count := 0
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if count == validation.MaxNameLen {
			break
		}
		b.WriteRune(r)
		count++
	}

	name = strings.TrimSpace(b.String())
	if !validation.IsValidName(name) {
		return DefaultName
	}
	return name
}
