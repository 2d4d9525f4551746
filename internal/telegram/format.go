package telegram

import (
	"strings"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

//nolint:gochecknoglobals // Stateless replacer.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Prefix returns the visible marker of a message kind.
func Prefix(kind domain.Kind) string {
	switch kind {
	case domain.KindError:
		return "🚨 Error: "
	case domain.KindAlert:
		return "⚠️ "
	case domain.KindResolved:
		return "✅ "
	case domain.KindReminder:
		return "⏰ Reminder: "
	default:
		return "ℹ️ Info: "
	}
}

// FormatText prefixes text by kind and escapes it for the HTML parse mode.
func FormatText(kind domain.Kind, text string) string {
	return htmlEscaper.Replace(Prefix(kind) + text)
}
