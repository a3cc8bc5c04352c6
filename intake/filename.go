package intake

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims s and puts it in Unicode NFC form, so names typed on
// different devices compare and sort alike.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// FileName builds {groupId}_{name}_{phone}_{unixMillis}.jpg.  Path
// separators and control characters become "-".
func FileName(groupID, name, phone string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%d.jpg",
		safe(groupID), safe(name), safe(phone), now.UnixMilli())
}

func safe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '-'
		}
		return r
	}, Normalize(s))
}
