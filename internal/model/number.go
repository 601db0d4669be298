package model

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// NormalizeNumber returns the phone-number part of a contact identifier.
// It accepts bare numbers ("+55 11 99999-0000"), legacy "@c.us" ids and full JIDs.
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		if jid, err := types.ParseJID(s); err == nil {
			return jid.User
		}
		s = s[:strings.Index(s, "@")]
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactJID returns the user JID for a contact number.
func ContactJID(number string) types.JID {
	return types.NewJID(NormalizeNumber(number), types.DefaultUserServer)
}
