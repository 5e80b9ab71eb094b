package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/farellandr/showticket/internal/models"
	"github.com/samber/lo"
)

const PlaceholderAttendee = "Convidado"

type Attendee struct {
	Name string
	Role models.PersonRole
}

// SplitGuests accepts one guest per line, or comma or semicolon separated.
func SplitGuests(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	names := lo.Map(parts, func(s string, _ int) string {
		return strings.Join(strings.Fields(s), " ")
	})
	return lo.Filter(names, func(s string, _ int) bool { return s != "" })
}

func ExpandAttendees(buyerName, guestsText string) []Attendee {
	names := SplitGuests(guestsText)
	if buyer := strings.Join(strings.Fields(buyerName), " "); buyer != "" {
		names = append([]string{buyer}, names...)
	}
	if len(names) == 0 {
		names = []string{PlaceholderAttendee}
	}

	return lo.Map(names, func(name string, i int) Attendee {
		role := models.RoleGuest
		if i == 0 {
			role = models.RoleBuyer
		}
		return Attendee{Name: name, Role: role}
	})
}

// PartyHash identifies the party composition, ignoring case and spacing.
func PartyHash(buyerName, guestsText string) string {
	names := lo.Map(ExpandAttendees(buyerName, guestsText), func(a Attendee, _ int) string {
		return strings.ToLower(a.Name)
	})
	sum := sha256.Sum256([]byte(strings.Join(names, "\n")))
	return hex.EncodeToString(sum[:])
}
