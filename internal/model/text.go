package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims s and converts it to Unicode NFC, so that the same
// store name typed on two devices compares and stores identically.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Normalize returns a copy of r with its text fields normalised.
func (r Reminder) Normalize() Reminder {
	r.ID = strings.TrimSpace(r.ID)
	r.StoreType = StoreType(strings.ToLower(strings.TrimSpace(string(r.StoreType))))
	r.Title = NormalizeText(r.Title)
	r.Memo = NormalizeText(r.Memo)
	return r
}

// Normalize returns a copy of s with its text fields normalised.
func (s Store) Normalize() Store {
	s.ID = strings.TrimSpace(s.ID)
	s.StoreType = StoreType(strings.ToLower(strings.TrimSpace(string(s.StoreType))))
	s.Name = NormalizeText(s.Name)
	return s
}
