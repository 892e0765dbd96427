package normalization

import (
  "strings"
)

// ParseInputString trims surrounding whitespace and collapses inner runs of
// whitespace to a single space.
func ParseInputString(s string) string {
  return strings.Join(strings.Fields(s), " ")
}

// ParseEmail lowercases on top of the usual trimming, emails are compared
// case-insensitively everywhere.
func ParseEmail(s string) string {
  return strings.ToLower(ParseInputString(s))
}
