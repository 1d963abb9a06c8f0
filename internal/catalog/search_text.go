package catalog

import "strings"

// ComposeSearchText joins the non-empty fields with single spaces, lowercases
// the result and collapses whitespace runs.
func ComposeSearchText(fields ...string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.Join(fields, " ")), " "))
}
