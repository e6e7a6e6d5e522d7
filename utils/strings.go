package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UpperFirst upper-cases the first letter of s and lower-cases the rest.
// Example: "mysql" -> "Mysql", "PGSQL" -> "Pgsql"
func UpperFirst(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
