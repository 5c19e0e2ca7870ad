package utils

import (
    "strings"
    "unicode"

    "golang.org/x/text/unicode/norm"
)

// Slugify lower-cases s, strips accents and joins the remaining runs of
// letters and digits with single dashes: "Gabriel García Márquez" becomes
// "gabriel-garcia-marquez".
func Slugify(s string) string {
    var b strings.Builder
    dash := false
    for _, r := range norm.NFD.String(strings.ToLower(s)) {
        switch {
        case unicode.Is(unicode.Mn, r):
            // combining accent left over from NFD
        case unicode.IsLetter(r) || unicode.IsDigit(r):
            if dash && b.Len() > 0 {
                b.WriteByte('-')
            }
            dash = false
            b.WriteRune(r)
        default:
            dash = true
        }
    }
    return b.String()
}

// NormalizeISBN strips hyphens and spaces so uniqueness is checked on
// digits alone.  A trailing x check digit is upper-cased.
func NormalizeISBN(s string) string {
    return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s)))
}
