package slug

import (
	"regexp"
	"strings"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Latin letters with diacritics that show up in product and collection
// names ("Rosé Gold", "Crème Bangle").
var transliterator = strings.NewReplacer(
	"&", " and ",
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n",
	"'", "", "’", "",
)

// Generate creates a URL-friendly slug from a product or category name.
//
//   - "22K Gold Jhumka" → "22k-gold-jhumka"
//   - "Rosé Gold & Diamond" → "rose-gold-and-diamond"
//   - "Men's  Kada!" → "mens-kada"
func Generate(name string) string {
	s := transliterator.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Matches reports whether candidate and name reduce to the same non-empty slug.
func Matches(name, candidate string) bool {
	c := Generate(candidate)
	return c != "" && c == Generate(name)
}
