package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Suffix tokens that carry no identity: "Arsenal FC" and "Arsenal" are the
// same club.
var suffixTokens = map[string]bool{
	"fc": true, "afc": true, "cf": true, "sc": true, "cfc": true, "bk": true,
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// normalizeName lowercases a team or event name, strips diacritics and
// punctuation, and drops suffix tokens like "FC".
func normalizeName(s string) string {
	s = strings.ToLower(stripDiacritics(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	var kept []string
	for _, tok := range strings.Fields(b.String()) {
		if suffixTokens[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalizeName(s)) {
		set[tok] = true
	}
	return set
}

// sharedTokenCount returns how many normalized tokens two names share.
func sharedTokenCount(a, b string) int {
	as, bs := tokenSet(a), tokenSet(b)
	n := 0
	for tok := range as {
		if bs[tok] {
			n++
		}
	}
	return n
}

// tokenOverlapSimilarity is the overlap coefficient of the normalized token
// sets of two strings: shared tokens over the smaller set. Event titles
// carry filler ("NHL tonight: ...") that must not dilute the score.
func tokenOverlapSimilarity(a, b string) float64 {
	as, bs := tokenSet(a), tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	smaller := len(as)
	if len(bs) < smaller {
		smaller = len(bs)
	}
	return float64(inter) / float64(smaller)
}

var versusSeparators = []string{" vs. ", " vs ", " v ", " @ "}

// splitVersus parses an event title of the form "Team A vs Team B".
func splitVersus(title string) (string, string, bool) {
	lower := strings.ToLower(title)
	for _, sep := range versusSeparators {
		if idx := strings.Index(lower, sep); idx > 0 {
			a := strings.TrimSpace(title[:idx])
			b := strings.TrimSpace(title[idx+len(sep):])
			if a != "" && b != "" {
				return a, b, true
			}
		}
	}
	return "", "", false
}

// teamNickname returns the identity token of a team name: the final
// normalized token ("Toronto Maple Leafs" -> "leafs").
func teamNickname(team string) string {
	fields := strings.Fields(normalizeName(team))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// containsNickname reports whether a team's nickname literally appears in
// the event text. This is the primary false-positive guard on every match.
func containsNickname(eventText, team string) bool {
	nick := teamNickname(team)
	if nick == "" {
		return false
	}
	return tokenSet(eventText)[nick]
}

// nicknamePosition returns the index of the team's nickname in the
// normalized event text, or -1.
func nicknamePosition(eventText, team string) int {
	nick := teamNickname(team)
	if nick == "" {
		return -1
	}
	return strings.Index(" "+normalizeName(eventText)+" ", " "+nick+" ")
}
