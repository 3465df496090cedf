package chat

import (
	"regexp"
	"strings"
)

// typoFixes are common misspellings, replaced on word boundaries.
var typoFixes = []struct {
	wrong, right string
}{
	{"staion", "station"},
	{"statoin", "station"},
	{"sttion", "station"},
	{"chargng", "charging"},
	{"chargin", "charging"},
	{"avaiable", "available"},
	{"availble", "available"},
	{"tommorow", "tomorrow"},
	{"tomorow", "tomorrow"},
	{"tmrw", "tomorrow"},
	{"tdy", "today"},
	{"amenties", "amenities"},
	{"cheapst", "cheapest"},
	{"nearbye", "nearby"},
	{"wi fi", "wifi"},
	{"prise", "price"},
	{"parkng", "parking"},
	{"reserv", "reserve"},
}

var typoRes = compileTypos()

func compileTypos() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(typoFixes))
	for i, t := range typoFixes {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t.wrong) + `\b`)
	}
	return out
}

// normalized is one user turn prepared for classification. fixed keeps the
// user's casing for text reused in replies and booking payloads; lower is
// the working copy for keyword checks.
type normalized struct {
	raw   string
	fixed string
	lower string
}

func normalize(raw string) normalized {
	s := strings.Join(strings.Fields(raw), " ")
	for i, re := range typoRes {
		s = re.ReplaceAllLiteralString(s, typoFixes[i].right)
	}
	s = strings.TrimRight(s, "?!. ")
	return normalized{raw: raw, fixed: s, lower: strings.ToLower(s)}
}

// wordRe compiles a case-insensitive alternation of phrases matched on word
// boundaries.
func wordRe(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
