package station

import (
	"sort"
	"strings"

	"github.com/zulandar/evbot/internal/models"
)

// minWordLen is the shortest query word that counts toward a word match.
const minWordLen = 3

// Rank returns the stations matching query, ordered best first.
//
// A station matches when one of its name, area, street, city, state or
// pincode contains the query, or the query contains the station name.
// Otherwise the query is split into words of at least three characters and
// the station matches when enough of them occur in one of those fields: one
// word, or two once the query has four or more significant words.
//
// Ordering: exact name match, then name substring, then number of query
// words found in the name. Ties keep directory order.
func Rank(stations []models.Station, query string) []models.Station {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	words := significantWords(q)
	required := 1
	if len(words) >= 4 {
		required = 2
	}

	type scored struct {
		s         models.Station
		exact     int
		nameWords int
	}
	var matches []scored
	for _, s := range stations {
		name := strings.ToLower(s.Name)
		fields := searchFields(s)
		ok := anyContains(fields, q) || (name != "" && strings.Contains(q, name))
		if !ok && len(words) > 0 {
			n := 0
			for _, w := range words {
				if anyContains(fields, w) {
					n++
				}
			}
			ok = n >= required
		}
		if !ok {
			continue
		}
		sc := scored{s: s}
		switch {
		case name == q:
			sc.exact = 2
		case strings.Contains(name, q):
			sc.exact = 1
		}
		for _, w := range words {
			if strings.Contains(name, w) {
				sc.nameWords++
			}
		}
		matches = append(matches, sc)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].exact != matches[j].exact {
			return matches[i].exact > matches[j].exact
		}
		return matches[i].nameWords > matches[j].nameWords
	})

	out := make([]models.Station, len(matches))
	for i, m := range matches {
		out[i] = m.s
	}
	return out
}

// Best returns the top-ranked match for query, or false.
func Best(stations []models.Station, query string) (models.Station, bool) {
	ranked := Rank(stations, query)
	if len(ranked) == 0 {
		return models.Station{}, false
	}
	return ranked[0], true
}

// searchFields are the lowercase fields a query is matched against, each on
// its own so a match cannot span two of them.
func searchFields(s models.Station) []string {
	fields := []string{s.Name, s.Address.Area, s.Address.Street, s.Address.City, s.Address.State, s.Address.Pincode}
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

func anyContains(fields []string, sub string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(f, sub) {
			return true
		}
	}
	return false
}

func significantWords(q string) []string {
	var words []string
	for _, w := range strings.Fields(q) {
		if len(w) >= minWordLen {
			words = append(words, w)
		}
	}
	return words
}
