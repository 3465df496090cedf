package chat

import "regexp"

// synonymEntry maps a generic intent to its trigger phrases.
type synonymEntry struct {
	intent  string
	phrases []string
	re      *regexp.Regexp
}

// synonyms is checked in order and the first intent with a matching phrase
// wins. Phrases are matched as whole words, so "operator" does not trigger
// "rate" and "supported" does not trigger "support".
var synonyms = buildSynonyms([]synonymEntry{
	{intent: "greeting", phrases: []string{"hello", "hi", "hey", "yo", "namaste", "good morning", "good evening"}},
	{intent: "duration", phrases: []string{"duration", "how long", "charging time", "time length", "session length"}},
	{intent: "vehicle_type", phrases: []string{"vehicle type", "which vehicle", "what vehicle", "type of vehicle", "ev type", "vehicle"}},
	{intent: "hours", phrases: []string{"hours", "opening", "timings", "timing", "when open", "operational hours", "open"}},
	{intent: "book", phrases: []string{"booking", "reservation", "make a booking"}},
	{intent: "cheap", phrases: []string{"cheap", "cheapest", "affordable", "low cost", "budget", "economical"}},
	{intent: "price", phrases: []string{"price", "cost", "fee", "charges", "rates", "rate", "pricing", "how much", "tariff"}},
	{intent: "nearby", phrases: []string{"nearby", "near me", "closest", "closest to me", "near", "around me", "proximity"}},
	{intent: "stations", phrases: []string{"stations", "station list", "all stations"}},
	{intent: "amenities", phrases: []string{"amenities", "facilities", "features", "services", "what facilities"}},
	{intent: "payment", phrases: []string{"payment", "pay", "payment methods", "payment options", "how to pay", "accepted payments"}},
	{intent: "access", phrases: []string{"access", "public", "private", "who can use", "access type"}},
	{intent: "contact", phrases: []string{"contact", "phone", "email", "number", "reach", "call", "operator"}},
	{intent: "parking", phrases: []string{"parking", "park", "parking space"}},
	{intent: "wifi", phrases: []string{"wifi", "internet", "wireless", "wi-fi"}},
	{intent: "cafe", phrases: []string{"cafe", "coffee", "food", "restaurant", "cafeteria"}},
	{intent: "restroom", phrases: []string{"restroom", "toilet", "washroom", "bathroom"}},
	{intent: "compare", phrases: []string{"compare", "comparison", "difference", "versus", "vs", "which is better"}},
	{intent: "available", phrases: []string{"available", "vacancy", "free"}},
	{intent: "fast", phrases: []string{"rapid", "quick charge", "ultra fast", "speed", "fast charger", "fast"}},
	{intent: "support", phrases: []string{"support", "problem", "issue", "complaint"}},
})

func buildSynonyms(entries []synonymEntry) []synonymEntry {
	for i := range entries {
		entries[i].re = wordRe(entries[i].phrases...)
	}
	return entries
}

// lookupSynonym returns the first intent whose phrases occur in text.
func lookupSynonym(text string) (string, bool) {
	for _, e := range synonyms {
		if e.re.MatchString(text) {
			return e.intent, true
		}
	}
	return "", false
}
