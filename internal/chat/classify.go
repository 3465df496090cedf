package chat

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

// smartThreshold is the minimum confidence for a smart intent to win.
const smartThreshold = 0.7

const (
	fallbackMessage = "I didn't quite understand that. Try:\n• 'list stations'\n• 'nearby stations'\n• 'price at [station]'\n• 'amenities at [station]'\n• 'compare [station1] and [station2]'"
	emptyMessage    = "Please type something so I can help."
)

// rule is one step of the classification cascade. match returns false to
// pass the turn to the next rule.
type rule struct {
	name  string
	match func(in normalized, sess *Session) (Intent, bool)
}

// Classifier maps raw user text to an Intent. Rules run in a fixed order
// and the first match wins: station-qualified extractors come before the
// generic synonym table, so specific phrasing beats loose keywords.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a Classifier with the standard cascade.
func NewClassifier() *Classifier {
	return &Classifier{rules: []rule{
		{"follow-up", matchFollowUp},
		{"personalize", matchPersonalize},
		{"smart", matchSmart},
		{"booking-command", matchBookingCommand},
		{"bare-booking", matchBareBooking},
		{"compare", matchCompare},
		{"amenities-at", matchAmenitiesAt},
		{"has-amenity", matchHasAmenity},
		{"payment-at", matchPaymentAt},
		{"access", matchAccess},
		{"contact", matchContact},
		{"filter", matchFilter},
		{"recommend", matchRecommend},
		{"select-slot", matchSelectSlot},
		{"show-slots", matchShowSlots},
		{"list-stations", matchListStations},
		{"confirm-booking", matchConfirmBooking},
		{"hours-for", matchHoursFor},
		{"price-at", matchPriceAt},
		{"speed-at", matchSpeedAt},
		{"connectors-at", matchConnectorsAt},
		{"station-details", matchDetails},
		{"synonym", matchSynonym},
		{"vehicle-support", matchVehicleSupport},
	}}
}

// Rules returns the rule names in evaluation order.
func (c *Classifier) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Classify returns the intent for raw. sess supplies follow-up context and
// the clock for relative dates; it may be nil.
func (c *Classifier) Classify(raw string, sess *Session) Intent {
	in := normalize(raw)
	if in.lower == "" {
		return Fallback{Message: emptyMessage}
	}
	for _, r := range c.rules {
		if intent, ok := r.match(in, sess); ok {
			return intent
		}
	}
	return Fallback{Message: fallbackMessage}
}

// amenityTerms is the amenity vocabulary recognized in free text.
const amenityTerms = `waiting area|wheelchair access|wheelchair|parking|wifi|wi-fi|internet|cafeteria|cafe|coffee|restroom|toilet|washroom|bathroom|security`

var amenityTermRe = regexp.MustCompile(`(?i)\b(` + amenityTerms + `)\b`)

// --- Follow-up ---

var (
	followUpRe = regexp.MustCompile(`^(?:what about|how about|and|also|which one|book it|compare them)\b`)
	cheaperRe  = wordRe("cheaper", "cheapest", "cheap", "affordable")
	betterRe   = wordRe("best", "better", "recommended")

	followUpFields = []struct {
		field string
		re    *regexp.Regexp
	}{
		{FieldPrice, wordRe("price", "pricing", "cost", "rate", "rates", "tariff", "how much")},
		{FieldHours, wordRe("hours", "timings", "timing", "open", "opening")},
		{FieldContact, wordRe("contact", "phone", "email", "number", "operator")},
		{FieldPayment, wordRe("payment", "pay", "upi", "card", "cash")},
		{FieldSpeed, wordRe("speed", "fast", "charging speed")},
		{FieldConnectors, wordRe("connector", "connectors", "plug", "plugs")},
		{FieldAmenities, wordRe("amenities", "facilities")},
		{FieldAccess, wordRe("access", "public", "private")},
	}
)

func matchFollowUp(in normalized, sess *Session) (Intent, bool) {
	if sess == nil || (sess.LastStation == "" && len(sess.LastStations) == 0) {
		return nil, false
	}
	l := in.lower
	if !followUpRe.MatchString(l) {
		return nil, false
	}
	switch {
	case strings.HasPrefix(l, "book it"):
		if sess.LastStation == "" {
			return nil, false
		}
		return StartBookingFlow{Station: sess.LastStation}, true
	case strings.HasPrefix(l, "compare them"):
		if len(sess.LastStations) < 2 {
			return nil, false
		}
		return CompareStations{Names: [2]string{sess.LastStations[0], sess.LastStations[1]}}, true
	case strings.HasPrefix(l, "which one"):
		among := append([]string(nil), sess.LastStations...)
		if cheaperRe.MatchString(l) {
			return Recommend{Criterion: RecommendCheapest, Among: among}, true
		}
		if betterRe.MatchString(l) {
			return Recommend{Criterion: RecommendBest, Among: among}, true
		}
	}
	if !followUpOpenRe.MatchString(l) {
		return nil, false
	}

	// The remainder is either a bare field or amenity about the last
	// station, "<term> at <station>", or another station to ask the last
	// question about.
	text := in.fixed
	if len(text) != len(l) {
		text = l
	}
	rest := strings.TrimSpace(text[len(followUpOpenRe.FindString(l)):])
	if rest == "" {
		return nil, false
	}
	if isTermOnly(rest) {
		if sess.LastStation == "" {
			return nil, false
		}
		return termIntent(sess.LastStation, rest), true
	}
	if m := termAtStationRe.FindStringSubmatch(rest); m != nil && isTermOnly(m[1]) {
		return termIntent(cleanName(m[2]), m[1]), true
	}
	if notStationRe.MatchString(rest) {
		return nil, false
	}
	name := cleanName(rest)
	if name == "" {
		return nil, false
	}
	if sess.LastAmenity != "" {
		return CheckAmenity{Station: name, Amenity: sess.LastAmenity}, true
	}
	return StationQuery{Name: name, Field: sess.LastField}, true
}

var (
	followUpOpenRe  = regexp.MustCompile(`^(?:what about|how about|and|also)\b`)
	termAtStationRe = regexp.MustCompile(`(?i)^(.+?)\s+(?:at|in|for|of)\s+(.+)$`)

	// notStationRe marks a follow-up remainder that is a request of its own.
	notStationRe = regexp.MustCompile(`(?i)^(?:show|list|find|book|reserve|compare|tell|give|cancel|check|which|what|where|how|is|are|do|does|can|my|set|add|remove|nearby|near|cheap\w*|best|any|all|me|i|it|this|that|them|today|tomorrow)\b`)

	// followUpFiller may surround a field or amenity term.
	followUpFiller = map[string]bool{
		"the": true, "its": true, "their": true, "there": true, "any": true,
		"is": true, "are": true, "do": true, "they": true, "it": true,
		"have": true, "has": true, "a": true, "an": true, "what": true,
	}
)

// isTermOnly reports whether s is one or more field or amenity terms with
// nothing else but filler words.
func isTermOnly(s string) bool {
	found := false
	if amenityTermRe.MatchString(s) {
		found = true
		s = amenityTermRe.ReplaceAllString(s, " ")
	}
	for _, f := range followUpFields {
		if f.re.MatchString(s) {
			found = true
			s = f.re.ReplaceAllString(s, " ")
		}
	}
	if !found {
		return false
	}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if !followUpFiller[w] {
			return false
		}
	}
	return true
}

// termIntent asks about the first amenity or field term in terms.
func termIntent(name, terms string) Intent {
	if m := amenityTermRe.FindString(terms); m != "" {
		return CheckAmenity{Station: name, Amenity: strings.ToLower(m)}
	}
	for _, f := range followUpFields {
		if f.re.MatchString(terms) {
			return StationQuery{Name: name, Field: f.field}
		}
	}
	return StationQuery{Name: name}
}

// --- Personalization ---

var (
	showFavoritesRe  = regexp.MustCompile(`^(?:(?:show|list)(?:\s+me)?\s+)?my\s+favou?rites?$|^(?:show|list)\s+favou?rites$`)
	addFavoriteRe    = regexp.MustCompile(`(?i)^(?:set|add|save|mark)\s+(.+?)\s+as\s+(?:a\s+|my\s+)?favou?rite$`)
	addToFavoritesRe = regexp.MustCompile(`(?i)^add\s+(.+?)\s+to\s+(?:my\s+)?favou?rites$`)
	removeFavoriteRe = regexp.MustCompile(`(?i)^remove\s+(.+?)\s+from\s+(?:my\s+)?favou?rites$`)
	myVehicleRe      = regexp.MustCompile(`^my\s+(?:vehicle|ev)\s+is\s+(?:an?\s+)?(car|bike|scooter)$`)
)

func matchPersonalize(in normalized, _ *Session) (Intent, bool) {
	if showFavoritesRe.MatchString(in.lower) {
		return Personalize{Op: OpShowFavorites}, true
	}
	for _, re := range []*regexp.Regexp{addFavoriteRe, addToFavoritesRe} {
		if m := re.FindStringSubmatch(in.fixed); m != nil {
			return Personalize{Op: OpAddFavorite, Station: cleanName(m[1])}, true
		}
	}
	if m := removeFavoriteRe.FindStringSubmatch(in.fixed); m != nil {
		return Personalize{Op: OpRemoveFavorite, Station: cleanName(m[1])}, true
	}
	if m := myVehicleRe.FindStringSubmatch(in.lower); m != nil {
		return Personalize{Op: OpSetVehicle, Vehicle: m[1]}, true
	}
	return nil, false
}

// --- Smart intents ---

const (
	smartPrefix = `^(?:(?:please\s+)?(?:show|find|give|list|get)(?:\s+me)?\s+(?:the\s+|a\s+)?|(?:what|which|where)(?:'s|\s+is|\s+are)\s+(?:the\s+)?|i\s+(?:want|need)\s+(?:a\s+|the\s+)?)?`
	smartSuffix = `(?:\s+please)?$`
)

// smartIntents match whole utterances. Each needs a qualifying noun, so a
// bare keyword such as "cheap" is left to the synonym table.
var smartIntents = []struct {
	action     string
	re         *regexp.Regexp
	confidence float64
}{
	{"cheap", regexp.MustCompile(smartPrefix + `(?:cheapest|cheap|affordable|low[- ]cost|budget)\s+(?:charging\s+)?(?:stations?|chargers?|options?)` + smartSuffix), 0.9},
	{"best", regexp.MustCompile(smartPrefix + `(?:best|top|recommended)\s+(?:charging\s+)?(?:stations?|chargers?|options?)` + smartSuffix +
		`|^recommend\s+(?:me\s+)?(?:a\s+)?(?:charging\s+)?(?:station|charger)$`), 0.85},
	{"fast", regexp.MustCompile(smartPrefix + `(?:fastest|quickest)\s+(?:charging\s+)?(?:stations?|chargers?|charging)` + smartSuffix), 0.8},
	{"available", regexp.MustCompile(smartPrefix + `(?:available|free)\s+(?:charging\s+)?(?:stations?|chargers?)(?:\s+now)?` + smartSuffix +
		`|^(?:available|free|open)\s+now$|^(?:which\s+)?stations?\s+(?:are\s+)?(?:available|open)\s+now$`), 0.8},
	{"compare", regexp.MustCompile(`^compare\s+(?:all|the)\s+(?:stations|options)$|\bside[- ]by[- ]side\b`), 0.75},
	{"help", regexp.MustCompile(`^(?:help|what can you do|how does this work)$`), 0.9},
	{"where", regexp.MustCompile(`\bwhere\b.*\bcharge\b`), 0.6},
}

func matchSmart(in normalized, _ *Session) (Intent, bool) {
	for _, s := range smartIntents {
		if s.confidence < smartThreshold {
			continue
		}
		if s.re.MatchString(in.lower) {
			return SmartIntent{
				Action:     s.action,
				Confidence: s.confidence,
				Params:     map[string]string{"text": in.lower},
			}, true
		}
	}
	return nil, false
}

// --- Booking ---

var bookingCommandRe = regexp.MustCompile(`(?i)\bbook\s+(.+?)\s+on\s+(today|tomorrow|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+at\s+(\d{1,2}:\d{2})(?:\s+for\s+(\d+)\s*(minutes|mins|min|hours|hour|hrs|hr|h)?)?(?:.*\b(car|bike|scooter)\b)?`)

// ParseBookingCommand parses a one-shot booking such as
// "book Jaipur Charging Hub on tomorrow at 14:00 for 1 hour car".
// Dates resolve against now at local midnight. Slash dates are month first
// and default to the current year.
func ParseBookingCommand(text string, now time.Time) (BookingPayload, bool) {
	m := bookingCommandRe.FindStringSubmatch(text)
	if m == nil {
		return BookingPayload{}, false
	}
	date, ok := parseCommandDate(m[2], now)
	if !ok {
		return BookingPayload{}, false
	}
	clock, err := station.ParseClock(m[3])
	if err != nil {
		return BookingPayload{}, false
	}
	p := BookingPayload{
		Station: cleanName(m[1]),
		Date:    date,
		Time:    station.FormatClock(clock),
		Vehicle: strings.ToLower(m[6]),
	}
	if m[4] != "" {
		n, _ := strconv.Atoi(m[4])
		if strings.HasPrefix(strings.ToLower(m[5]), "h") {
			n *= 60
		}
		p.DurationMinutes = n
	}
	return p, true
}

func parseCommandDate(tok string, now time.Time) (time.Time, bool) {
	today := midnight(now)
	switch strings.ToLower(tok) {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}
	if t, err := time.ParseInLocation("2006-01-02", tok, now.Location()); err == nil {
		return t, true
	}
	parts := strings.Split(tok, "/")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(parts[0])
	day, _ := strconv.Atoi(parts[1])
	year := now.Year()
	if len(parts) == 3 {
		year, _ = strconv.Atoi(parts[2])
		if year < 100 {
			year += 2000
		}
	}
	return calendarDate(year, month, day, now.Location())
}

// calendarDate builds a date, rejecting values time.Date would normalize.
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func matchBookingCommand(in normalized, sess *Session) (Intent, bool) {
	p, ok := ParseBookingCommand(in.fixed, sessionNow(sess))
	if !ok {
		return nil, false
	}
	return BookingCommand{BookingPayload: p}, true
}

var (
	bareBookingRe = regexp.MustCompile(`(?i)^(?:book|reserve)(?:\s+(?:a\s+)?(?:charging\s+slot|slot|charger|station))?(?:\s+(?:at|for)?\s*(.+))?$`)

	bookingDayRe  = regexp.MustCompile(`(?i)(?:^|\s+)(?:(?:for|on)\s+)?(today|tomorrow|\d{1,2}/\d{1,2}/\d{4})$`)

	// Words after "book" that do not name a station.
	bookingFiller = map[string]bool{"it": true, "now": true, "please": true, "me": true, "one": true, "a slot": true, "slot": true}
)

func matchBareBooking(in normalized, _ *Session) (Intent, bool) {
	m := bareBookingRe.FindStringSubmatch(in.fixed)
	if m == nil {
		return nil, false
	}
	rest, day := m[1], ""
	if d := bookingDayRe.FindStringSubmatchIndex(rest); d != nil {
		day = strings.ToLower(rest[d[2]:d[3]])
		rest = rest[:d[0]]
	}
	name := cleanName(rest)
	if bookingFiller[strings.ToLower(name)] {
		name = ""
	}
	return StartBookingFlow{Station: name, Day: day}, true
}

// --- Domain extractors ---

var compareRe = regexp.MustCompile(`(?i)\bcompare\s+(.+?)\s+(?:and|vs\.?|versus|with)\s+(.+)$`)

func matchCompare(in normalized, _ *Session) (Intent, bool) {
	m := compareRe.FindStringSubmatch(in.fixed)
	if m == nil {
		return nil, false
	}
	return CompareStations{Names: [2]string{cleanName(m[1]), cleanName(m[2])}}, true
}

var amenitiesAtRe = regexp.MustCompile(`(?i)\b(?:amenities|facilities|features|services)\s+(?:at|for|of|in)\s+(.+)$`)

func matchAmenitiesAt(in normalized, _ *Session) (Intent, bool) {
	return stationField(amenitiesAtRe, in, FieldAmenities)
}

var (
	hasAmenityRe     = regexp.MustCompile(`(?i)\b(?:does|do)\s+(.+?)\s+(?:have|has|offer|provide)\s+(?:a\s+|an\s+|any\s+)?(` + amenityTerms + `)\b`)
	isThereAmenityRe = regexp.MustCompile(`(?i)\bis\s+there\s+(?:a\s+|an\s+|any\s+)?(` + amenityTerms + `)\s+(?:at|in)\s+(.+)$`)
)

func matchHasAmenity(in normalized, _ *Session) (Intent, bool) {
	if m := hasAmenityRe.FindStringSubmatch(in.fixed); m != nil {
		return CheckAmenity{Station: cleanName(m[1]), Amenity: strings.ToLower(m[2])}, true
	}
	if m := isThereAmenityRe.FindStringSubmatch(in.fixed); m != nil {
		return CheckAmenity{Station: cleanName(m[2]), Amenity: strings.ToLower(m[1])}, true
	}
	return nil, false
}

var paymentAtRe = regexp.MustCompile(`(?i)\b(?:payment|pay)(?:\s+(?:methods|options|ways|modes))?\s+(?:at|for|in)\s+(.+)$`)

func matchPaymentAt(in normalized, _ *Session) (Intent, bool) {
	return stationField(paymentAtRe, in, FieldPayment)
}

var (
	isAccessRe  = regexp.MustCompile(`(?i)^is\s+(.+?)\s+(?:public|private|semi-public|accessible|open to (?:the )?public)$`)
	accessOfRe  = regexp.MustCompile(`(?i)\baccess(?:\s+type)?\s+(?:of|for|at)\s+(.+)$`)
	whoCanUseRe = regexp.MustCompile(`(?i)^who\s+can\s+use\s+(.+)$`)
)

func matchAccess(in normalized, _ *Session) (Intent, bool) {
	for _, re := range []*regexp.Regexp{isAccessRe, accessOfRe, whoCanUseRe} {
		if intent, ok := stationField(re, in, FieldAccess); ok {
			return intent, true
		}
	}
	return nil, false
}

var contactRe = regexp.MustCompile(`(?i)\b(?:contact|phone|email|operator|number)(?:\s+(?:details|info|information|number))?\s+(?:for|of|at)\s+(.+)$`)

func matchContact(in normalized, _ *Session) (Intent, bool) {
	return stationField(contactRe, in, FieldContact)
}

var (
	filterSubjectRe    = wordRe("station", "stations", "show", "list")
	fastSubjectRe      = wordRe("charging", "station", "stations")
	ultraFastRe        = wordRe("ultra fast", "ultrafast", "ultra-fast")
	fastRe             = wordRe("fast", "rapid", "quick")
	semiPublicRe       = wordRe("semi-public", "semi public")
	publicRe           = wordRe("public")
	privateRe          = wordRe("private")
	availableRe        = wordRe("available", "free", "open now")
	withAmenityRe      = regexp.MustCompile(`\bwith\s+(?:a\s+|an\s+)?(` + amenityTerms + `)\b`)
	amenityHasRe       = wordRe("available", "has", "have")
	amenityAvailableRe = regexp.MustCompile(`\b(?:` + amenityTerms + `)\s+(?:is\s+|are\s+)?available\b`)
)

// matchFilter detects co-occurring keyword pairs rather than a grammar.
// Every criterion found is combined with AND.
func matchFilter(in normalized, _ *Session) (Intent, bool) {
	l := in.lower
	var c station.Criteria
	subject := filterSubjectRe.MatchString(l)

	switch {
	case semiPublicRe.MatchString(l) && subject:
		c.AccessType = models.AccessSemiPublic
	case publicRe.MatchString(l) && subject:
		c.AccessType = models.AccessPublic
	case privateRe.MatchString(l) && subject:
		c.AccessType = models.AccessPrivate
	}

	if fastSubjectRe.MatchString(l) {
		switch {
		case ultraFastRe.MatchString(l):
			c.Speed = "Ultra Fast"
		case fastRe.MatchString(l):
			c.Speed = "Fast"
		}
	}

	if m := withAmenityRe.FindStringSubmatch(l); m != nil {
		c.Amenity = station.AmenityKey(m[1])
	} else if m := amenityTermRe.FindString(l); m != "" && amenityHasRe.MatchString(l) {
		c.Amenity = station.AmenityKey(m)
	}

	if availableRe.MatchString(l) && subject && !amenityAvailableRe.MatchString(l) {
		c.Status = models.StatusAvailable
	}

	if c.IsZero() {
		return nil, false
	}
	return FilterStations{Criteria: c}, true
}

var (
	cheapWordRe   = wordRe("cheapest", "cheap", "cheaper", "affordable", "low cost", "budget")
	bestWordRe    = wordRe("best", "recommend", "recommended", "top rated")
	stationWordRe = wordRe("station", "stations", "charger", "chargers", "option", "options", "place")
)

func matchRecommend(in normalized, _ *Session) (Intent, bool) {
	if !stationWordRe.MatchString(in.lower) {
		return nil, false
	}
	if cheapWordRe.MatchString(in.lower) {
		return Recommend{Criterion: RecommendCheapest}, true
	}
	if bestWordRe.MatchString(in.lower) {
		return Recommend{Criterion: RecommendBest}, true
	}
	return nil, false
}

var selectSlotRe = regexp.MustCompile(`\bselect\s+(?:slot\s+|time\s+)?(\d{1,2}:\d{2})\b`)

func matchSelectSlot(in normalized, _ *Session) (Intent, bool) {
	m := selectSlotRe.FindStringSubmatch(in.lower)
	if m == nil {
		return nil, false
	}
	return Action{Name: ActionSelectSlot, Time: station.NormalizeClock(m[1])}, true
}

var (
	showSlotsRe = regexp.MustCompile(`\b(?:show|available|list|free|open)\s+(?:time\s+)?slots\b`)
	slotsWordRe = wordRe("slots")
	slotsVerbRe = wordRe("available", "show", "list", "free")
	stationsRe  = wordRe("stations")
	listVerbRe  = wordRe("list", "show", "search", "find")
	compareWord = wordRe("compare")
	confirmRe   = regexp.MustCompile(`\bconfirm\s+(?:my\s+|the\s+)?booking\b`)
)

func matchShowSlots(in normalized, _ *Session) (Intent, bool) {
	l := in.lower
	if showSlotsRe.MatchString(l) || (slotsWordRe.MatchString(l) && slotsVerbRe.MatchString(l)) {
		return Action{Name: ActionShowSlots}, true
	}
	return nil, false
}

func matchListStations(in normalized, _ *Session) (Intent, bool) {
	l := in.lower
	if l == "list stations" || (stationsRe.MatchString(l) && listVerbRe.MatchString(l) && !compareWord.MatchString(l)) {
		return Action{Name: ActionListStations}, true
	}
	return nil, false
}

func matchConfirmBooking(in normalized, _ *Session) (Intent, bool) {
	if confirmRe.MatchString(in.lower) {
		return Action{Name: ActionConfirmBooking}, true
	}
	return nil, false
}

var (
	hoursForRe = regexp.MustCompile(`(?i)\b(?:hours|timings?|schedule|operational hours|opening hours|opening time)\s+(?:for|at|of)\s+(.+)$`)
	isOpenRe   = regexp.MustCompile(`(?i)^(?:is|when is|when does)\s+(.+?)\s+open(?:\s+now|\s+today)?$`)
)

func matchHoursFor(in normalized, _ *Session) (Intent, bool) {
	if intent, ok := stationField(hoursForRe, in, FieldHours); ok {
		return intent, true
	}
	return stationField(isOpenRe, in, FieldHours)
}

var priceAtRe = regexp.MustCompile(`(?i)\b(?:price|prices|pricing|cost|rates?|tariff|charges|how much)\s+(?:is it\s+)?(?:at|for|of|in)\s+(.+)$`)

func matchPriceAt(in normalized, _ *Session) (Intent, bool) {
	return stationField(priceAtRe, in, FieldPrice)
}

var (
	speedAtRe = regexp.MustCompile(`(?i)\b(?:charging speed|speed)\s+(?:at|for|of)\s+(.+)$`)
	howFastRe = regexp.MustCompile(`(?i)^how fast is\s+(.+)$`)
)

func matchSpeedAt(in normalized, _ *Session) (Intent, bool) {
	if intent, ok := stationField(speedAtRe, in, FieldSpeed); ok {
		return intent, true
	}
	return stationField(howFastRe, in, FieldSpeed)
}

var (
	vehicleConnectorsRe = regexp.MustCompile(`^(?:(car|bike|scooter)\s+connectors?|connectors?\s+for\s+(?:my\s+|a\s+)?(car|bike|scooter))$`)
	connectorsAtRe      = regexp.MustCompile(`(?i)\bconnectors?\s+(?:at|for|of)\s+(.+?)(?:\s+for\s+(?:my\s+|a\s+|an\s+)?(car|bike|scooter))?$`)
)

func matchConnectorsAt(in normalized, _ *Session) (Intent, bool) {
	if m := vehicleConnectorsRe.FindStringSubmatch(in.lower); m != nil {
		return ConnectorFollowUp{Vehicle: m[1] + m[2]}, true
	}
	m := connectorsAtRe.FindStringSubmatch(in.fixed)
	if m == nil {
		return nil, false
	}
	return ConnectorQuery{Station: cleanName(m[1]), Vehicle: strings.ToLower(m[2])}, true
}

var detailsRe = regexp.MustCompile(`(?i)\b(?:tell me about|details (?:for|of|about)|info(?:rmation)? (?:about|on|for)|more about)\s+(.+)$`)

func matchDetails(in normalized, _ *Session) (Intent, bool) {
	return stationField(detailsRe, in, FieldGeneric)
}

// --- Generic fallbacks ---

func matchSynonym(in normalized, _ *Session) (Intent, bool) {
	if name, ok := lookupSynonym(in.lower); ok {
		return SynonymIntent{Name: name}, true
	}
	return nil, false
}

var vehicleSupportRe = regexp.MustCompile(`(?i)\bis\s+(?:my\s+)?(car|bike|scooter|\w+)\s+supported(?:\s+at\s+(.+))?$`)

func matchVehicleSupport(in normalized, _ *Session) (Intent, bool) {
	m := vehicleSupportRe.FindStringSubmatch(in.fixed)
	if m == nil {
		return nil, false
	}
	vehicle := strings.ToLower(m[1])
	if name := cleanName(m[2]); name != "" {
		return ConnectorQuery{Station: name, Vehicle: vehicle}, true
	}
	return ConnectorFollowUp{Vehicle: vehicle}, true
}

// --- Helpers ---

// stationField returns a StationQuery for the first non-empty capture of re.
func stationField(re *regexp.Regexp, in normalized, field string) (Intent, bool) {
	m := re.FindStringSubmatch(in.fixed)
	if m == nil {
		return nil, false
	}
	for _, g := range m[1:] {
		if name := cleanName(g); name != "" {
			return StationQuery{Name: name, Field: field}, true
		}
	}
	return nil, false
}

var leadingArticleRe = regexp.MustCompile(`(?i)^the\s+`)

// cleanName trims punctuation and a leading article from an extracted
// station name.
func cleanName(s string) string {
	s = strings.Trim(s, " \t\"'?!.,")
	return leadingArticleRe.ReplaceAllString(s, "")
}

func sessionNow(sess *Session) time.Time {
	if sess == nil {
		return time.Now()
	}
	return sess.now()
}
