package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

const (
	// DefaultDirectoryTimeout bounds a single Directory call.
	DefaultDirectoryTimeout = 5 * time.Second
	// DefaultMaxList caps how many stations a plain listing shows.
	DefaultMaxList = 10

	maxAlternatives = 5
	maxFiltered     = 8
	maxRecommended  = 5
	maxNearby       = 5
	maxSlotsShown   = 20
)

const (
	searchingMessage   = "⏳ Still searching… the station directory is slow right now. Please try again in a moment."
	unavailableMessage = "❌ No stations available right now. Please try again later."
	emptyDirectory     = "❌ No charging stations found."
	formClosedMessage  = "📋 Booking form not open. Type 'book' to start a booking."
)

// Availability reports the slot grid of a station on a day.
type Availability interface {
	Slots(ctx context.Context, stationName string, day time.Time) ([]station.Slot, error)
}

// Dispatcher turns intents into replies.
type Dispatcher struct {
	dir     station.Directory
	bridge  *Bridge
	avail   Availability
	timeout time.Duration
	maxList int
	city    string
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Directory    station.Directory
	Bridge       *Bridge
	Availability Availability
	Timeout      time.Duration // per Directory call; defaults to DefaultDirectoryTimeout
	MaxList      int           // defaults to DefaultMaxList
	City         string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Directory == nil {
		return nil, fmt.Errorf("chat: dispatcher: directory is required")
	}
	if opts.Bridge == nil {
		return nil, fmt.Errorf("chat: dispatcher: bridge is required")
	}
	if opts.Availability == nil {
		return nil, fmt.Errorf("chat: dispatcher: availability is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDirectoryTimeout
	}
	maxList := opts.MaxList
	if maxList <= 0 {
		maxList = DefaultMaxList
	}
	return &Dispatcher{
		dir:     opts.Directory,
		bridge:  opts.Bridge,
		avail:   opts.Availability,
		timeout: timeout,
		maxList: maxList,
		city:    opts.City,
	}, nil
}

// Dispatch produces the reply for intent, updating sess as a side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, intent Intent) Reply {
	switch in := intent.(type) {
	case SynonymIntent:
		return d.synonym(ctx, sess, in.Name)
	case StationQuery:
		return d.stationQuery(ctx, sess, in)
	case BookingCommand:
		return d.bookingCommand(ctx, sess, in.BookingPayload)
	case StartBookingFlow:
		return d.startFlow(ctx, sess, in.Station, in.Day)
	case CompareStations:
		return d.compare(ctx, sess, in.Names)
	case FilterStations:
		return d.filter(ctx, sess, in.Criteria)
	case Recommend:
		return d.recommend(ctx, sess, in.Criterion, in.Among)
	case ConnectorQuery:
		return d.connectors(ctx, sess, in)
	case ConnectorFollowUp:
		return d.armConnectorFollowUp(sess, in.Vehicle)
	case CheckAmenity:
		return d.checkAmenity(ctx, sess, in)
	case SmartIntent:
		return d.smart(ctx, sess, in)
	case Action:
		return d.action(ctx, sess, in)
	case Personalize:
		return d.personalize(sess, in)
	case Fallback:
		var r Reply
		r.Say(in.Message)
		r.Offer(defaultQuickReplies()...)
		return r
	}
	log.Printf("chat: unhandled intent %T", intent)
	var r Reply
	r.Say(fallbackMessage)
	return r
}

// --- Directory access ---

// stations lists the directory under the call timeout. On failure the
// returned reply explains it to the user.
func (d *Dispatcher) stations(ctx context.Context) ([]models.Station, *Reply) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	all, err := d.dir.List(ctx)
	if err != nil {
		r := d.failure(err)
		return nil, &r
	}
	return all, nil
}

// lookup resolves name to its best fuzzy match. When nothing matches,
// alts holds up to maxAlternatives station names to offer instead.
func (d *Dispatcher) lookup(ctx context.Context, name string) (st models.Station, found bool, alts []string, fail *Reply) {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	matches, err := d.dir.Search(sctx, name)
	cancel()
	if err != nil {
		r := d.failure(err)
		return models.Station{}, false, nil, &r
	}
	if len(matches) > 0 {
		return matches[0], true, nil, nil
	}
	all, r := d.stations(ctx)
	if r != nil {
		return models.Station{}, false, nil, r
	}
	for i := 0; i < len(all) && i < maxAlternatives; i++ {
		alts = append(alts, all[i].Name)
	}
	return models.Station{}, false, alts, nil
}

// resolve is lookup with the standard no-match reply.
func (d *Dispatcher) resolve(ctx context.Context, name string) (models.Station, Reply, bool) {
	st, found, alts, fail := d.lookup(ctx, name)
	if fail != nil {
		return models.Station{}, *fail, false
	}
	if !found {
		return models.Station{}, noMatchReply(name, alts), false
	}
	return st, Reply{}, true
}

func (d *Dispatcher) failure(err error) Reply {
	var r Reply
	if errors.Is(err, context.DeadlineExceeded) {
		r.Say(searchingMessage)
		return r
	}
	log.Printf("chat: directory: %v", err)
	r.Say(unavailableMessage)
	return r
}

func noMatchReply(name string, alts []string) Reply {
	var r Reply
	if len(alts) == 0 {
		r.Sayf("❌ No match for %q and no stations are listed right now.", name)
		return r
	}
	r.Sayf("❌ No match for %q. Here are available stations:", name)
	for _, a := range alts {
		r.Offer(qr(a, "tell me about "+a))
	}
	return r
}

// --- Station answers ---

func (d *Dispatcher) stationQuery(ctx context.Context, sess *Session, q StationQuery) Reply {
	st, r, ok := d.resolve(ctx, q.Name)
	if !ok {
		return r
	}
	sess.SetLastStation(st.Name)
	sess.RecordQuestion(q.Field, "")
	if q.Field == FieldConnectors {
		return connectorReply(st, "")
	}
	r.Say(renderField(st, q.Field))
	r.Offer(stationQuickReplies(st.Name)...)
	return r
}

func (d *Dispatcher) checkAmenity(ctx context.Context, sess *Session, q CheckAmenity) Reply {
	st, r, ok := d.resolve(ctx, q.Station)
	if !ok {
		return r
	}
	sess.SetLastStation(st.Name)
	sess.RecordQuestion("", q.Amenity)
	key := station.AmenityKey(q.Amenity)
	if st.Amenities.Has(key) {
		r.Sayf("✅ Yes! %s has %s %s.", st.Name, station.AmenityIcon(key), amenityPhrase(key))
	} else {
		r.Sayf("❌ Sorry, %s doesn't have %s.", st.Name, amenityPhrase(key))
	}
	r.Offer(qr("All amenities", "amenities at "+st.Name), qr("Book", "book "+st.Name))
	return r
}

func (d *Dispatcher) connectors(ctx context.Context, sess *Session, q ConnectorQuery) Reply {
	st, r, ok := d.resolve(ctx, q.Station)
	if !ok {
		return r
	}
	sess.SetLastStation(st.Name)
	sess.RecordQuestion(FieldConnectors, "")
	return connectorReply(st, q.Vehicle)
}

// connectorReply lists a station's connectors, or only those a vehicle can
// use. Unknown vehicle kinds are checked as cars.
func connectorReply(st models.Station, vehicle string) Reply {
	var r Reply
	if vehicle == "" {
		if len(st.Connectors) == 0 {
			r.Sayf("🔌 No connector information for %s.", st.Name)
		} else {
			r.Sayf("🔌 Connectors at %s:\n%s", st.Name, connectorLines(st.Connectors))
		}
		r.Offer(stationQuickReplies(st.Name)...)
		return r
	}
	usable, known := station.CompatibleConnectors(st, vehicle)
	if !known {
		usable, _ = station.CompatibleConnectors(st, "car")
	}
	if len(usable) == 0 {
		r.Sayf("❌ %s has no connectors compatible with your %s.", st.Name, vehicle)
		r.Offer(qr("Show all stations", "list stations"))
		return r
	}
	r.Sayf("✅ Your %s is supported at %s:\n%s", vehicle, st.Name, connectorLines(usable))
	r.Offer(qr("Book", "book "+st.Name), qr("Price", "price at "+st.Name))
	return r
}

func (d *Dispatcher) armConnectorFollowUp(sess *Session, vehicle string) Reply {
	sess.FollowUp = &ConnectorFollowUp{Vehicle: vehicle}
	var r Reply
	r.Sayf("Which station do you want me to check for your %s? Please type the station name.", vehicle)
	for _, f := range sess.Prefs.Favorites {
		r.Offer(qr(f, f))
	}
	return r
}

// --- Lists ---

func (d *Dispatcher) compare(ctx context.Context, sess *Session, names [2]string) Reply {
	var found []models.Station
	var missing []string
	var alts []string
	for _, n := range names {
		st, ok, a, fail := d.lookup(ctx, n)
		if fail != nil {
			return *fail
		}
		if !ok {
			missing = append(missing, n)
			if alts == nil {
				alts = a
			}
			continue
		}
		found = append(found, st)
	}

	var r Reply
	if len(missing) > 0 {
		text := "❌ Could not find one or both stations."
		for _, m := range missing {
			text += fmt.Sprintf("\n• %q not found", m)
		}
		r.Say(text)
		for _, a := range alts {
			r.Offer(qr(a, "tell me about "+a))
		}
		return r
	}
	sess.RecordStationResult(found)
	r.Say(renderComparison(found[0], found[1]))
	r.Offer(qr("Book "+found[0].Name, "book "+found[0].Name), qr("Book "+found[1].Name, "book "+found[1].Name))
	return r
}

func (d *Dispatcher) filter(ctx context.Context, sess *Session, c station.Criteria) Reply {
	all, fail := d.stations(ctx)
	if fail != nil {
		return *fail
	}
	matches := station.Filter(all, c)
	var r Reply
	if len(matches) == 0 {
		r.Sayf("❌ No stations match your criteria (%s).", c.Describe())
		r.Offer(qr("Show all stations", "list stations"))
		return r
	}
	sess.RecordStationResult(matches)
	r.Sayf("✅ Found %d %s station(s):\n%s", len(matches), c.Describe(), stationLines(matches, maxFiltered))
	offerStations(&r, matches)
	return r
}

func (d *Dispatcher) recommend(ctx context.Context, sess *Session, criterion string, among []string) Reply {
	all, fail := d.stations(ctx)
	if fail != nil {
		return *fail
	}
	if len(among) > 0 {
		all = station.Named(all, among)
	}

	var r Reply
	if criterion == RecommendCheapest {
		priced := station.Cheapest(all)
		if len(priced) == 0 {
			r.Say("❌ No pricing information is available for these stations.")
			return r
		}
		top := priced[:min(len(priced), maxRecommended)]
		sess.RecordStationResult(top)
		text := "💰 Most Affordable Stations:"
		for i, st := range top {
			text += fmt.Sprintf("\n%d. %s - %s/kWh", i+1, st.Name, money(st.Pricing, st.Pricing.PerUnit))
		}
		r.Say(text)
		offerStations(&r, top)
		return r
	}

	ranked := station.BestRanked(all)
	if len(ranked) == 0 {
		r.Say(emptyDirectory)
		return r
	}
	ranked = ranked[:min(len(ranked), maxRecommended)]
	top := make([]models.Station, len(ranked))
	text := "⭐ Top Recommended Stations:"
	for i, sc := range ranked {
		top[i] = sc.Station
		text += fmt.Sprintf("\n%d. %s - %s, %s, %d amenities",
			i+1, sc.Station.Name, sc.Station.Status, orDash(sc.Station.ChargingSpeed), sc.Station.Amenities.Count())
	}
	sess.RecordStationResult(top)
	r.Say(text)
	offerStations(&r, top)
	return r
}

func (d *Dispatcher) listStations(ctx context.Context, sess *Session) Reply {
	all, fail := d.stations(ctx)
	if fail != nil {
		return *fail
	}
	var r Reply
	if len(all) == 0 {
		r.Say(emptyDirectory)
		return r
	}
	sess.RecordStationResult(all)
	r.Say(listText(all, d.maxList))
	offerStations(&r, all)
	return r
}

func (d *Dispatcher) nearby(ctx context.Context, sess *Session) Reply {
	all, fail := d.stations(ctx)
	if fail != nil {
		return *fail
	}
	var r Reply
	if len(all) == 0 {
		r.Say(emptyDirectory)
		return r
	}
	if sess.Location == nil || !sess.Location.Valid() {
		r.Warn("Location access denied. This feature requires location permission.")
		r.Say("Showing all available stations instead:\n" + listText(all, d.maxList))
		sess.RecordStationResult(all)
		offerStations(&r, all)
		return r
	}
	nearest := station.Nearest(all, *sess.Location, maxNearby)
	top := make([]models.Station, len(nearest))
	text := "📍 Nearest stations:"
	for i, n := range nearest {
		top[i] = n.Station
		text += fmt.Sprintf("\n%d. %s - %s away (%s)", i+1, n.Station.Name, n.Label(), n.Station.Status)
	}
	sess.RecordStationResult(top)
	r.Say(text)
	offerStations(&r, top)
	return r
}

// --- Booking ---

func (d *Dispatcher) bookingCommand(ctx context.Context, sess *Session, p BookingPayload) Reply {
	if p.Date.Before(midnight(sess.now())) {
		var r Reply
		r.Say("❌ That date is in the past. Please choose today or a later date.")
		return r
	}
	st, r, ok := d.resolve(ctx, p.Station)
	if !ok {
		return r
	}
	sess.SetLastStation(st.Name)
	p.Station = st.Name
	if p.Vehicle == "" && sess.Prefs.Vehicle != "" {
		p.Vehicle = sess.Prefs.Vehicle
	}
	r.Say(bookingSummary(p))
	r.Append(d.bridge.Fill(ctx, sess.Key, p))
	return r
}

func (d *Dispatcher) action(ctx context.Context, sess *Session, a Action) Reply {
	if a.Name == ActionListStations {
		return d.listStations(ctx, sess)
	}

	var r Reply
	form, err := d.bridge.Form(sess.Key)
	if err != nil {
		r.Say(formClosedMessage)
		r.Offer(qr("📅 Book a slot", "book"))
		return r
	}
	switch a.Name {
	case ActionShowSlots:
		slots, err := form.ListAvailableSlots(ctx)
		if err != nil {
			r.Warn("Could not load time slots: %v", err)
			return r
		}
		free := station.Unbooked(slots)
		if len(free) == 0 {
			r.Say("❌ No free slots for the selected station and date.")
			return r
		}
		r.Messages = append(r.Messages, Message{
			Text:  fmt.Sprintf("🕐 %d available slots:", len(free)),
			Slots: free[:min(len(free), maxSlotsShown)],
		})
	case ActionSelectSlot:
		if err := form.SelectSlot(ctx, a.Time); err != nil {
			r.Warn("Could not select slot %s: %v", a.Time, err)
			return r
		}
		r.Sayf("✅ Selected slot %s.", a.Time)
		r.Offer(qr("Confirm booking", "confirm booking"))
	case ActionConfirmBooking:
		ref, err := form.Submit(ctx)
		if err != nil {
			r.Warn("Could not confirm booking: %v", err)
			return r
		}
		r.Sayf("✅ Booking confirmed! Reference: %s", ref)
	default:
		log.Printf("chat: unknown action %q", a.Name)
		r.Say(fallbackMessage)
	}
	return r
}

// --- Personalization ---

func (d *Dispatcher) personalize(sess *Session, p Personalize) Reply {
	var r Reply
	prefs := sess.Prefs
	switch p.Op {
	case OpShowFavorites:
		if len(prefs.Favorites) == 0 {
			r.Say("⭐ You have no favorite stations yet. Say 'add [station] to favorites' to save one.")
			return r
		}
		text := "⭐ Your favorite stations:"
		for _, f := range prefs.Favorites {
			text += "\n• " + f
		}
		r.Say(text)
		for _, f := range prefs.Favorites {
			r.Offer(qr(f, "tell me about "+f))
		}
	case OpAddFavorite:
		if prefs.AddFavorite(p.Station) {
			r.Sayf("⭐ Added %s to your favorites.", p.Station)
		} else {
			r.Sayf("%s is already in your favorites.", p.Station)
		}
	case OpRemoveFavorite:
		if stored, ok := prefs.RemoveFavorite(p.Station); ok {
			r.Sayf("🗑️ Removed %s from your favorites.", stored)
		} else {
			r.Sayf("%s is not in your favorites.", p.Station)
		}
	case OpSetVehicle:
		prefs.Vehicle = p.Vehicle
		r.Sayf("🚗 Got it! Your vehicle is set to %s.", p.Vehicle)
	}
	return r
}

// --- Smart intents ---

func (d *Dispatcher) smart(ctx context.Context, sess *Session, s SmartIntent) Reply {
	switch s.Action {
	case "cheap":
		return d.recommend(ctx, sess, RecommendCheapest, nil)
	case "best":
		return d.recommend(ctx, sess, RecommendBest, nil)
	case "fast":
		return d.filter(ctx, sess, station.Criteria{Speed: "Fast"})
	case "available":
		return d.filter(ctx, sess, station.Criteria{Status: models.StatusAvailable})
	case "compare":
		return d.synonym(ctx, sess, "compare")
	case "help":
		return d.greeting()
	}
	var r Reply
	r.Say(fallbackMessage)
	return r
}
