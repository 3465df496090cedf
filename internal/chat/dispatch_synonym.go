package chat

import (
	"context"
	"strings"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

// synonym answers a generic intent. Questions that need a station use the
// last station discussed when there is one.
func (d *Dispatcher) synonym(ctx context.Context, sess *Session, name string) Reply {
	last := sess.LastStation
	switch name {
	case "greeting":
		return d.greeting()
	case "duration":
		var r Reply
		r.Say("⏱️ Charging sessions can be booked from 30 minutes up to 3 hours. You choose the duration while booking.")
		r.Offer(qr("📅 Book a slot", "book"))
		return r
	case "vehicle_type":
		var r Reply
		r.Say("🚗 Stations support cars, bikes and scooters. Which vehicle do you have?")
		r.Offer(qr("🚗 Car", "car connectors"), qr("🏍️ Bike", "bike connectors"), qr("🛵 Scooter", "scooter connectors"))
		return r
	case "book":
		return d.startFlow(ctx, sess, "", "")
	case "cheap":
		return d.recommend(ctx, sess, RecommendCheapest, nil)
	case "nearby":
		return d.nearby(ctx, sess)
	case "stations":
		return d.listStations(ctx, sess)
	case "available":
		return d.filter(ctx, sess, station.Criteria{Status: models.StatusAvailable})
	case "fast":
		return d.filter(ctx, sess, station.Criteria{Speed: "Fast"})
	case models.AmenityParking, models.AmenityWifi, models.AmenityCafe, models.AmenityRestroom:
		if last != "" {
			return d.checkAmenity(ctx, sess, CheckAmenity{Station: last, Amenity: name})
		}
		return d.filter(ctx, sess, station.Criteria{Amenity: name})
	case "hours", "price", "amenities", "payment", "contact":
		if last != "" {
			return d.stationQuery(ctx, sess, StationQuery{Name: last, Field: name})
		}
		return d.overview(ctx, name)
	case "access":
		var r Reply
		r.Say("🔓 Stations are Public, Private or Semi-Public. Which would you like to see?")
		r.Offer(qr("Public stations", "show public stations"), qr("Private stations", "show private stations"))
		return r
	case "compare":
		var r Reply
		r.Say("⚖️ Which stations would you like to compare? Try 'compare [station1] and [station2]'.")
		if len(sess.LastStations) >= 2 {
			a, b := sess.LastStations[0], sess.LastStations[1]
			r.Offer(qr(a+" vs "+b, "compare "+a+" and "+b))
		}
		return r
	case "support":
		var r Reply
		r.Say("🛠️ Having trouble? Ask 'contact for [station]' to reach the station operator, or type 'help' to see what I can do.")
		return r
	}
	var r Reply
	r.Say(fallbackMessage)
	return r
}

func (d *Dispatcher) greeting() Reply {
	var r Reply
	where := "your city"
	if d.city != "" {
		where = d.city
	}
	r.Sayf("👋 Hello! I'm your EV charging assistant for %s. I can find stations, compare prices and amenities, and book charging slots.", where)
	r.Offer(greetingQuickReplies()...)
	return r
}

// overview answers a station question across the whole directory.
func (d *Dispatcher) overview(ctx context.Context, field string) Reply {
	all, fail := d.stations(ctx)
	if fail != nil {
		return *fail
	}
	var r Reply
	if len(all) == 0 {
		r.Say(emptyDirectory)
		return r
	}
	shown := all[:min(len(all), d.maxList)]
	var b strings.Builder
	switch field {
	case FieldHours:
		b.WriteString("🕐 Opening hours:")
		for _, st := range shown {
			b.WriteString("\n• " + st.Name + ": " + orDash(st.OpeningHours))
		}
	case FieldPrice:
		b.WriteString("💰 Pricing:")
		for _, st := range shown {
			b.WriteString("\n• " + st.Name + ": " + priceSummary(st))
		}
	case FieldAmenities:
		b.WriteString("🏪 Amenities by station:")
		for _, st := range shown {
			b.WriteString("\n• " + st.Name + ": " + amenityIcons(st.Amenities))
		}
	case FieldPayment:
		b.WriteString("💳 Accepted payment methods: " + strings.Join(paymentUnion(all), ", "))
	case FieldContact:
		b.WriteString("📞 Which station's contact details do you need? Try 'contact for [station]'.")
	}
	r.Say(b.String())
	offerStations(&r, shown)
	return r
}

func paymentUnion(stations []models.Station) []string {
	seen := map[string]bool{}
	var out []string
	for _, st := range stations {
		for _, m := range st.PaymentMethods {
			k := strings.ToLower(m)
			if !seen[k] {
				seen[k] = true
				out = append(out, m)
			}
		}
	}
	if len(out) == 0 {
		return []string{"not listed"}
	}
	return out
}

func greetingQuickReplies() []QuickReply {
	return []QuickReply{
		qr("📍 Nearby", "nearby"),
		qr("📋 All stations", "list stations"),
		qr("💰 Cheapest", "cheapest station"),
		qr("⭐ Best", "best station"),
	}
}

func defaultQuickReplies() []QuickReply {
	return []QuickReply{
		qr("📋 List stations", "list stations"),
		qr("📍 Nearby", "nearby"),
		qr("📅 Book a slot", "book"),
	}
}
