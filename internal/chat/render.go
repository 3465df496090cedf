package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

const noPricing = "Contact station for pricing details"

// renderField renders one field of a station answer.
func renderField(st models.Station, field string) string {
	switch field {
	case FieldHours:
		text := fmt.Sprintf("✅ %s\n📅 Hours: %s", st.Name, orDash(st.OpeningHours))
		if st.AverageWaitTime != "" {
			text += "\n⏱️ Average wait: " + st.AverageWaitTime
		}
		return text
	case FieldPrice:
		return fmt.Sprintf("💰 Pricing at %s:\n%s", st.Name, priceLines(st))
	case FieldSpeed:
		text := fmt.Sprintf("⚡ %s\nCharging speed: %s", st.Name, orDash(st.ChargingSpeed))
		if len(st.Connectors) > 0 {
			text += "\n" + connectorLines(st.Connectors)
		}
		return text
	case FieldAmenities:
		present := st.Amenities.Present()
		if len(present) == 0 {
			return fmt.Sprintf("🏪 No amenities listed for %s.", st.Name)
		}
		lines := make([]string, len(present))
		for i, k := range present {
			lines[i] = station.AmenityIcon(k) + " " + station.AmenityLabel(k)
		}
		return fmt.Sprintf("🏪 Amenities at %s:\n%s", st.Name, strings.Join(lines, "\n"))
	case FieldPayment:
		if len(st.PaymentMethods) == 0 {
			return fmt.Sprintf("💳 Payment information is not available for %s.", st.Name)
		}
		return fmt.Sprintf("💳 Payment methods at %s:\n• %s", st.Name, strings.Join(st.PaymentMethods, "\n• "))
	case FieldAccess:
		icon := "🔓"
		if st.AccessType == models.AccessPrivate {
			icon = "🔒"
		}
		return fmt.Sprintf("%s %s is a %s station.", icon, st.Name, orDash(st.AccessType))
	case FieldContact:
		var lines []string
		if st.Contact.Phone != "" {
			lines = append(lines, "Phone: "+st.Contact.Phone)
		}
		if st.Contact.Email != "" {
			lines = append(lines, "Email: "+st.Contact.Email)
		}
		if st.Contact.Operator != "" {
			lines = append(lines, "Operator: "+st.Contact.Operator)
		}
		if len(lines) == 0 {
			return fmt.Sprintf("📞 Contact details are not available for %s.", st.Name)
		}
		return fmt.Sprintf("📞 Contact for %s:\n%s", st.Name, strings.Join(lines, "\n"))
	}
	return renderDetails(st)
}

func renderDetails(st models.Station) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n", st.Name)
	fmt.Fprintf(&b, "📍 %s\n", address(st.Address))
	fmt.Fprintf(&b, "🚦 Status: %s (%d slots)\n", st.Status, st.Slots)
	fmt.Fprintf(&b, "📅 Hours: %s\n", orDash(st.OpeningHours))
	fmt.Fprintf(&b, "⚡ Speed: %s\n", orDash(st.ChargingSpeed))
	fmt.Fprintf(&b, "💰 Price: %s\n", priceSummary(st))
	fmt.Fprintf(&b, "🏪 Amenities: %s", amenityIcons(st.Amenities))
	if st.SpecialInstructions != "" {
		fmt.Fprintf(&b, "\nℹ️ %s", st.SpecialInstructions)
	}
	return b.String()
}

func renderComparison(a, b models.Station) string {
	rows := []struct {
		label string
		get   func(models.Station) string
	}{
		{"Status", func(s models.Station) string { return s.Status }},
		{"Price", priceSummary},
		{"Speed", func(s models.Station) string { return orDash(s.ChargingSpeed) }},
		{"Access", func(s models.Station) string { return orDash(s.AccessType) }},
		{"Hours", func(s models.Station) string { return orDash(s.OpeningHours) }},
		{"Slots", func(s models.Station) string { return strconv.Itoa(int(s.Slots)) }},
		{"Amenities", func(s models.Station) string { return strconv.Itoa(s.Amenities.Count()) }},
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s vs %s", a.Name, b.Name)
	for _, row := range rows {
		fmt.Fprintf(&sb, "\n%s: %s | %s", row.label, row.get(a), row.get(b))
	}
	return sb.String()
}

func priceLines(st models.Station) string {
	if !st.HasPricing() {
		return noPricing
	}
	p := st.Pricing
	lines := []string{"• Standard: " + money(p, p.PerUnit) + "/kWh"}
	if p.PeakRate > 0 {
		lines = append(lines, "• Peak: "+money(p, p.PeakRate)+"/kWh")
	}
	if p.OffPeakRate > 0 {
		lines = append(lines, "• Off-peak: "+money(p, p.OffPeakRate)+"/kWh")
	}
	if p.BookingFee > 0 {
		lines = append(lines, "• Booking fee: "+money(p, p.BookingFee))
	}
	if p.IdleFee > 0 {
		lines = append(lines, "• Idle fee: "+money(p, p.IdleFee)+"/min")
	}
	return strings.Join(lines, "\n")
}

func priceSummary(st models.Station) string {
	if !st.HasPricing() {
		return noPricing
	}
	return money(st.Pricing, st.Pricing.PerUnit) + "/kWh"
}

// money formats an amount in the pricing currency. Rupees are the default.
func money(p *models.Pricing, amount float64) string {
	n := strconv.FormatFloat(amount, 'f', -1, 64)
	if p == nil || p.Currency == "" || strings.EqualFold(p.Currency, "INR") {
		return "₹" + n
	}
	return p.Currency + " " + n
}

func connectorLines(cs []models.Connector) string {
	lines := make([]string, len(cs))
	for i, c := range cs {
		line := fmt.Sprintf("• %s ×%d", c.Type, c.Count)
		if c.PowerOutput != "" {
			line += " (" + c.PowerOutput + ")"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func amenityIcons(a models.Amenities) string {
	present := a.Present()
	if len(present) == 0 {
		return "none listed"
	}
	icons := make([]string, len(present))
	for i, k := range present {
		icons[i] = station.AmenityIcon(k)
	}
	return strings.Join(icons, " ")
}

// amenityPhrase is the lowercase amenity label used mid-sentence.
func amenityPhrase(key string) string {
	if key == models.AmenityWifi {
		return "WiFi"
	}
	return strings.ToLower(station.AmenityLabel(key))
}

func address(a models.Address) string {
	var parts []string
	for _, p := range []string{a.Street, a.Area, a.City, a.Pincode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Address not listed"
	}
	return strings.Join(parts, ", ")
}

// stationLines lists up to limit stations, one per line.
func stationLines(stations []models.Station, limit int) string {
	n := min(len(stations), limit)
	lines := make([]string, 0, n+1)
	for _, st := range stations[:n] {
		line := "• " + st.Name
		if st.Address.Area != "" {
			line += " - " + st.Address.Area
		}
		lines = append(lines, line+" ("+st.Status+")")
	}
	if extra := len(stations) - n; extra > 0 {
		lines = append(lines, fmt.Sprintf("...and %d more stations", extra))
	}
	return strings.Join(lines, "\n")
}

func listText(stations []models.Station, limit int) string {
	return fmt.Sprintf("✅ Found %d charging stations:\n%s", len(stations), stationLines(stations, limit))
}

func bookingSummary(p BookingPayload) string {
	var b strings.Builder
	b.WriteString("📋 Booking summary:")
	fmt.Fprintf(&b, "\n🏢 Station: %s", p.Station)
	if !p.Date.IsZero() {
		fmt.Fprintf(&b, "\n📅 Date: %s", p.Date.Format("Mon, 2 Jan 2006"))
	}
	if p.Time != "" {
		fmt.Fprintf(&b, "\n🕐 Time: %s", p.Time)
	}
	if p.DurationMinutes > 0 {
		fmt.Fprintf(&b, "\n⏱️ Duration: %s", durationLabel(p.DurationMinutes))
	}
	if p.Vehicle != "" {
		fmt.Fprintf(&b, "\n🚗 Vehicle: %s", p.Vehicle)
	}
	return b.String()
}

func stationQuickReplies(name string) []QuickReply {
	return []QuickReply{
		qr("💰 Price", "price at "+name),
		qr("🕐 Hours", "hours for "+name),
		qr("🏪 Amenities", "amenities at "+name),
		qr("📅 Book", "book "+name),
	}
}

// offerStations offers details for the first few stations of a result.
func offerStations(r *Reply, stations []models.Station) {
	for i := 0; i < len(stations) && i < maxAlternatives; i++ {
		r.Offer(qr(stations[i].Name, "tell me about "+stations[i].Name))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
