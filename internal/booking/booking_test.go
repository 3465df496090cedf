package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/config"
	"github.com/zulandar/evbot/internal/db"
	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	stations := []models.Station{
		{Name: "Jaipur Charging Hub", Status: models.StatusAvailable, Slots: 2, OpeningHours: "24/7"},
		{Name: "World Trade Park EV Hub", Status: models.StatusAvailable, Slots: 1, OpeningHours: "10 AM - 10 PM"},
		{Name: "Udaipur EV Point", Status: models.StatusRepair, Slots: 2, OpeningHours: "24/7"},
		{Name: "Ajmer Fast Charge", Status: models.StatusBusy, Slots: 0, OpeningHours: "6 AM - 11 PM"},
	}
	if _, err := db.SeedStations(gdb, stations); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return gdb
}

func loadStation(t *testing.T, gdb *gorm.DB, name string) models.Station {
	t.Helper()
	var st models.Station
	if err := gdb.Where("name = ?", name).First(&st).Error; err != nil {
		t.Fatalf("load station %q: %v", name, err)
	}
	return st
}

func addBooking(t *testing.T, gdb *gorm.DB, stationID uint, day, start string, minutes int, ref string) {
	t.Helper()
	b := models.Booking{Reference: ref, StationID: stationID, Day: day, StartTime: start, DurationMinutes: minutes, Vehicle: "car"}
	if err := gdb.Create(&b).Error; err != nil {
		t.Fatalf("create booking: %v", err)
	}
}

func slotMap(slots []station.Slot) map[string]bool {
	m := make(map[string]bool, len(slots))
	for _, s := range slots {
		m[s.Time] = s.Booked
	}
	return m
}

// --- Availability tests ---

func TestNewAvailability_NilDB(t *testing.T) {
	if _, err := NewAvailability(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestAvailability_Grid(t *testing.T) {
	gdb := openTestDB(t)
	a, err := NewAvailability(gdb)
	if err != nil {
		t.Fatalf("new availability: %v", err)
	}
	ctx := context.Background()
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	slots, err := a.Slots(ctx, "Jaipur Charging Hub", day)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 48 || slots[0].Time != "00:00" || slots[47].Time != "23:30" {
		t.Errorf("24/7 grid = %d slots from %s to %s", len(slots), slots[0].Time, slots[len(slots)-1].Time)
	}

	slots, err = a.Slots(ctx, "Ajmer Fast Charge", day)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 35 || slots[0].Time != "06:00" || slots[34].Time != "23:00" {
		t.Errorf("6 AM - 11 PM grid = %d slots", len(slots))
	}
	for _, s := range slots {
		if !s.Booked {
			t.Errorf("slot %s free at a zero-capacity station", s.Time)
			break
		}
	}
}

func TestAvailability_RepairHasNoSlots(t *testing.T) {
	a, _ := NewAvailability(openTestDB(t))
	slots, err := a.Slots(context.Background(), "Udaipur EV Point", testNow)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("repair station has %d slots", len(slots))
	}
}

func TestAvailability_UnknownStation(t *testing.T) {
	a, _ := NewAvailability(openTestDB(t))
	_, err := a.Slots(context.Background(), "Kota Plaza", testNow)
	if !errors.Is(err, station.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAvailability_CapacityAndOverlap(t *testing.T) {
	gdb := openTestDB(t)
	a, _ := NewAvailability(gdb)
	st := loadStation(t, gdb, "Jaipur Charging Hub")
	addBooking(t, gdb, st.ID, "2026-10-20", "10:00", 60, "EV000001")
	addBooking(t, gdb, st.ID, "2026-10-20", "10:30", 30, "EV000002")
	addBooking(t, gdb, st.ID, "2026-10-21", "10:00", 60, "EV000003")

	slots, err := a.ForStation(context.Background(), st, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("for station: %v", err)
	}
	booked := slotMap(slots)
	tests := map[string]bool{
		"09:30": false,
		"10:00": false, // one of two bays
		"10:30": true,  // both bays
		"11:00": false,
	}
	for tm, want := range tests {
		if booked[tm] != want {
			t.Errorf("slot %s booked = %v, want %v", tm, booked[tm], want)
		}
	}
}

// --- Form tests ---

func newTestForm(t *testing.T, gdb *gorm.DB, key string) *Form {
	t.Helper()
	a, err := NewAvailability(gdb)
	if err != nil {
		t.Fatalf("new availability: %v", err)
	}
	dir, err := station.NewStore(gdb)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	stations, err := dir.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	refs := 0
	f, err := NewForm(FormOpts{
		SessionKey:   key,
		Stations:     stations,
		Availability: a,
		Now:          func() time.Time { return testNow },
		Reference: func() string {
			refs++
			return key + "-" + string(rune('0'+refs))
		},
	})
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	return f
}

func waitReady(t *testing.T, f *Form) {
	t.Helper()
	select {
	case <-f.SlotsReady():
	case <-time.After(2 * time.Second):
		t.Fatal("slots never became ready")
	}
}

func fillForm(t *testing.T, f *Form, stationName string, day time.Time, slot string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.SelectStation(ctx, stationName); err != nil {
		t.Fatalf("select station: %v", err)
	}
	if err := f.SetDate(ctx, day); err != nil {
		t.Fatalf("set date: %v", err)
	}
	waitReady(t, f)
	if err := f.SelectSlot(ctx, slot); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if _, err := f.SetDuration(ctx, 60); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if err := f.SetVehicle(ctx, "car"); err != nil {
		t.Fatalf("set vehicle: %v", err)
	}
}

func TestNewForm_RequiredOpts(t *testing.T) {
	a, _ := NewAvailability(openTestDB(t))
	if _, err := NewForm(FormOpts{Availability: a}); err == nil {
		t.Error("expected error for empty session key")
	}
	if _, err := NewForm(FormOpts{SessionKey: "s"}); err == nil {
		t.Error("expected error for nil availability")
	}
}

func TestForm_SelectStation(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	ctx := context.Background()

	name, err := f.SelectStation(ctx, "world trade park")
	if err != nil {
		t.Fatalf("select station: %v", err)
	}
	if name != "World Trade Park EV Hub" {
		t.Errorf("selected %q", name)
	}
	if _, err := f.SelectStation(ctx, "Kota Plaza"); err == nil {
		t.Error("expected error for unknown station")
	}
	if got := f.State().Station; got != "World Trade Park EV Hub" {
		t.Errorf("failed selection changed station to %q", got)
	}
}

func TestForm_SlotsNeedStationAndDate(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	ctx := context.Background()
	f.SelectStation(ctx, "Jaipur Charging Hub")
	if _, err := f.ListAvailableSlots(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
	select {
	case <-f.SlotsReady():
		t.Error("slots ready without a date")
	default:
	}
}

func TestForm_TodayHidesPastTimes(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	ctx := context.Background()
	f.SelectStation(ctx, "Jaipur Charging Hub")
	if err := f.SetDate(ctx, testNow); err != nil {
		t.Fatalf("set date: %v", err)
	}
	slots, err := f.ListAvailableSlots(ctx)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	booked := slotMap(slots)
	if !booked["09:00"] || booked["09:30"] {
		t.Errorf("09:00 booked = %v, 09:30 booked = %v", booked["09:00"], booked["09:30"])
	}
	if err := f.SelectSlot(ctx, "8:30"); err == nil {
		t.Error("selected a past slot")
	}
	if err := f.SelectSlot(ctx, "9:30"); err != nil {
		t.Errorf("select 9:30: %v", err)
	}
	if got := f.State().Slot; got != "09:30" {
		t.Errorf("slot = %q, want 09:30", got)
	}
}

func TestForm_RejectsPastDate(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	if err := f.SetDate(context.Background(), testNow.AddDate(0, 0, -1)); err == nil {
		t.Fatal("expected error for past date")
	}
}

func TestForm_ChangingDateRegenerates(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	ctx := context.Background()
	f.SelectStation(ctx, "World Trade Park EV Hub")
	f.SetDate(ctx, testNow.AddDate(0, 0, 1))
	first := f.SlotsReady()
	waitReady(t, f)
	f.SelectSlot(ctx, "10:00")

	f.SetDate(ctx, testNow.AddDate(0, 0, 2))
	if f.SlotsReady() == first {
		t.Error("date change kept the old ready channel")
	}
	if f.State().Slot != "" {
		t.Error("date change kept the selected slot")
	}
	slots, err := f.ListAvailableSlots(ctx)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if len(slots) != 25 || slots[0].Time != "10:00" || slots[24].Time != "22:00" {
		t.Errorf("grid = %d slots", len(slots))
	}
}

func TestForm_SetDurationPicksClosestOption(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	tests := map[int]string{30: "30 minutes", 60: "1 hour", 75: "1 hour", 100: "1.5 hours", 120: "2 hours", 600: "3 hours"}
	for minutes, want := range tests {
		got, err := f.SetDuration(context.Background(), minutes)
		if err != nil || got != want {
			t.Errorf("SetDuration(%d) = %q, %v; want %q", minutes, got, err, want)
		}
	}
	if _, err := f.SetDuration(context.Background(), 0); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestForm_SetVehicle(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	if err := f.SetVehicle(context.Background(), "Scooter"); err != nil {
		t.Errorf("set vehicle: %v", err)
	}
	if got := f.State().Vehicle; got != "scooter" {
		t.Errorf("vehicle = %q, want scooter", got)
	}
	if err := f.SetVehicle(context.Background(), "truck"); err == nil {
		t.Error("expected error for unsupported vehicle")
	}
}

func TestForm_SubmitIncomplete(t *testing.T) {
	f := newTestForm(t, openTestDB(t), "s")
	f.SelectStation(context.Background(), "Jaipur Charging Hub")
	_, err := f.Submit(context.Background())
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	for _, want := range []string{"date is required", "time slot is required", "vehicle is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err = %q, want it to mention %q", err, want)
		}
	}
	if strings.Contains(err.Error(), "station is required") {
		t.Errorf("err = %q blames the station", err)
	}
}

func TestForm_Submit(t *testing.T) {
	gdb := openTestDB(t)
	f := newTestForm(t, gdb, "web:1")
	day := testNow.AddDate(0, 0, 1)
	fillForm(t, f, "World Trade Park EV Hub", day, "10:00")

	ref, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ref != "web:1-1" {
		t.Errorf("reference = %q", ref)
	}

	var b models.Booking
	if err := gdb.Where("reference = ?", ref).First(&b).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if b.Day != "2026-10-20" || b.StartTime != "10:00" || b.DurationMinutes != 60 || b.Vehicle != "car" || b.SessionKey != "web:1" {
		t.Errorf("booking = %+v", b)
	}

	state := f.State()
	if state.LastReference != ref || state.Slot != "" {
		t.Errorf("state after submit = %+v", state)
	}
	slots, err := f.ListAvailableSlots(context.Background())
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	booked := slotMap(slots)
	if !booked["10:00"] || !booked["10:30"] || booked["11:00"] {
		t.Errorf("grid after submit: 10:00=%v 10:30=%v 11:00=%v", booked["10:00"], booked["10:30"], booked["11:00"])
	}
}

func TestForm_SubmitRechecksCapacity(t *testing.T) {
	gdb := openTestDB(t)
	day := testNow.AddDate(0, 0, 1)
	first := newTestForm(t, gdb, "a")
	second := newTestForm(t, gdb, "b")
	fillForm(t, first, "World Trade Park EV Hub", day, "10:00")
	fillForm(t, second, "World Trade Park EV Hub", day, "10:30")

	if _, err := first.Submit(context.Background()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := second.Submit(context.Background())
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("second submit err = %v, want ErrSlotTaken", err)
	}
	var count int64
	gdb.Model(&models.Booking{}).Count(&count)
	if count != 1 {
		t.Errorf("bookings = %d, want 1", count)
	}
}

// --- Registry tests ---

func newTestRegistry(t *testing.T, gdb *gorm.DB) *Registry {
	t.Helper()
	a, _ := NewAvailability(gdb)
	dir, _ := station.NewStore(gdb)
	r, err := NewRegistry(RegistryOpts{Directory: dir, Availability: a, Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestNewRegistry_RequiredOpts(t *testing.T) {
	gdb := openTestDB(t)
	a, _ := NewAvailability(gdb)
	dir, _ := station.NewStore(gdb)
	if _, err := NewRegistry(RegistryOpts{Availability: a}); err == nil {
		t.Error("expected error for nil directory")
	}
	if _, err := NewRegistry(RegistryOpts{Directory: dir}); err == nil {
		t.Error("expected error for nil availability")
	}
}

func TestRegistry_OpenLocateClose(t *testing.T) {
	r := newTestRegistry(t, openTestDB(t))
	ctx := context.Background()

	if _, ok := r.Locate("web:1"); ok {
		t.Fatal("located a form that was never opened")
	}
	f, created, err := r.Open(ctx, "web:1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !created {
		t.Error("first open reported an existing form")
	}
	if got := len(f.State().Stations); got != 4 {
		t.Errorf("station options = %d, want 4", got)
	}

	again, created, err := r.Open(ctx, "web:1")
	if err != nil || created || again != f {
		t.Errorf("second open = %p, %v, %v; want the same form", again, created, err)
	}

	located, ok := r.Locate("web:1")
	if !ok || located != chat.BookingFormAdapter(f) {
		t.Error("Locate did not return the open form")
	}
	if !r.Close("web:1") {
		t.Error("Close reported no form")
	}
	if _, ok := r.Locate("web:1"); ok {
		t.Error("located a closed form")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_EvictIdleForms(t *testing.T) {
	gdb := openTestDB(t)
	a, _ := NewAvailability(gdb)
	dir, _ := station.NewStore(gdb)
	now := testNow
	r, err := NewRegistry(RegistryOpts{Directory: dir, Availability: a, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ctx := context.Background()

	if _, _, err := r.Open(ctx, "web:old"); err != nil {
		t.Fatalf("open old: %v", err)
	}
	if _, _, err := r.Open(ctx, "web:busy"); err != nil {
		t.Fatalf("open busy: %v", err)
	}
	now = now.Add(90 * time.Minute)
	// Locating a form counts as use.
	if _, ok := r.Locate("web:busy"); !ok {
		t.Fatal("busy form not found")
	}

	if n := r.Evict(time.Hour); n != 1 {
		t.Errorf("Evict = %d, want 1", n)
	}
	if _, ok := r.Get("web:old"); ok {
		t.Error("idle form survived eviction")
	}
	if _, ok := r.Get("web:busy"); !ok {
		t.Error("recently used form was evicted")
	}
}

func TestRegistry_BridgeFillsOpenForm(t *testing.T) {
	gdb := openTestDB(t)
	r := newTestRegistry(t, gdb)
	ctx := context.Background()
	if _, _, err := r.Open(ctx, "web:1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	bridge, err := chat.NewBridge(chat.BridgeOpts{Locator: r, SlotsReadyTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	reply := bridge.Fill(ctx, "web:1", chat.BookingPayload{
		Station:         "Jaipur Charging Hub",
		Date:            testNow.AddDate(0, 0, 1),
		Time:            "14:00",
		DurationMinutes: 45,
		Vehicle:         "bike",
	})
	text := reply.Text()
	for _, want := range []string{"✅ Station selected: Jaipur Charging Hub", "✅ Duration set: 30 minutes", "✅ Time slot selected: 14:00", "✅ Form filled!"} {
		if !strings.Contains(text, want) {
			t.Errorf("reply = %q, want it to contain %q", text, want)
		}
	}

	f, _ := r.Get("web:1")
	ref, err := f.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(ref, "EV") || len(ref) != 8 {
		t.Errorf("reference = %q, want EV + 6 digits", ref)
	}
}

// --- PendingStore tests ---

func TestPendingStore_TakeOnce(t *testing.T) {
	now := testNow
	s, err := NewPendingStore(PendingStoreOpts{DB: openTestDB(t), TTL: 10 * time.Minute, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new pending store: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := s.Take(ctx, "web:1"); ok || err != nil {
		t.Fatalf("Take on empty store = %v, %v", ok, err)
	}

	p := chat.BookingPayload{Station: "Jaipur Charging Hub", Date: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), Time: "14:00", DurationMinutes: 60, Vehicle: "car"}
	if err := s.Put(ctx, "web:1", chat.BookingPayload{Station: "Old"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "web:1", p); err != nil {
		t.Fatalf("put again: %v", err)
	}

	got, ok, err := s.Take(ctx, "web:1")
	if err != nil || !ok {
		t.Fatalf("Take = %v, %v", ok, err)
	}
	if got.Station != p.Station || got.Time != p.Time || !got.Date.Equal(p.Date) || got.Vehicle != "car" {
		t.Errorf("payload = %+v, want %+v", got, p)
	}
	if _, ok, _ := s.Take(ctx, "web:1"); ok {
		t.Error("payload taken twice")
	}
}

func TestPendingStore_Expiry(t *testing.T) {
	now := testNow
	s, _ := NewPendingStore(PendingStoreOpts{DB: openTestDB(t), TTL: 10 * time.Minute, Now: func() time.Time { return now }})
	ctx := context.Background()

	s.Put(ctx, "a", chat.BookingPayload{Station: "A"})
	s.Put(ctx, "b", chat.BookingPayload{Station: "B"})
	now = now.Add(11 * time.Minute)
	s.Put(ctx, "c", chat.BookingPayload{Station: "C"})

	if _, ok, _ := s.Take(ctx, "a"); ok {
		t.Error("expired payload was returned")
	}
	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if got, ok, _ := s.Take(ctx, "c"); !ok || got.Station != "C" {
		t.Errorf("live payload = %+v, %v", got, ok)
	}
}

func TestNewPendingStore_NilDB(t *testing.T) {
	if _, err := NewPendingStore(PendingStoreOpts{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}
