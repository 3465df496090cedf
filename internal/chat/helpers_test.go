package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStations() []models.Station {
	return []models.Station{
		{
			ID: 1, Name: "Jaipur Charging Hub", Status: models.StatusAvailable, AccessType: models.AccessPublic, Slots: 4,
			Address:        models.Address{Area: "C-Scheme", City: "Jaipur"},
			Latitude:       26.9260,
			Longitude:      75.7850,
			ChargingSpeed:  "Fast",
			Pricing:        &models.Pricing{PerUnit: 15, PeakRate: 18},
			Amenities:      models.Amenities{Parking: true, Wifi: true, Cafe: true, Restroom: true},
			Connectors:     []models.Connector{{Type: "CCS", Count: 2, PowerOutput: "60kW"}, {Type: "Type 2", Count: 3}},
			PaymentMethods: []string{"UPI", "Card"},
			OpeningHours:   "24/7",
			Contact:        models.Contact{Phone: "+91 141 555 0101", Operator: "Tata Power"},
		},
		{
			ID: 2, Name: "World Trade Park EV Hub", Status: models.StatusAvailable, AccessType: models.AccessPublic, Slots: 2,
			Address:       models.Address{Area: "Malviya Nagar", City: "Jaipur"},
			Latitude:      26.8518,
			Longitude:     75.8029,
			ChargingSpeed: "Fast",
			Pricing:       &models.Pricing{PerUnit: 12},
			Amenities:     models.Amenities{Parking: true, Wifi: true},
			OpeningHours:  "10 AM - 10 PM",
		},
		{
			ID: 3, Name: "Udaipur EV Point", Status: models.StatusBusy, AccessType: models.AccessPublic, Slots: 2,
			Address:       models.Address{Area: "Old City", City: "Udaipur"},
			Latitude:      24.5854,
			Longitude:     73.7125,
			ChargingSpeed: "Ultra Fast",
			Pricing:       &models.Pricing{PerUnit: 20},
			Amenities:     models.Amenities{Parking: true},
		},
		{
			ID: 4, Name: "Ajmer Fast Charge", Status: models.StatusBusy, AccessType: models.AccessPrivate, Slots: 1,
			Address:       models.Address{Area: "Vaishali Nagar", City: "Ajmer"},
			Latitude:      26.4499,
			Longitude:     74.6399,
			ChargingSpeed: "Fast",
			Amenities:     models.Amenities{Parking: true},
			Connectors:    []models.Connector{{Type: "Type 1", Count: 1}},
		},
		{
			ID: 5, Name: "Manipal University Charging Hub", Status: models.StatusAvailable, AccessType: models.AccessSemiPublic, Slots: 2,
			Address:       models.Address{Area: "VPO Bhankrota", City: "Jaipur"},
			ChargingSpeed: "Normal",
			Pricing:       &models.Pricing{PerUnit: 12},
			Amenities:     models.Amenities{Wifi: true},
		},
	}
}

// withoutStation drops the named station from a fixture list.
func withoutStation(stations []models.Station, name string) []models.Station {
	var out []models.Station
	for _, s := range stations {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return out
}

// --- Fakes ---

type fakeDirectory struct {
	mu        sync.Mutex
	stations  []models.Station
	err       error
	listCalls int
}

func (f *fakeDirectory) List(ctx context.Context) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.stations, nil
}

func (f *fakeDirectory) Search(ctx context.Context, query string) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return station.Rank(f.stations, query), nil
}

func (f *fakeDirectory) Get(ctx context.Context, id uint) (*models.Station, error) {
	for _, s := range f.stations {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, station.ErrNotFound
}

func (f *fakeDirectory) SubmitReview(ctx context.Context, id uint, in station.ReviewInput) (*models.Review, error) {
	return nil, errors.New("not supported")
}

type fakeAvailability struct {
	slots []station.Slot
	err   error
	calls []string
}

func (f *fakeAvailability) Slots(ctx context.Context, name string, day time.Time) ([]station.Slot, error) {
	f.calls = append(f.calls, name+"@"+day.Format("2006-01-02"))
	if f.err != nil {
		return nil, f.err
	}
	return f.slots, nil
}

type fakeForm struct {
	station  string
	day      time.Time
	duration int
	vehicle  string
	slot     string

	slots     []station.Slot
	ready     chan struct{}
	submitRef string

	stationErr  error
	slotErr     error
	submitErr   error
	stationSets int
}

func newFakeForm(slots []station.Slot) *fakeForm {
	ready := make(chan struct{})
	close(ready)
	return &fakeForm{slots: slots, ready: ready, submitRef: "EV123456"}
}

func (f *fakeForm) SelectStation(ctx context.Context, name string) (string, error) {
	f.stationSets++
	if f.stationErr != nil {
		return "", f.stationErr
	}
	f.station = name
	return name, nil
}

func (f *fakeForm) SetDate(ctx context.Context, day time.Time) error {
	f.day = day
	return nil
}

func (f *fakeForm) SetDuration(ctx context.Context, minutes int) (string, error) {
	f.duration = minutes
	return fmt.Sprintf("%d minutes", minutes), nil
}

func (f *fakeForm) SetVehicle(ctx context.Context, v string) error {
	f.vehicle = v
	return nil
}

func (f *fakeForm) SlotsReady() <-chan struct{} { return f.ready }

func (f *fakeForm) ListAvailableSlots(ctx context.Context) ([]station.Slot, error) {
	return f.slots, nil
}

func (f *fakeForm) SelectSlot(ctx context.Context, hhmm string) error {
	if f.slotErr != nil {
		return f.slotErr
	}
	f.slot = hhmm
	return nil
}

func (f *fakeForm) Submit(ctx context.Context) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitRef, nil
}

type fakeLocator struct {
	forms map[string]*fakeForm
}

func (l *fakeLocator) Locate(key string) (BookingFormAdapter, bool) {
	f, ok := l.forms[key]
	if !ok {
		return nil, false
	}
	return f, true
}

type memPending struct {
	m    map[string]BookingPayload
	puts int
}

func newMemPending() *memPending {
	return &memPending{m: map[string]BookingPayload{}}
}

func (p *memPending) Put(ctx context.Context, key string, payload BookingPayload) error {
	p.puts++
	p.m[key] = payload
	return nil
}

func (p *memPending) Take(ctx context.Context, key string) (BookingPayload, bool, error) {
	payload, ok := p.m[key]
	delete(p.m, key)
	return payload, ok, nil
}

// --- Environment ---

type testEnv struct {
	dir        *fakeDirectory
	avail      *fakeAvailability
	forms      *fakeLocator
	pending    *memPending
	bridge     *Bridge
	dispatcher *Dispatcher
	sessions   *Sessions
	bot        *Bot
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		dir: &fakeDirectory{stations: testStations()},
		avail: &fakeAvailability{slots: []station.Slot{
			{Time: "14:00"}, {Time: "14:30"}, {Time: "15:00", Booked: true},
		}},
		forms:   &fakeLocator{forms: map[string]*fakeForm{}},
		pending: newMemPending(),
		now:     time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
	var err error
	env.bridge, err = NewBridge(BridgeOpts{
		Locator:           env.forms,
		Pending:           env.pending,
		SlotsReadyTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	env.dispatcher, err = NewDispatcher(DispatcherOpts{
		Directory:    env.dir,
		Bridge:       env.bridge,
		Availability: env.avail,
		City:         "Jaipur",
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	env.sessions = NewSessions(SessionsOpts{Now: func() time.Time { return env.now }})
	env.bot, err = NewBot(BotOpts{Dispatcher: env.dispatcher, Sessions: env.sessions})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return env
}

// session returns a fresh session using the environment clock.
func (env *testEnv) session() *Session {
	s := NewSession("test", nil)
	s.Now = func() time.Time { return env.now }
	return s
}

func (env *testEnv) handle(t *testing.T, key, text string) Reply {
	t.Helper()
	r, err := env.bot.Handle(context.Background(), Turn{SessionKey: key, Text: text})
	if err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
	return r
}

func openChatDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ChatTurn{}, &models.UserProfile{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply = %q, want it to contain %q", got, want)
	}
}

func quickReplyValues(r Reply) []string {
	var out []string
	for _, q := range r.QuickReplies() {
		out = append(out, q.Value)
	}
	return out
}
