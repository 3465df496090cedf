package telegraph

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/evbot/internal/booking"
	"github.com/zulandar/evbot/internal/chat"
	"github.com/zulandar/evbot/internal/config"
	"github.com/zulandar/evbot/internal/db"
	"github.com/zulandar/evbot/internal/models"
	"github.com/zulandar/evbot/internal/station"
)

func testStations() []models.Station {
	return []models.Station{
		{
			Name: "Jaipur Charging Hub", Status: models.StatusAvailable, AccessType: models.AccessPublic, Slots: 4,
			Address:      models.Address{Area: "C-Scheme", City: "Jaipur"},
			Pricing:      &models.Pricing{PerUnit: 15},
			Amenities:    models.Amenities{Parking: true, Wifi: true},
			OpeningHours: "24/7",
		},
		{
			Name: "World Trade Park EV Hub", Status: models.StatusAvailable, AccessType: models.AccessPublic, Slots: 2,
			Address:      models.Address{Area: "Malviya Nagar", City: "Jaipur"},
			Pricing:      &models.Pricing{PerUnit: 12},
			OpeningHours: "10 AM - 10 PM",
		},
	}
}

// newTestBot wires the assistant over an in-memory database.
func newTestBot(t *testing.T) *chat.Bot {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.SeedStations(gdb, testStations()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dir, err := station.NewStore(gdb)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	avail, _ := booking.NewAvailability(gdb)
	forms, _ := booking.NewRegistry(booking.RegistryOpts{Directory: dir, Availability: avail})
	pending, _ := booking.NewPendingStore(booking.PendingStoreOpts{DB: gdb})
	bridge, err := chat.NewBridge(chat.BridgeOpts{Locator: forms, Pending: pending})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	disp, err := chat.NewDispatcher(chat.DispatcherOpts{
		Directory:    dir,
		Bridge:       bridge,
		Availability: avail,
		City:         "Jaipur",
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	profiles, _ := chat.NewProfileStore(gdb)
	transcripts, _ := chat.NewTranscriptStore(chat.TranscriptStoreOpts{DB: gdb})
	bot, err := chat.NewBot(chat.BotOpts{
		Dispatcher:  disp,
		Sessions:    chat.NewSessions(chat.SessionsOpts{Prefs: profiles}),
		Transcripts: transcripts,
	})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return bot
}

// lockedBuffer is a bytes.Buffer safe for the daemon goroutine and the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls fn until it returns true or the timeout expires.
func waitFor(t *testing.T, fn func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("waitFor timed out after %v", timeout)
}
