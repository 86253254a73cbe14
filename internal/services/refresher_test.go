package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vrijeme-widget/internal/feed"
	"vrijeme-widget/internal/selection"

	"go.uber.org/zap"
)

// stubFetcher serves canned payloads or failures per URL.
type stubFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	err      error
	calls    int
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.payloads[url], nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const goodPayload = `<Hrvatska>
  <DatumTermin><Datum>01.02.2026</Datum><Termin>14</Termin></DatumTermin>
  <Grad><GradIme>Zagreb-Grič</GradIme><Lat>45.81</Lat><Lon>15.97</Lon>
    <Podatci><Temp>4.2</Temp><Vlaga>70</Vlaga><Tlak>1020</Tlak><TlakTend>0.1</TlakTend>
    <VjetarSmjer>N</VjetarSmjer><VjetarBrzina>1.0</VjetarBrzina><Vrijeme>vedro</Vrijeme></Podatci>
  </Grad>
</Hrvatska>`

const emptyPayload = `<Hrvatska>
  <DatumTermin><Datum>01.02.2026</Datum><Termin>14</Termin></DatumTermin>
</Hrvatska>`

func newTestRefresher(t *testing.T, fetcher *stubFetcher) (*Refresher, func(d time.Duration)) {
	t.Helper()
	sources := []Source{
		{ID: "dhmz", URL: "http://dhmz.test/feed", Parser: feed.NewDHMZParser(nil), NameSeparator: "-", DisplayLabel: "DHMZ"},
		{ID: "pljusak", URL: "http://pljusak.test/feed", Parser: feed.NewPljusakParser(nil), NameSeparator: ",", DisplayLabel: "Pljusak"},
	}
	r, err := NewRefresher(fetcher, sources, "dhmz", selection.NewMemoryStore(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewRefresher() err = %v", err)
	}

	// Controllable clock so the throttle can be stepped over.
	current := time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	r.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}
	return r, advance
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte(goodPayload)}}
	r, _ := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "test"); err != nil {
		t.Fatalf("Refresh() err = %v", err)
	}

	st := r.State()
	if st.Health != HealthOK {
		t.Errorf("health = %v; want ok", st.Health)
	}
	if st.Snapshot.Empty() {
		t.Fatal("snapshot should hold the parsed station")
	}
	if _, ok := st.Snapshot.Get("Zagreb-Grič"); !ok {
		t.Error("Zagreb-Grič missing from snapshot")
	}
	if r.Index().Len() != 1 {
		t.Errorf("index size = %d; want 1", r.Index().Len())
	}
}

func TestRefreshThrottleDropsRapidTriggers(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte(goodPayload)}}
	r, advance := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "timer"); err != nil {
		t.Fatalf("Refresh() err = %v", err)
	}

	// Simultaneous triggers within the gap collapse into the first fetch.
	for _, reason := range []string{"visibility", "focus", "tap"} {
		if err := r.Refresh(context.Background(), reason); !errors.Is(err, ErrRefreshSkipped) {
			t.Errorf("Refresh(%s) err = %v; want ErrRefreshSkipped", reason, err)
		}
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d; want 1", fetcher.callCount())
	}

	// Past the gap, refreshes flow again.
	advance(6 * time.Second)
	if err := r.Refresh(context.Background(), "timer"); err != nil {
		t.Errorf("Refresh() after gap err = %v", err)
	}
	if fetcher.callCount() != 2 {
		t.Errorf("fetch calls = %d; want 2", fetcher.callCount())
	}
}

func TestTransportFailureKeepsStaleSnapshot(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte(goodPayload)}}
	r, advance := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "initial"); err != nil {
		t.Fatalf("Refresh() err = %v", err)
	}

	advance(time.Minute)
	fetcher.mu.Lock()
	fetcher.err = errors.New("connection refused")
	fetcher.mu.Unlock()

	if err := r.Refresh(context.Background(), "timer"); err == nil {
		t.Fatal("Refresh() should surface the transport failure")
	}

	st := r.State()
	if st.Health != HealthStale {
		t.Errorf("health = %v; want stale", st.Health)
	}
	if st.Snapshot.Empty() {
		t.Error("previous snapshot must stay displayed after a failed refresh")
	}
	if st.LastError == "" {
		t.Error("state must carry the failure for the transient notice")
	}
}

func TestParseFailureWithoutSnapshotIsBlockingError(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte("not xml at all")}}
	r, _ := newTestRefresher(t, fetcher)

	err := r.Refresh(context.Background(), "initial")
	var pe *feed.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v; want *feed.ParseError", err)
	}

	if st := r.State(); st.Health != HealthError {
		t.Errorf("health = %v; want error with no snapshot to fall back to", st.Health)
	}
}

func TestEmptySnapshotIsNoDataNotError(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte(emptyPayload)}}
	r, _ := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "initial"); err != nil {
		t.Fatalf("Refresh() err = %v; zero stations is a valid result", err)
	}

	st := r.State()
	if st.Health != HealthOK {
		t.Errorf("health = %v; want ok", st.Health)
	}
	if !st.Snapshot.Empty() {
		t.Error("snapshot should be empty")
	}
}

func TestSwitchSourceDropsSnapshot(t *testing.T) {
	fetcher := &stubFetcher{payloads: map[string][]byte{"http://dhmz.test/feed": []byte(goodPayload)}}
	r, _ := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "initial"); err != nil {
		t.Fatalf("Refresh() err = %v", err)
	}

	if err := r.SwitchSource("pljusak"); err != nil {
		t.Fatalf("SwitchSource() err = %v", err)
	}
	if st := r.State(); st.Snapshot != nil {
		t.Error("the old feed's snapshot must be dropped on source switch")
	}
	if got := r.ActiveSource().ID; got != "pljusak" {
		t.Errorf("active source = %q; want pljusak", got)
	}

	if err := r.SwitchSource("bogus"); err == nil {
		t.Error("SwitchSource must reject unknown sources")
	}
}

func TestRefreshAfterSourceSwitchBypassesThrottle(t *testing.T) {
	// A fresh pljusak row so the staleness cutoff keeps it.
	row := time.Now().Format("02.01.2006 15:04")
	pljusakPayload := fmt.Sprintf(
		`<html><script>var postaje = [['M','Split, Marjan','43.51','16.44','120','%s','11.0','1018','-0.2','55','SW','4.0','2.0']];</script></html>`,
		row)

	fetcher := &stubFetcher{payloads: map[string][]byte{
		"http://dhmz.test/feed":    []byte(goodPayload),
		"http://pljusak.test/feed": []byte(pljusakPayload),
	}}
	r, _ := newTestRefresher(t, fetcher)

	if err := r.Refresh(context.Background(), "startup"); err != nil {
		t.Fatalf("Refresh() err = %v", err)
	}
	if err := r.SwitchSource("pljusak"); err != nil {
		t.Fatalf("SwitchSource() err = %v", err)
	}

	// The switch drops the snapshot, so the immediate follow-up refresh
	// must not be swallowed by the inter-refresh gap.
	if err := r.Refresh(context.Background(), "source-switch"); err != nil {
		t.Fatalf("Refresh() after switch err = %v; the widget would sit on no_data until the next tick", err)
	}

	st := r.State()
	if st.Health != HealthOK {
		t.Errorf("health = %v; want ok", st.Health)
	}
	if _, ok := st.Snapshot.Get("Split, Marjan"); !ok {
		t.Error("new feed's station missing after the post-switch refresh")
	}
}
