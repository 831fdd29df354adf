package search

import (
	"context"
	"testing"
)

// fakeLocation records writes like a URL query parameter would.
type fakeLocation struct {
	value  string
	writes []string
}

func (l *fakeLocation) Read() string { return l.value }

func (l *fakeLocation) Write(query string) {
	l.value = query
	l.writes = append(l.writes, query)
}

func newTestController(t *testing.T) (*Controller, *fakeLocation) {
	t.Helper()
	e, _, _ := newTestEngine(t)
	loc := &fakeLocation{}
	return NewController(e, DefaultSettings(), loc, nil), loc
}

func TestController_InitialStateIdle(t *testing.T) {
	c, _ := newTestController(t)
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
	if c.Query() != "" || c.Results() != nil {
		t.Error("fresh controller must be empty")
	}
}

func TestController_LocationSeedsQuery(t *testing.T) {
	e, _, _ := newTestEngine(t)
	loc := &fakeLocation{value: "vue"}
	c := NewController(e, DefaultSettings(), loc, nil)
	if c.Query() != "vue" {
		t.Errorf("query = %q, want seeded from location", c.Query())
	}

	c.Run(context.Background())
	if c.State() != StateComplete {
		t.Errorf("state = %v, want complete", c.State())
	}
	if len(c.Results()) == 0 {
		t.Error("seeded query produced no results")
	}
}

func TestController_SetQuerySyncsLocation(t *testing.T) {
	c, loc := newTestController(t)
	c.SetQuery(context.Background(), "vue")

	if loc.value != "vue" {
		t.Errorf("location = %q, want %q", loc.value, "vue")
	}
	if c.State() != StateComplete {
		t.Errorf("state = %v", c.State())
	}
	if len(c.Results()) == 0 {
		t.Error("no results")
	}
}

func TestController_EmptyQueryGoesIdle(t *testing.T) {
	c, _ := newTestController(t)
	c.SetQuery(context.Background(), "vue")
	c.SetQuery(context.Background(), "")

	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
	if c.Results() != nil {
		t.Error("results must clear on empty query")
	}
}

func TestController_SubMinimumQueryGoesIdle(t *testing.T) {
	e, _, _ := newTestEngine(t)
	settings := DefaultSettings()
	settings.MinLength = 3
	c := NewController(e, settings, &fakeLocation{}, nil)

	c.SetQuery(context.Background(), "vu")
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle for sub-minimum query", c.State())
	}
}

func TestController_NoResultsStillCompletes(t *testing.T) {
	c, _ := newTestController(t)
	c.SetQuery(context.Background(), "qqqq")
	if c.State() != StateComplete {
		t.Errorf("state = %v, want complete", c.State())
	}
	if len(c.Results()) != 0 {
		t.Errorf("results = %v", c.Results())
	}
}

func TestController_OnLocationChangeEchoIgnored(t *testing.T) {
	c, loc := newTestController(t)
	c.SetQuery(context.Background(), "vue")
	writesBefore := len(loc.writes)

	// The environment reports back the value the controller just wrote.
	c.OnLocationChange(context.Background(), "vue")

	if len(loc.writes) != writesBefore {
		t.Error("echo must not write the location again")
	}
	if c.State() != StateComplete || c.Query() != "vue" {
		t.Error("echo must not disturb session state")
	}
}

func TestController_OnLocationChangeAppliesNewValue(t *testing.T) {
	c, loc := newTestController(t)
	c.SetQuery(context.Background(), "vue")

	// A genuine external change (back button) carries a different value.
	c.OnLocationChange(context.Background(), "grid")
	if c.Query() != "grid" {
		t.Errorf("query = %q, want %q", c.Query(), "grid")
	}
	if c.State() != StateComplete {
		t.Errorf("state = %v", c.State())
	}
	// Environment-originated changes are not echoed back to the location.
	if loc.value != "vue" {
		t.Errorf("location = %q, must stay untouched", loc.value)
	}
}

func TestController_Clear(t *testing.T) {
	c, loc := newTestController(t)
	c.SetQuery(context.Background(), "vue")
	c.Clear()

	if c.State() != StateIdle || c.Query() != "" || c.Results() != nil {
		t.Error("clear must reset the session")
	}
	if loc.value != "" {
		t.Errorf("location = %q, want cleared", loc.value)
	}
}

func TestController_CancelledContextDropsResults(t *testing.T) {
	c, _ := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.SetQuery(ctx, "vue")
	if len(c.Results()) != 0 {
		t.Errorf("results = %v, want none for cancelled query", c.Results())
	}
}

func TestController_SettingsSwap(t *testing.T) {
	c, _ := newTestController(t)
	c.SetQuery(context.Background(), "vue")
	if c.State() != StateComplete {
		t.Fatalf("state = %v", c.State())
	}

	s := c.Settings()
	s.MinLength = 5
	c.SetSettings(s)

	c.SetQuery(context.Background(), "vue")
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle under the raised minimum", c.State())
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:      "idle",
		StateSearching: "searching",
		StateComplete:  "complete",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
