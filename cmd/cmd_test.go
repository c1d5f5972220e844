package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/theirongolddev/esusu/internal/schedule"
)

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"daemon", "--detach", "--addr", "x", "--detach=true"})
	want := []string{"daemon", "--addr", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filterDetachArg = %v, want %v", got, want)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esusud.pid")
	if err := writePID(path, 4242); err != nil {
		t.Fatalf("writePID: %v", err)
	}
	pid, err := readPID(path)
	if err != nil || pid != 4242 {
		t.Fatalf("readPID = %d, %v", pid, err)
	}
	if err := os.WriteFile(path, []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPID(path); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
}

func TestOpenSessionBuildsScheduler(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := `
[cycle]
start_date = "2026-01-05"
weeks = 4
closing_day = 7

[schedule]
sweep_at = "22:00"
closeout_at = "22:30"
window_minutes = 15

[store]
path = "` + filepath.Join(dir, "esusu.db") + `"
`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	prevConfig, prevQuiet := flagConfig, flagQuiet
	flagConfig, flagQuiet = cfgPath, true
	t.Cleanup(func() { flagConfig, flagQuiet = prevConfig, prevQuiet })

	s, err := openSession()
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	if got := s.engine.Calendar().Weeks; got != 4 {
		t.Fatalf("calendar weeks = %d, want 4", got)
	}
	if got := s.operator("bo"); got != "bo" {
		t.Fatalf("operator flag ignored: %q", got)
	}

	sched, err := newScheduler(s, s.store)
	if err != nil {
		t.Fatalf("newScheduler: %v", err)
	}
	triggers := sched.Triggers()
	if len(triggers) != 2 {
		t.Fatalf("triggers = %d, want 2", len(triggers))
	}
	if triggers[0].Name != schedule.DailySweepTrigger || triggers[0].At.String() != "22:00" {
		t.Fatalf("sweep trigger = %+v", triggers[0])
	}
	if triggers[1].Name != schedule.WeeklyCloseoutTrigger || triggers[1].Window.Minutes() != 15 {
		t.Fatalf("closeout trigger = %+v", triggers[1])
	}
}
