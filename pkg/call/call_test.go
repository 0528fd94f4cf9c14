package call

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/satriadi/bellhop/pkg/errorsx"
	"github.com/satriadi/bellhop/pkg/redact"
)

func TestRegistrySingleActiveCall(t *testing.T) {
	r := NewRegistry()
	first := NewSession(Outgoing, "+15550100", "")
	second := NewSession(Outgoing, "+15550101", "")

	if err := r.Acquire(first); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	err := r.Acquire(second)
	if !errorsx.HasReason(err, errorsx.ReasonCallActive) {
		t.Fatalf("expected call-active reason, got %v", err)
	}
	if r.Active() != first {
		t.Fatal("active session changed after rejected acquire")
	}

	r.Release(first)
	if err := r.Acquire(second); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestRegistryReleaseWrongSessionIsNoop(t *testing.T) {
	r := NewRegistry()
	held := NewSession(Incoming, "caller", "")
	other := NewSession(Outgoing, "x", "")

	if err := r.Acquire(held); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	r.Release(other)
	if r.Active() != held {
		t.Fatal("release of a non-holding session freed the slot")
	}
}

func TestSessionEndStampsOnce(t *testing.T) {
	s := NewSession(Outgoing, "+15550100", "")
	s.End("exit_phrase")
	first, cause := s.EndedAt()
	s.End("watchdog")
	second, cause2 := s.EndedAt()

	if cause != "exit_phrase" || cause2 != "exit_phrase" {
		t.Fatalf("end cause = %q then %q, want exit_phrase kept", cause, cause2)
	}
	if !first.Equal(second) {
		t.Fatal("end time changed on second End")
	}
}

func TestSessionObserversSeeEveryAppend(t *testing.T) {
	s := NewSession(Outgoing, "+15550100", "")

	var first, second []Entry
	s.AddObserver(func(e Entry) { first = append(first, e) })
	s.Append(SpeakerAgent, "hello")
	s.AddObserver(func(e Entry) { second = append(second, e) })
	s.Append(SpeakerCaller, "hi")

	if len(first) != 2 {
		t.Fatalf("first observer saw %d entries, want 2", len(first))
	}
	if len(second) != 1 || second[0].Text != "hi" {
		t.Fatalf("late observer saw %v, want only the second entry", second)
	}
	if first[0].Speaker != SpeakerAgent || first[1].Speaker != SpeakerCaller {
		t.Fatalf("entry order wrong: %v", first)
	}
}

func TestStoreSaveWritesHeaderAndEntries(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	s := NewSession(Outgoing, "+15550100", "")
	s.Append(SpeakerAgent, "Hello, this is the assistant.")
	s.Append(SpeakerCaller, "hi there")
	s.End("remote_hangup")

	path, err := st.Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(path, s.ID+".jsonl") {
		t.Fatalf("path = %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 entries", len(lines))
	}
	if lines[0]["msg"] != "call" || lines[0]["end_cause"] != "remote_hangup" {
		t.Fatalf("header = %v", lines[0])
	}
	if lines[1]["speaker"] != SpeakerAgent || lines[2]["speaker"] != SpeakerCaller {
		t.Fatalf("entry order wrong: %v / %v", lines[1], lines[2])
	}
}

func TestStoreSaveRedactsPII(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s := NewSession(Outgoing, "+15550100200", "")
	s.Append(SpeakerCaller, "email me at bob@example.com")

	path, err := st.Save(s)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if strings.Contains(string(data), "bob@example.com") {
		t.Fatal("email leaked into persisted transcript")
	}
	if !strings.Contains(string(data), "[REDACTED_EMAIL]") {
		t.Fatal("redaction marker missing")
	}
}
