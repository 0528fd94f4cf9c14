package twilio

import (
	"context"
	"errors"
	"testing"

	"github.com/satriadi/bellhop/pkg/driver"
	"github.com/satriadi/bellhop/pkg/errorsx"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubAPI struct {
	createParams *api.CreateCallParams
	updateParams *api.UpdateCallParams
	updateSID    string
	fetchSID     string

	sid       string
	status    string
	createErr error
	fetchErr  error
}

func (s *stubAPI) CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error) {
	s.createParams = params
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &api.ApiV2010Call{Sid: &s.sid}, nil
}

func (s *stubAPI) FetchCall(sid string, params *api.FetchCallParams) (*api.ApiV2010Call, error) {
	s.fetchSID = sid
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &api.ApiV2010Call{Sid: &s.sid, Status: &s.status}, nil
}

func (s *stubAPI) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	s.updateSID = sid
	s.updateParams = params
	return &api.ApiV2010Call{Sid: &sid}, nil
}

func newTestDriver(t *testing.T, stub *stubAPI) *Driver {
	t.Helper()
	d, err := New(Config{AccountSID: "AC1", AuthToken: "token", FromNumber: "+200"})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	d.client = stub
	return d
}

func TestDialStoresSIDAndParams(t *testing.T) {
	stub := &stubAPI{sid: "CA123", status: "queued"}
	d := newTestDriver(t, stub)

	if err := d.Dial(context.Background(), "+100"); err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if stub.createParams == nil || stub.createParams.To == nil || *stub.createParams.To != "+100" {
		t.Fatalf("expected To param")
	}
	if stub.createParams.From == nil || *stub.createParams.From != "+200" {
		t.Fatalf("expected From param")
	}

	state, err := d.State(context.Background())
	if err != nil {
		t.Fatalf("state error: %v", err)
	}
	if state != driver.LinkConnecting {
		t.Fatalf("expected CONNECTING for queued, got %s", state)
	}
	if stub.fetchSID != "CA123" {
		t.Fatalf("expected fetch on stored sid, got %q", stub.fetchSID)
	}
}

func TestStateMapping(t *testing.T) {
	cases := map[string]driver.LinkState{
		"ringing":     driver.LinkConnecting,
		"in-progress": driver.LinkConnected,
		"completed":   driver.LinkEnded,
		"busy":        driver.LinkEnded,
		"no-answer":   driver.LinkEnded,
		"weird":       driver.LinkNone,
	}
	for status, want := range cases {
		if got := mapStatus(status); got != want {
			t.Fatalf("status %q: expected %s, got %s", status, want, got)
		}
	}
}

func TestHangupCompletesCall(t *testing.T) {
	stub := &stubAPI{sid: "CA9"}
	d := newTestDriver(t, stub)
	if err := d.Dial(context.Background(), "+100"); err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if err := d.Hangup(context.Background()); err != nil {
		t.Fatalf("hangup error: %v", err)
	}
	if stub.updateSID != "CA9" {
		t.Fatalf("expected update on stored sid")
	}
	if stub.updateParams == nil || stub.updateParams.Status == nil || *stub.updateParams.Status != "completed" {
		t.Fatalf("expected status completed")
	}
}

func TestHangupWithoutCallIsNoop(t *testing.T) {
	stub := &stubAPI{}
	d := newTestDriver(t, stub)
	if err := d.Hangup(context.Background()); err != nil {
		t.Fatalf("expected no-op hangup, got %v", err)
	}
	if stub.updateSID != "" {
		t.Fatalf("expected no update call")
	}
}

func TestAnswerUnsupported(t *testing.T) {
	d := newTestDriver(t, &stubAPI{})
	err := d.Answer(context.Background())
	if err == nil {
		t.Fatalf("expected answer to fail")
	}
	if !errorsx.HasReason(err, errorsx.ReasonAnswer) {
		t.Fatalf("expected answer reason, got %s", errorsx.Reason(err))
	}
}

func TestDialErrorHasReason(t *testing.T) {
	stub := &stubAPI{createErr: errors.New("declined")}
	d := newTestDriver(t, stub)
	err := d.Dial(context.Background(), "+100")
	if !errorsx.HasReason(err, errorsx.ReasonDial) {
		t.Fatalf("expected dial reason, got %v", err)
	}
}
