package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/sirius-meet/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var captured []string
	handler := &recordingHandler{record: func(r slog.Record) {
		r.Attrs(func(a slog.Attr) bool {
			captured = append(captured, a.Key+"="+a.Value.String())
			return true
		})
	}}
	ctx := logging.ContextWithLogger(context.Background(), slog.New(handler))

	base := slog.New(slog.NewTextHandler(io.Discard, nil))
	serviceLogger(ctx, base, "MeetingService", "CreateMeeting", "meeting_id", "m-1").Info("hello")

	want := map[string]bool{"service=MeetingService": false, "operation=CreateMeeting": false, "meeting_id=m-1": false}
	for _, attr := range captured {
		if _, ok := want[attr]; ok {
			want[attr] = true
		}
	}
	for attr, seen := range want {
		if !seen {
			t.Fatalf("expected attribute %s on context logger, got %v", attr, captured)
		}
	}
}

func TestStoreContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := storeContext(context.Background(), time.Minute)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected deadline when timeout is positive")
	}

	unbounded, cancelUnbounded := storeContext(context.Background(), 0)
	defer cancelUnbounded()
	if _, ok := unbounded.Deadline(); ok {
		t.Fatalf("expected no deadline when timeout is zero")
	}

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := storeContext(parent, time.Minute)
	defer cancelChild()
	cancelParent()
	if !errors.Is(child.Err(), context.Canceled) {
		t.Fatalf("expected parent cancellation to propagate, got %v", child.Err())
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want string
	}{
		"nil":              {err: nil, want: ""},
		"unauthorized":     {err: ErrUnauthorized, want: "unauthorized"},
		"invite not found": {err: ErrInviteNotFound, want: "invite_not_found"},
		"invite expired":   {err: fmt.Errorf("wrap: %w", ErrInviteExpired), want: "invite_expired"},
		"invite exhausted": {err: ErrInviteExhausted, want: "invite_exhausted"},
		"not found":        {err: ErrNotFound, want: "not_found"},
		"already exists":   {err: ErrAlreadyExists, want: "already_exists"},
		"credentials":      {err: ErrInvalidCredentials, want: "invalid_credentials"},
		"disabled":         {err: ErrAccountDisabled, want: "account_disabled"},
		"session expired":  {err: ErrSessionExpired, want: "session_expired"},
		"session revoked":  {err: ErrSessionRevoked, want: "session_revoked"},
		"rtc":              {err: ErrRTCNotConfigured, want: "rtc_not_configured"},
		"timeout":          {err: context.DeadlineExceeded, want: "timeout"},
		"canceled":         {err: context.Canceled, want: "canceled"},
		"validation":       {err: singleFieldError("title", "title is required"), want: "validation"},
		"create meeting":   {err: &CreateMeetingError{Cause: errors.New("boom")}, want: "create_meeting_failed"},
		"issue invite":     {err: &IssueInviteError{MeetingID: "m", Cause: errors.New("boom")}, want: "issue_invite_failed"},
		"issue not found":  {err: &IssueInviteError{MeetingID: "m", Cause: ErrNotFound}, want: "not_found"},
		"unexpected":       {err: errors.New("boom"), want: "unexpected"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

type recordingHandler struct {
	attrs  []slog.Attr
	record func(slog.Record)
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	h.record(r)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }
