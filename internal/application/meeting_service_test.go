package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/example/sirius-meet/internal/persistence"
)

var inviteCodePattern = regexp.MustCompile(`^([a-z]+)-([a-z]+)-([1-9][0-9]?)$`)

func TestMeetingService_CreateMeeting(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults and derives the room id", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		meeting, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID:      hostEmployee.NationalID,
			Title:       "  Revisión de cosecha  ",
			MeetingType: "harvest_review",
			Topics:      []string{"maíz", " ", "riego"},
		})
		if err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}

		wantRoom := "sirius-harvest_review-" + strconv.FormatInt(referenceNow.UnixMilli(), 10)
		if meeting.RoomID != wantRoom {
			t.Fatalf("expected room id %s, got %s", wantRoom, meeting.RoomID)
		}
		if meeting.Title != "Revisión de cosecha" {
			t.Fatalf("expected trimmed title, got %q", meeting.Title)
		}
		if meeting.LocationType != "remote" {
			t.Fatalf("expected remote location by default, got %s", meeting.LocationType)
		}
		if meeting.Description == nil || *meeting.Description != "Reunión creada por empleado "+hostEmployee.NationalID {
			t.Fatalf("expected default description, got %v", meeting.Description)
		}
		if len(meeting.Topics) != 2 {
			t.Fatalf("expected blank topics to be dropped, got %v", meeting.Topics)
		}
		if meeting.Settings != DefaultMeetingSettings() {
			t.Fatalf("expected default settings, got %#v", meeting.Settings)
		}
		if meeting.Settings.MaxParticipants != 50 || meeting.Settings.Theme != "forest" {
			t.Fatalf("unexpected settings %#v", meeting.Settings)
		}
		if meeting.StartedAt != nil || meeting.EndedAt != nil {
			t.Fatalf("expected a fresh meeting to be neither started nor ended")
		}
		if len(f.metrics.created) != 1 || f.metrics.created[0] != "harvest_review" {
			t.Fatalf("expected one created metric, got %v", f.metrics.created)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		_, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID:       hostEmployee.NationalID,
			MeetingType:  "party",
			LocationType: "beach",
			Season:       "monsoon",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"title", "meeting_type", "location_type", "season"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s to be reported, got %v", field, vErr.FieldErrors)
			}
		}
		if len(f.meetings.created) != 0 {
			t.Fatalf("expected no store call for invalid input")
		}
	})

	t.Run("keeps season and schedule", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		scheduled := time.Date(2025, 9, 22, 8, 0, 0, 0, time.FixedZone("COT", -5*3600))
		meeting, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID:       hostEmployee.NationalID,
			Title:        "Siembra de otoño",
			MeetingType:  "field_day",
			LocationType: "field",
			Season:       " Fall ",
			ScheduledAt:  &scheduled,
		})
		if err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}
		if meeting.Season == nil || *meeting.Season != "fall" {
			t.Fatalf("expected normalized season, got %v", meeting.Season)
		}
		if meeting.ScheduledAt == nil || !meeting.ScheduledAt.Equal(scheduled) || meeting.ScheduledAt.Location() != time.UTC {
			t.Fatalf("expected schedule stored in UTC, got %v", meeting.ScheduledAt)
		}

		plain, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID: hostEmployee.NationalID, Title: "Diaria", MeetingType: "team",
		})
		if err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}
		if plain.Season != nil || plain.ScheduledAt != nil {
			t.Fatalf("expected no season or schedule by default, got %v %v", plain.Season, plain.ScheduledAt)
		}
	})

	t.Run("room ids never repeat on a frozen clock", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		seen := make(map[string]bool)
		var last int64
		for i := 0; i < 5; i++ {
			meeting, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
				HostID: hostEmployee.NationalID, Title: "Diaria", MeetingType: "team",
			})
			if err != nil {
				t.Fatalf("CreateMeeting failed: %v", err)
			}
			if seen[meeting.RoomID] {
				t.Fatalf("room id %s repeated", meeting.RoomID)
			}
			seen[meeting.RoomID] = true

			millis, err := strconv.ParseInt(strings.TrimPrefix(meeting.RoomID, "sirius-team-"), 10, 64)
			if err != nil {
				t.Fatalf("unexpected room id %s", meeting.RoomID)
			}
			if millis <= last {
				t.Fatalf("expected increasing millisecond component, got %d after %d", millis, last)
			}
			last = millis
		}
	})

	t.Run("retries on room id collision", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		f.meetings.meetings["existing"] = Meeting{
			ID:     "existing",
			RoomID: "sirius-team-" + strconv.FormatInt(referenceNow.UnixMilli(), 10),
		}

		meeting, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID: hostEmployee.NationalID, Title: "Diaria", MeetingType: "team",
		})
		if err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}
		want := "sirius-team-" + strconv.FormatInt(referenceNow.UnixMilli()+1, 10)
		if meeting.RoomID != want {
			t.Fatalf("expected bumped room id %s, got %s", want, meeting.RoomID)
		}
		if len(f.meetings.created) != 2 {
			t.Fatalf("expected two attempts, got %d", len(f.meetings.created))
		}
	})

	t.Run("wraps store failures", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		f.meetings.createErrs = []error{errStoreDown}

		_, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
			HostID: hostEmployee.NationalID, Title: "Diaria", MeetingType: "team",
		})
		var createErr *CreateMeetingError
		if !errors.As(err, &createErr) {
			t.Fatalf("expected CreateMeetingError, got %v", err)
		}
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("expected cause to be preserved, got %v", err)
		}
		if len(f.meetings.created) != 1 {
			t.Fatalf("expected no retry for non-duplicate errors, got %d attempts", len(f.meetings.created))
		}
	})
}

func TestMeetingService_IssueInvite(t *testing.T) {
	t.Parallel()

	t.Run("issues a themed code with fixed policy", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		meeting := f.createMeeting("Planeación").Meeting
		message := "  Trae tus notas  "

		invite, err := f.service.IssueInvite(context.Background(), IssueInviteParams{
			MeetingID: meeting.ID, Theme: "garden", CustomMessage: &message,
		})
		if err != nil {
			t.Fatalf("IssueInvite failed: %v", err)
		}

		parts := inviteCodePattern.FindStringSubmatch(invite.Code)
		if parts == nil {
			t.Fatalf("unexpected code format %q", invite.Code)
		}
		if !containsWord(inviteThemeWords["garden"], parts[1]) {
			t.Fatalf("expected a garden word, got %s", parts[1])
		}
		if !containsWord(inviteSecondWords, parts[2]) {
			t.Fatalf("unexpected second word %s", parts[2])
		}
		if n, _ := strconv.Atoi(parts[3]); n < 1 || n > 99 {
			t.Fatalf("expected number in [1,99], got %d", n)
		}
		if !invite.ExpiresAt.Equal(referenceNow.Add(7 * 24 * time.Hour)) {
			t.Fatalf("expected seven day expiry, got %s", invite.ExpiresAt)
		}
		if invite.MaxUses != 100 || invite.CurrentUses != 0 {
			t.Fatalf("expected 0/100 uses, got %d/%d", invite.CurrentUses, invite.MaxUses)
		}
		if invite.CustomMessage == nil || *invite.CustomMessage != "Trae tus notas" {
			t.Fatalf("expected trimmed custom message, got %v", invite.CustomMessage)
		}
		if invite.Theme != "garden" {
			t.Fatalf("expected garden theme, got %s", invite.Theme)
		}
	})

	t.Run("unknown themes fall back to forest", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		meeting := f.createMeeting("Planeación").Meeting

		invite, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: meeting.ID, Theme: "desert"})
		if err != nil {
			t.Fatalf("IssueInvite failed: %v", err)
		}
		parts := inviteCodePattern.FindStringSubmatch(invite.Code)
		if parts == nil || !containsWord(inviteThemeWords["forest"], parts[1]) {
			t.Fatalf("expected a forest word, got %q", invite.Code)
		}
		if invite.Theme != "forest" {
			t.Fatalf("expected stored theme forest, got %s", invite.Theme)
		}
	})

	t.Run("unknown meeting", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		_, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: "missing"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("retries code collisions", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture(func(c *MeetingServiceConfig) { c.Intn = fixedIntn(0, 0, 0, 1, 1, 1) })
		f.meetings.meetings["m-1"] = Meeting{ID: "m-1", RoomID: "sirius-team-1", HostID: hostEmployee.NationalID}
		f.invites.invites["roble-rio-1"] = Invite{Code: "roble-rio-1", MeetingID: "other"}

		invite, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: "m-1"})
		if err != nil {
			t.Fatalf("IssueInvite failed: %v", err)
		}
		if invite.Code != "pino-viento-2" {
			t.Fatalf("expected second candidate, got %s", invite.Code)
		}
		if len(f.invites.attempts) != 2 {
			t.Fatalf("expected two attempts, got %d", len(f.invites.attempts))
		}
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture(func(c *MeetingServiceConfig) { c.Intn = fixedIntn(0) })
		f.meetings.meetings["m-1"] = Meeting{ID: "m-1", RoomID: "sirius-team-1", HostID: hostEmployee.NationalID}
		f.invites.invites["roble-rio-1"] = Invite{Code: "roble-rio-1", MeetingID: "other"}

		_, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: "m-1"})
		var issueErr *IssueInviteError
		if !errors.As(err, &issueErr) || issueErr.MeetingID != "m-1" {
			t.Fatalf("expected IssueInviteError for m-1, got %v", err)
		}
		if len(f.invites.attempts) != maxInviteCodeAttempts {
			t.Fatalf("expected %d attempts, got %d", maxInviteCodeAttempts, len(f.invites.attempts))
		}
	})

	t.Run("rejects long custom messages", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		meeting := f.createMeeting("Planeación").Meeting
		message := strings.Repeat("a", maxCustomMessageLength+1)

		_, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: meeting.ID, CustomMessage: &message})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestMeetingService_CreateMeetingWithInvite(t *testing.T) {
	t.Parallel()

	t.Run("creates the meeting, its invite and a host grant", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		result := f.createMeeting("Día de campo")

		if result.Invite == nil {
			t.Fatalf("expected an invite")
		}
		if result.Invite.MeetingID != result.Meeting.ID {
			t.Fatalf("expected invite for %s, got %s", result.Meeting.ID, result.Invite.MeetingID)
		}
		grant, err := f.grants.Verify(result.HostGrant)
		if err != nil {
			t.Fatalf("expected verifiable host grant: %v", err)
		}
		if grant.Role != RoleHost || grant.MeetingID != result.Meeting.ID || grant.RoomID != result.Meeting.RoomID {
			t.Fatalf("unexpected host grant %#v", grant)
		}
		if !result.HostGrantUntil.Equal(referenceNow.Add(InviteTTL)) {
			t.Fatalf("expected host grant to last as long as the invite, got %s", result.HostGrantUntil)
		}
	})

	t.Run("retries invite issuance against the same meeting", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		f.invites.createErrs = []error{errStoreDown, errStoreDown}

		result, err := f.service.CreateMeetingWithInvite(context.Background(), CreateMeetingWithInviteParams{
			Meeting: CreateMeetingParams{HostID: hostEmployee.NationalID, Title: "Capacitación", MeetingType: "training"},
		})
		if err != nil {
			t.Fatalf("CreateMeetingWithInvite failed: %v", err)
		}
		if len(f.meetings.created) != 1 {
			t.Fatalf("expected a single meeting insert, got %d", len(f.meetings.created))
		}
		if len(f.invites.attempts) != 3 {
			t.Fatalf("expected three invite attempts, got %d", len(f.invites.attempts))
		}
		for _, attempt := range f.invites.attempts {
			if attempt.MeetingID != result.Meeting.ID {
				t.Fatalf("expected every attempt to target %s, got %s", result.Meeting.ID, attempt.MeetingID)
			}
		}
	})

	t.Run("keeps the meeting when every invite attempt fails", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		f.invites.createErrs = []error{errStoreDown, errStoreDown, errStoreDown}

		result, err := f.service.CreateMeetingWithInvite(context.Background(), CreateMeetingWithInviteParams{
			Meeting: CreateMeetingParams{HostID: hostEmployee.NationalID, Title: "Capacitación", MeetingType: "training"},
		})
		var issueErr *IssueInviteError
		if !errors.As(err, &issueErr) {
			t.Fatalf("expected IssueInviteError, got %v", err)
		}
		if issueErr.MeetingID != result.Meeting.ID || result.Meeting.ID == "" {
			t.Fatalf("expected the error to name the stored meeting, got %q vs %q", issueErr.MeetingID, result.Meeting.ID)
		}
		if result.Invite != nil {
			t.Fatalf("expected no invite")
		}
		if result.HostGrant == "" {
			t.Fatalf("expected the host grant despite the invite failure")
		}

		invite, err := f.service.EnsureInvite(context.Background(), IssueInviteParams{MeetingID: result.Meeting.ID})
		if err != nil {
			t.Fatalf("EnsureInvite failed: %v", err)
		}
		if invite.MeetingID != result.Meeting.ID {
			t.Fatalf("expected recovery invite for the same meeting")
		}
		if len(f.meetings.created) != 1 {
			t.Fatalf("expected the meeting never to be recreated")
		}
	})

	t.Run("validates before writing anything", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		message := strings.Repeat("x", maxCustomMessageLength+1)
		_, err := f.service.CreateMeetingWithInvite(context.Background(), CreateMeetingWithInviteParams{
			Meeting:       CreateMeetingParams{HostID: hostEmployee.NationalID, Title: "Capacitación", MeetingType: "training"},
			CustomMessage: &message,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(f.meetings.created) != 0 {
			t.Fatalf("expected no meeting to be stored")
		}
	})
}

func TestMeetingService_EnsureInvite(t *testing.T) {
	t.Parallel()

	f := newMeetingFixture()
	created := f.createMeeting("Investigación")

	again, err := f.service.EnsureInvite(context.Background(), IssueInviteParams{MeetingID: created.Meeting.ID})
	if err != nil {
		t.Fatalf("EnsureInvite failed: %v", err)
	}
	if again.Code != created.Invite.Code {
		t.Fatalf("expected the active invite to be reused, got %s", again.Code)
	}

	exhausted := f.invites.get(created.Invite.Code)
	exhausted.CurrentUses = exhausted.MaxUses
	f.invites.invites[exhausted.Code] = exhausted

	fresh, err := f.service.EnsureInvite(context.Background(), IssueInviteParams{MeetingID: created.Meeting.ID})
	if err != nil {
		t.Fatalf("EnsureInvite failed: %v", err)
	}
	if fresh.Code == created.Invite.Code {
		t.Fatalf("expected a new invite once the old one is exhausted")
	}
}

func TestMeetingService_ResolveInvite(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, mutate func(*Invite)) (*meetingFixture, Invite) {
		t.Helper()
		f := newMeetingFixture()
		created := f.createMeeting("Alianzas")
		invite := f.invites.get(created.Invite.Code)
		if mutate != nil {
			mutate(&invite)
			f.invites.invites[invite.Code] = invite
		}
		return f, invite
	}

	t.Run("returns the invite, meeting and host", func(t *testing.T) {
		t.Parallel()

		f, invite := seed(t, nil)
		preview, err := f.service.ResolveInvite(context.Background(), "  "+strings.ToUpper(invite.Code)+" ")
		if err != nil {
			t.Fatalf("ResolveInvite failed: %v", err)
		}
		if preview.Meeting.ID != invite.MeetingID {
			t.Fatalf("expected meeting %s, got %s", invite.MeetingID, preview.Meeting.ID)
		}
		want := HostSummary{NationalID: hostEmployee.NationalID, FullName: hostEmployee.FullName, Role: "agronomist", Organization: Organization}
		if preview.Host != want {
			t.Fatalf("expected host %#v, got %#v", want, preview.Host)
		}
		if f.invites.get(invite.Code).CurrentUses != 0 {
			t.Fatalf("expected resolve to leave usage untouched")
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		t.Parallel()

		f, _ := seed(t, nil)
		_, err := f.service.ResolveInvite(context.Background(), "cedro-luz-42")
		if !errors.Is(err, ErrInviteNotFound) {
			t.Fatalf("expected ErrInviteNotFound, got %v", err)
		}
	})

	t.Run("expired wins over exhausted", func(t *testing.T) {
		t.Parallel()

		f, invite := seed(t, func(i *Invite) {
			i.ExpiresAt = referenceNow.Add(-time.Second)
			i.CurrentUses = i.MaxUses
		})
		_, err := f.service.ResolveInvite(context.Background(), invite.Code)
		if !errors.Is(err, ErrInviteExpired) {
			t.Fatalf("expected ErrInviteExpired, got %v", err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		t.Parallel()

		f, invite := seed(t, func(i *Invite) { i.CurrentUses = i.MaxUses })
		_, err := f.service.ResolveInvite(context.Background(), invite.Code)
		if !errors.Is(err, ErrInviteExhausted) {
			t.Fatalf("expected ErrInviteExhausted, got %v", err)
		}
	})

	t.Run("usable at the expiry instant", func(t *testing.T) {
		t.Parallel()

		f, invite := seed(t, func(i *Invite) { i.ExpiresAt = referenceNow })
		if _, err := f.service.ResolveInvite(context.Background(), invite.Code); err != nil {
			t.Fatalf("expected invite to resolve at its expiry instant, got %v", err)
		}
	})
}

func TestMeetingService_ConsumeInviteUse(t *testing.T) {
	t.Parallel()

	t.Run("counts every use up to the cap", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		code := f.createMeeting("Equipo").Invite.Code

		for i := 1; i <= InviteMaxUses; i++ {
			invite, err := f.service.ConsumeInviteUse(context.Background(), code)
			if err != nil {
				t.Fatalf("use %d failed: %v", i, err)
			}
			if invite.CurrentUses != i {
				t.Fatalf("expected %d uses, got %d", i, invite.CurrentUses)
			}
		}

		_, err := f.service.ConsumeInviteUse(context.Background(), code)
		if !errors.Is(err, ErrInviteExhausted) {
			t.Fatalf("expected ErrInviteExhausted past the cap, got %v", err)
		}
		if got := f.invites.get(code).CurrentUses; got != InviteMaxUses {
			t.Fatalf("expected usage to stay at the cap, got %d", got)
		}
		if last := f.metrics.consumed[len(f.metrics.consumed)-1]; last != "exhausted" {
			t.Fatalf("expected exhausted outcome, got %s", last)
		}
	})

	t.Run("maps store rejections", func(t *testing.T) {
		t.Parallel()

		cases := map[string]struct {
			storeErr error
			want     error
		}{
			"missing": {storeErr: persistence.ErrNotFound, want: ErrInviteNotFound},
			"expired": {storeErr: persistence.ErrExpired, want: ErrInviteExpired},
			"limit":   {storeErr: fmt.Errorf("increment: %w", persistence.ErrUsageLimitReached), want: ErrInviteExhausted},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				f := newMeetingFixture()
				f.invites.incErr = tc.storeErr
				_, err := f.service.ConsumeInviteUse(context.Background(), "roble-rio-1")
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})
}

func TestMeetingService_ListHostMeetings(t *testing.T) {
	t.Parallel()

	f := newMeetingFixture()
	for i := 0; i < HostMeetingsLimit+2; i++ {
		f.now = referenceNow.Add(time.Duration(i) * time.Minute)
		f.createMeeting("Reunión " + strconv.Itoa(i))
	}

	details, err := f.service.ListHostMeetings(context.Background(), hostEmployee.NationalID, 0)
	if err != nil {
		t.Fatalf("ListHostMeetings failed: %v", err)
	}
	if len(details) != HostMeetingsLimit {
		t.Fatalf("expected %d meetings, got %d", HostMeetingsLimit, len(details))
	}
	if details[0].Meeting.Title != "Reunión 11" {
		t.Fatalf("expected newest first, got %s", details[0].Meeting.Title)
	}
	if len(details[0].Invites) != 1 {
		t.Fatalf("expected invites to be attached, got %d", len(details[0].Invites))
	}

	byRoom, err := f.service.GetMeetingByRoom(context.Background(), details[0].Meeting.RoomID)
	if err != nil {
		t.Fatalf("GetMeetingByRoom failed: %v", err)
	}
	if byRoom.Meeting.ID != details[0].Meeting.ID {
		t.Fatalf("expected room lookup to find %s, got %s", details[0].Meeting.ID, byRoom.Meeting.ID)
	}

	if _, err := f.service.GetMeeting(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMeetingService_FindMeetings(t *testing.T) {
	t.Parallel()

	t.Run("normalizes the filter and applies defaults", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		for i, season := range []string{"spring", "fall", ""} {
			f.now = referenceNow.Add(time.Duration(i) * time.Minute)
			if _, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
				HostID: hostEmployee.NationalID, Title: "Campo " + strconv.Itoa(i), MeetingType: "field_day", Season: season,
			}); err != nil {
				t.Fatalf("CreateMeeting failed: %v", err)
			}
		}

		found, err := f.service.FindMeetings(context.Background(), MeetingFilter{
			MeetingType: " field_day ",
			Season:      "SPRING",
			Topics:      []string{" riego ", ""},
		})
		if err != nil {
			t.Fatalf("FindMeetings failed: %v", err)
		}
		if len(found) != 1 || found[0].Title != "Campo 0" {
			t.Fatalf("expected the spring meeting, got %+v", found)
		}
		got := f.meetings.lastFilter
		if got.MeetingType != "field_day" || got.Season != "spring" || got.Limit != MeetingSearchLimit {
			t.Fatalf("unexpected normalized filter %+v", got)
		}
		if len(got.Topics) != 1 || got.Topics[0] != "riego" {
			t.Fatalf("expected trimmed topics, got %v", got.Topics)
		}

		if _, err := f.service.FindMeetings(context.Background(), MeetingFilter{Limit: 5000}); err != nil {
			t.Fatalf("FindMeetings failed: %v", err)
		}
		if f.meetings.lastFilter.Limit != MaxMeetingSearchLimit {
			t.Fatalf("expected limit to be capped, got %d", f.meetings.lastFilter.Limit)
		}
	})

	t.Run("rejects unknown context values", func(t *testing.T) {
		t.Parallel()

		f := newMeetingFixture()
		_, err := f.service.FindMeetings(context.Background(), MeetingFilter{MeetingType: "party", LocationType: "beach", Season: "monsoon"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"type", "location", "season"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s to be reported, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestMeetingService_InviteScenarios(t *testing.T) {
	t.Parallel()

	const fieldHost = "1006834877"

	cases := []struct {
		name string
		run  func(t *testing.T, f *meetingFixture)
	}{
		{
			name: "field day meeting is resolvable through its invite",
			run: func(t *testing.T, f *meetingFixture) {
				meeting, err := f.service.CreateMeeting(context.Background(), CreateMeetingParams{
					HostID: fieldHost, Title: "Field Day", MeetingType: "field_day",
				})
				if err != nil {
					t.Fatalf("CreateMeeting failed: %v", err)
				}
				if !strings.HasPrefix(meeting.RoomID, "sirius-field_day-") {
					t.Fatalf("unexpected room id %s", meeting.RoomID)
				}

				invite, err := f.service.IssueInvite(context.Background(), IssueInviteParams{MeetingID: meeting.ID, Theme: "forest"})
				if err != nil {
					t.Fatalf("IssueInvite failed: %v", err)
				}
				parts := inviteCodePattern.FindStringSubmatch(invite.Code)
				if parts == nil || !containsWord(inviteThemeWords["forest"], parts[1]) {
					t.Fatalf("expected a forest code, got %q", invite.Code)
				}

				for i := 0; i < 2; i++ {
					preview, err := f.service.ResolveInvite(context.Background(), invite.Code)
					if err != nil {
						t.Fatalf("ResolveInvite failed: %v", err)
					}
					if preview.Meeting.Title != "Field Day" || preview.Host.NationalID != fieldHost {
						t.Fatalf("unexpected preview %+v", preview)
					}
				}
				if uses := f.invites.get(invite.Code).CurrentUses; uses != 0 {
					t.Fatalf("expected resolving to leave usage at 0, got %d", uses)
				}
			},
		},
		{
			name: "unknown code",
			run: func(t *testing.T, f *meetingFixture) {
				if _, err := f.service.ResolveInvite(context.Background(), "nope-nope-0"); !errors.Is(err, ErrInviteNotFound) {
					t.Fatalf("expected ErrInviteNotFound, got %v", err)
				}
			},
		},
		{
			name: "single use invite already used",
			run: func(t *testing.T, f *meetingFixture) {
				meeting := f.createMeeting("Uso único").Meeting
				f.invites.invites["cedro-luz-1"] = Invite{
					ID: "single", MeetingID: meeting.ID, Code: "cedro-luz-1", Theme: "forest",
					ExpiresAt: referenceNow.Add(time.Hour), MaxUses: 1, CurrentUses: 1, CreatedAt: referenceNow,
				}
				if _, err := f.service.ResolveInvite(context.Background(), "cedro-luz-1"); !errors.Is(err, ErrInviteExhausted) {
					t.Fatalf("expected ErrInviteExhausted, got %v", err)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newMeetingFixture()
			f.employees.employees[fieldHost] = Employee{
				NationalID: fieldHost, FullName: "Jorge Field", Role: "farmer",
				Organization: Organization, IsActive: true,
			}
			tc.run(t, f)
		})
	}
}

func TestGenerateInviteCode(t *testing.T) {
	t.Parallel()

	if got := generateInviteCode("field", fixedIntn(4, 3, 98)); got != "monte-rocio-99" {
		t.Fatalf("expected monte-rocio-99, got %s", got)
	}
	if got := generateInviteCode("FOREST", fixedIntn(0)); got != "roble-rio-1" {
		t.Fatalf("expected roble-rio-1, got %s", got)
	}
	if got := normalizeInviteTheme(" Garden "); got != "garden" {
		t.Fatalf("expected garden, got %s", got)
	}
	if got := normalizeInviteTheme("ocean"); got != DefaultInviteTheme {
		t.Fatalf("expected fallback theme, got %s", got)
	}
}

func containsWord(words []string, word string) bool {
	for _, w := range words {
		if w == word {
			return true
		}
	}
	return false
}
