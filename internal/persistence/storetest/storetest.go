// Package storetest is a conformance suite every persistence.Store backend
// runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/sirius-meet/internal/persistence"
	"github.com/example/sirius-meet/internal/testfixtures"
)

// Opener returns a migrated, empty store. The suite closes it.
type Opener func(t *testing.T) persistence.Store

// Run executes the whole suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	newStore := func(t *testing.T) persistence.Store {
		t.Helper()
		store := open(t)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("employees", func(t *testing.T) { testEmployees(t, newStore) })
	t.Run("meetings", func(t *testing.T) { testMeetings(t, newStore) })
	t.Run("invites", func(t *testing.T) { testInvites(t, newStore) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, newStore) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore) })
}

func seedEmployee(t *testing.T, store persistence.Store, opts ...testfixtures.EmployeeOption) persistence.Employee {
	t.Helper()
	employee := testfixtures.NewEmployee(opts...)
	require.NoError(t, store.CreateEmployee(context.Background(), employee))
	return employee
}

func seedMeeting(t *testing.T, store persistence.Store, hostID string, opts ...testfixtures.MeetingOption) persistence.Meeting {
	t.Helper()
	meeting := testfixtures.NewMeeting(hostID, opts...)
	require.NoError(t, store.CreateMeeting(context.Background(), meeting))
	return meeting
}

func seedInvite(t *testing.T, store persistence.Store, meetingID string, opts ...testfixtures.InviteOption) persistence.MeetingInvite {
	t.Helper()
	invite := testfixtures.NewInvite(meetingID, opts...)
	require.NoError(t, store.CreateInvite(context.Background(), invite))
	return invite
}

func testEmployees(t *testing.T, open Opener) {
	t.Run("creates and reads employees", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		employee := seedEmployee(t, store, testfixtures.WithNames("Lucía", "Gómez"))

		fetched, err := store.GetEmployee(ctx, employee.NationalID)
		require.NoError(t, err)
		require.Equal(t, "Lucía Gómez", fetched.FullName)
		require.True(t, fetched.IsActive)
		require.Nil(t, fetched.LastLogin)
		require.True(t, fetched.CreatedAt.Equal(employee.CreatedAt))

		_, err = store.GetEmployee(ctx, "missing")
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rejects duplicate national ids", func(t *testing.T) {
		store := open(t)
		employee := seedEmployee(t, store)

		err := store.CreateEmployee(context.Background(), testfixtures.NewEmployee(testfixtures.WithNationalID(employee.NationalID)))
		require.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("lists active employees by family name", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		seedEmployee(t, store, testfixtures.WithNationalID("3"), testfixtures.WithNames("Ana", "Zapata"))
		seedEmployee(t, store, testfixtures.WithNationalID("1"), testfixtures.WithNames("Bruno", "Arias"))
		seedEmployee(t, store, testfixtures.WithNationalID("2"), testfixtures.WithNames("Carla", "Mejía"), testfixtures.Inactive())

		listed, err := store.ListActiveEmployees(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		require.Equal(t, []string{"1", "3"}, []string{listed[0].NationalID, listed[1].NationalID})
	})

	t.Run("searches active employees case-insensitively", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		seedEmployee(t, store, testfixtures.WithNationalID("1001"), testfixtures.WithNames("Mariana", "Rojas"))
		seedEmployee(t, store, testfixtures.WithNationalID("1002"), testfixtures.WithNames("Mario", "Rosales"))
		seedEmployee(t, store, testfixtures.WithNationalID("1003"), testfixtures.WithNames("Marta", "Ruiz"), testfixtures.Inactive())
		seedEmployee(t, store, testfixtures.WithNationalID("2001"), testfixtures.WithNames("Pedro", "Lara"))

		found, err := store.SearchEmployees(ctx, "MAR", 20)
		require.NoError(t, err)
		require.Len(t, found, 2)

		found, err = store.SearchEmployees(ctx, "200", 20)
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "2001", found[0].NationalID)

		found, err = store.SearchEmployees(ctx, "ro", 1)
		require.NoError(t, err)
		require.Len(t, found, 1)

		found, err = store.SearchEmployees(ctx, "50%", 20)
		require.NoError(t, err)
		require.Empty(t, found)
	})

	t.Run("touches last login", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		employee := seedEmployee(t, store)

		at := testfixtures.ReferenceTime().Add(time.Hour)
		require.NoError(t, store.TouchLastLogin(ctx, employee.NationalID, at))

		fetched, err := store.GetEmployee(ctx, employee.NationalID)
		require.NoError(t, err)
		require.NotNil(t, fetched.LastLogin)
		require.True(t, fetched.LastLogin.Equal(at))

		require.ErrorIs(t, store.TouchLastLogin(ctx, "missing", at), persistence.ErrNotFound)
	})
}

func testMeetings(t *testing.T, open Opener) {
	t.Run("creates and reads meetings by id and room", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)
		meeting := seedMeeting(t, store, host.NationalID, testfixtures.WithTopics("suelos", "riego"))

		byID, err := store.GetMeeting(ctx, meeting.ID)
		require.NoError(t, err)
		require.Equal(t, meeting.RoomID, byID.RoomID)
		require.Equal(t, []string{"suelos", "riego"}, byID.Topics)
		require.Equal(t, testfixtures.DefaultSettings(), byID.Settings)
		require.NotNil(t, byID.Description)
		require.Nil(t, byID.StartedAt)

		byRoom, err := store.GetMeetingByRoomID(ctx, meeting.RoomID)
		require.NoError(t, err)
		require.Equal(t, meeting.ID, byRoom.ID)

		_, err = store.GetMeeting(ctx, "missing")
		require.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = store.GetMeetingByRoomID(ctx, "sirius-team-0")
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rejects duplicate room ids", func(t *testing.T) {
		store := open(t)
		host := seedEmployee(t, store)
		meeting := seedMeeting(t, store, host.NationalID)

		err := store.CreateMeeting(context.Background(), testfixtures.NewMeeting(host.NationalID, testfixtures.WithRoomID(meeting.RoomID)))
		require.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("rejects unknown hosts", func(t *testing.T) {
		store := open(t)
		err := store.CreateMeeting(context.Background(), testfixtures.NewMeeting("nobody"))
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("lists host meetings newest first", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)
		other := seedEmployee(t, store)

		base := testfixtures.ReferenceTime()
		var ids []string
		for i := 0; i < 3; i++ {
			m := seedMeeting(t, store, host.NationalID, testfixtures.WithMeetingCreatedAt(base.Add(time.Duration(i)*time.Minute)))
			ids = append(ids, m.ID)
		}
		seedMeeting(t, store, other.NationalID)

		listed, err := store.ListMeetingsByHost(ctx, host.NationalID, 10)
		require.NoError(t, err)
		require.Len(t, listed, 3)
		require.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{listed[0].ID, listed[1].ID, listed[2].ID})

		limited, err := store.ListMeetingsByHost(ctx, host.NationalID, 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
	})

	t.Run("stores season and schedule", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)
		scheduled := testfixtures.ReferenceTime().Add(48 * time.Hour)
		meeting := seedMeeting(t, store, host.NationalID, testfixtures.WithSeason("fall"), testfixtures.WithScheduledAt(scheduled))
		plain := seedMeeting(t, store, host.NationalID)

		stored, err := store.GetMeeting(ctx, meeting.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.Season)
		require.Equal(t, "fall", *stored.Season)
		require.NotNil(t, stored.ScheduledAt)
		require.True(t, stored.ScheduledAt.Equal(scheduled))

		stored, err = store.GetMeeting(ctx, plain.ID)
		require.NoError(t, err)
		require.Nil(t, stored.Season)
		require.Nil(t, stored.ScheduledAt)
	})

	t.Run("finds meetings by context", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)

		base := testfixtures.ReferenceTime()
		fieldDay := seedMeeting(t, store, host.NationalID,
			testfixtures.WithMeetingType("field_day"),
			testfixtures.WithLocationType("field"),
			testfixtures.WithSeason("spring"),
			testfixtures.WithTopics("riego", "suelos"),
			testfixtures.WithMeetingCreatedAt(base.Add(time.Minute)),
		)
		harvest := seedMeeting(t, store, host.NationalID,
			testfixtures.WithMeetingType("harvest_review"),
			testfixtures.WithLocationType("field"),
			testfixtures.WithSeason("fall"),
			testfixtures.WithTopics("cosecha"),
			testfixtures.WithMeetingCreatedAt(base.Add(2*time.Minute)),
		)
		office := seedMeeting(t, store, host.NationalID,
			testfixtures.WithLocationType("office"),
			testfixtures.WithTopics("suelos"),
			testfixtures.WithMeetingCreatedAt(base.Add(3*time.Minute)),
		)

		ids := func(meetings []persistence.Meeting) []string {
			out := make([]string, 0, len(meetings))
			for _, m := range meetings {
				out = append(out, m.ID)
			}
			return out
		}

		cases := []struct {
			name   string
			filter persistence.MeetingFilter
			want   []string
		}{
			{name: "no filter", filter: persistence.MeetingFilter{}, want: []string{office.ID, harvest.ID, fieldDay.ID}},
			{name: "location", filter: persistence.MeetingFilter{LocationType: "field"}, want: []string{harvest.ID, fieldDay.ID}},
			{name: "season", filter: persistence.MeetingFilter{Season: "spring"}, want: []string{fieldDay.ID}},
			{name: "type", filter: persistence.MeetingFilter{MeetingType: "team"}, want: []string{office.ID}},
			{name: "topic overlap", filter: persistence.MeetingFilter{Topics: []string{"suelos", "plagas"}}, want: []string{office.ID, fieldDay.ID}},
			{name: "combined", filter: persistence.MeetingFilter{LocationType: "field", Topics: []string{"suelos"}}, want: []string{fieldDay.ID}},
			{name: "no match", filter: persistence.MeetingFilter{Season: "winter"}, want: []string{}},
			{name: "limit", filter: persistence.MeetingFilter{Limit: 1}, want: []string{office.ID}},
		}
		for _, tc := range cases {
			found, err := store.FindMeetings(ctx, tc.filter)
			require.NoError(t, err, tc.name)
			require.Equal(t, tc.want, ids(found), tc.name)
		}
	})

	t.Run("first start wins", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)
		meeting := seedMeeting(t, store, host.NationalID)

		first := testfixtures.ReferenceTime().Add(time.Hour)
		started, err := store.MarkMeetingStarted(ctx, meeting.ID, first)
		require.NoError(t, err)
		require.NotNil(t, started.StartedAt)
		require.True(t, started.StartedAt.Equal(first))

		again, err := store.MarkMeetingStarted(ctx, meeting.ID, first.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, again.StartedAt.Equal(first))

		_, err = store.MarkMeetingStarted(ctx, "missing", first)
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("first end wins and records duration", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		host := seedEmployee(t, store)
		meeting := seedMeeting(t, store, host.NationalID)

		start := testfixtures.ReferenceTime().Add(time.Hour)
		_, err := store.MarkMeetingStarted(ctx, meeting.ID, start)
		require.NoError(t, err)

		end := start.Add(45*time.Minute + 30*time.Second)
		ended, err := store.MarkMeetingEnded(ctx, meeting.ID, end)
		require.NoError(t, err)
		require.True(t, ended.EndedAt.Equal(end))
		require.Equal(t, 45, ended.DurationMinutes)

		again, err := store.MarkMeetingEnded(ctx, meeting.ID, end.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, again.EndedAt.Equal(end))
		require.Equal(t, 45, again.DurationMinutes)

		stored, err := store.GetMeeting(ctx, meeting.ID)
		require.NoError(t, err)
		require.Equal(t, 45, stored.DurationMinutes)
	})

	t.Run("ending an unstarted meeting records zero duration", func(t *testing.T) {
		store := open(t)
		host := seedEmployee(t, store)
		meeting := seedMeeting(t, store, host.NationalID)

		ended, err := store.MarkMeetingEnded(context.Background(), meeting.ID, testfixtures.ReferenceTime().Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, 0, ended.DurationMinutes)
		require.NotNil(t, ended.EndedAt)
	})
}

func testInvites(t *testing.T, open Opener) {
	setup := func(t *testing.T) (persistence.Store, persistence.Meeting) {
		store := open(t)
		host := seedEmployee(t, store)
		return store, seedMeeting(t, store, host.NationalID)
	}

	t.Run("creates and reads invites", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		message := "Traigan botas"
		invite := seedInvite(t, store, meeting.ID, func(i *persistence.MeetingInvite) { i.CustomMessage = &message })

		fetched, err := store.GetInviteByCode(ctx, invite.InviteCode)
		require.NoError(t, err)
		require.Equal(t, invite.MeetingID, fetched.MeetingID)
		require.Equal(t, 100, fetched.MaxUses)
		require.Equal(t, 0, fetched.CurrentUses)
		require.True(t, fetched.ExpiresAt.Equal(invite.ExpiresAt))
		require.NotNil(t, fetched.CustomMessage)
		require.Equal(t, message, *fetched.CustomMessage)

		_, err = store.GetInviteByCode(ctx, "pino-luz-0")
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rejects duplicate codes and unknown meetings", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		invite := seedInvite(t, store, meeting.ID)

		err := store.CreateInvite(ctx, testfixtures.NewInvite(meeting.ID, testfixtures.WithInviteCode(invite.InviteCode)))
		require.ErrorIs(t, err, persistence.ErrDuplicate)

		err = store.CreateInvite(ctx, testfixtures.NewInvite("missing"))
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("rejects usage counters beyond the cap", func(t *testing.T) {
		store, meeting := setup(t)
		err := store.CreateInvite(context.Background(), testfixtures.NewInvite(meeting.ID, testfixtures.WithUses(3, 2)))
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("lists invites newest first", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		base := testfixtures.ReferenceTime()
		older := seedInvite(t, store, meeting.ID, testfixtures.WithInviteCreatedAt(base))
		newer := seedInvite(t, store, meeting.ID, testfixtures.WithInviteCreatedAt(base.Add(time.Minute)))

		listed, err := store.ListInvitesForMeeting(ctx, meeting.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		require.Equal(t, newer.ID, listed[0].ID)
		require.Equal(t, older.ID, listed[1].ID)
	})

	t.Run("increments sequentially up to the cap", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		invite := seedInvite(t, store, meeting.ID, testfixtures.WithUses(0, 3))
		now := testfixtures.ReferenceTime()

		for i := 1; i <= 3; i++ {
			updated, err := store.IncrementInviteUse(ctx, invite.InviteCode, now)
			require.NoError(t, err)
			require.Equal(t, i, updated.CurrentUses)
		}

		_, err := store.IncrementInviteUse(ctx, invite.InviteCode, now)
		require.ErrorIs(t, err, persistence.ErrUsageLimitReached)

		stored, err := store.GetInviteByCode(ctx, invite.InviteCode)
		require.NoError(t, err)
		require.Equal(t, 3, stored.CurrentUses)
	})

	t.Run("refuses expired invites and unknown codes", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		expiry := testfixtures.ReferenceTime()
		invite := seedInvite(t, store, meeting.ID, testfixtures.WithExpiresAt(expiry))

		_, err := store.IncrementInviteUse(ctx, invite.InviteCode, expiry.Add(time.Second))
		require.ErrorIs(t, err, persistence.ErrExpired)

		updated, err := store.IncrementInviteUse(ctx, invite.InviteCode, expiry)
		require.NoError(t, err, "an invite is still usable at its exact expiry instant")
		require.Equal(t, 1, updated.CurrentUses)

		_, err = store.IncrementInviteUse(ctx, "cedro-viento-9", expiry)
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("concurrent increments never exceed the cap", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		invite := seedInvite(t, store, meeting.ID, testfixtures.WithUses(0, 5))
		now := testfixtures.ReferenceTime()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			rejected  int
			failures  []error
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementInviteUse(ctx, invite.InviteCode, now)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, persistence.ErrUsageLimitReached):
					rejected++
				default:
					failures = append(failures, err)
				}
			}()
		}
		wg.Wait()

		require.Empty(t, failures)
		require.Equal(t, 5, succeeded)
		require.Equal(t, 15, rejected)
	})
}

func testParticipants(t *testing.T, open Opener) {
	setup := func(t *testing.T) (persistence.Store, persistence.Meeting) {
		store := open(t)
		host := seedEmployee(t, store)
		return store, seedMeeting(t, store, host.NationalID)
	}

	t.Run("lists participants in join order and allows duplicate names", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		base := testfixtures.ReferenceTime()

		late := testfixtures.NewParticipant(meeting.ID, testfixtures.WithDisplayName("Ana"), testfixtures.WithJoinedAt(base.Add(2*time.Minute)))
		early := testfixtures.NewParticipant(meeting.ID, testfixtures.WithDisplayName("Ana"), testfixtures.WithJoinedAt(base), testfixtures.AsHost())
		require.NoError(t, store.CreateParticipant(ctx, late))
		require.NoError(t, store.CreateParticipant(ctx, early))

		listed, err := store.ListParticipants(ctx, meeting.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		require.Equal(t, early.ID, listed[0].ID)
		require.True(t, listed[0].IsHost)
		require.Equal(t, "good", listed[0].ConnectionQuality)
		require.Equal(t, late.ID, listed[1].ID)
	})

	t.Run("first leave wins", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		participant := testfixtures.NewParticipant(meeting.ID)
		require.NoError(t, store.CreateParticipant(ctx, participant))

		first := testfixtures.ReferenceTime().Add(time.Hour)
		left, err := store.MarkParticipantLeft(ctx, participant.ID, first)
		require.NoError(t, err)
		require.True(t, left.LeftAt.Equal(first))

		again, err := store.MarkParticipantLeft(ctx, participant.ID, first.Add(time.Minute))
		require.NoError(t, err)
		require.True(t, again.LeftAt.Equal(first))

		_, err = store.MarkParticipantLeft(ctx, "missing", first)
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("updates connection quality", func(t *testing.T) {
		ctx := context.Background()
		store, meeting := setup(t)
		participant := testfixtures.NewParticipant(meeting.ID)
		require.NoError(t, store.CreateParticipant(ctx, participant))

		updated, err := store.UpdateConnectionQuality(ctx, participant.ID, "poor")
		require.NoError(t, err)
		require.Equal(t, "poor", updated.ConnectionQuality)

		_, err = store.UpdateConnectionQuality(ctx, participant.ID, "terrible")
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)

		_, err = store.UpdateConnectionQuality(ctx, "missing", "fair")
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rejects participants of unknown meetings", func(t *testing.T) {
		store, _ := setup(t)
		err := store.CreateParticipant(context.Background(), testfixtures.NewParticipant("missing"))
		require.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})
}

func testSessions(t *testing.T, open Opener) {
	t.Run("creates, revokes and prunes sessions", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		employee := seedEmployee(t, store)

		session, err := store.CreateSession(ctx, testfixtures.NewSession(employee.NationalID))
		require.NoError(t, err)

		fetched, err := store.GetSession(ctx, session.Token)
		require.NoError(t, err)
		require.Equal(t, session.ID, fetched.ID)
		require.Equal(t, employee.NationalID, fetched.EmployeeID)
		require.Nil(t, fetched.RevokedAt)

		revokedAt := testfixtures.ReferenceTime().Add(time.Minute)
		revoked, err := store.RevokeSession(ctx, session.Token, revokedAt)
		require.NoError(t, err)
		require.NotNil(t, revoked.RevokedAt)
		require.True(t, revoked.RevokedAt.Equal(revokedAt))

		_, err = store.RevokeSession(ctx, "unknown", revokedAt)
		require.ErrorIs(t, err, persistence.ErrNotFound)

		require.NoError(t, store.DeleteExpiredSessions(ctx, session.ExpiresAt))
		_, err = store.GetSession(ctx, session.Token)
		require.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("rejects duplicate tokens", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		employee := seedEmployee(t, store)

		session, err := store.CreateSession(ctx, testfixtures.NewSession(employee.NationalID))
		require.NoError(t, err)

		_, err = store.CreateSession(ctx, testfixtures.NewSession(employee.NationalID, testfixtures.WithSessionToken(session.Token)))
		require.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("keeps sessions that have not expired", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		employee := seedEmployee(t, store)
		base := testfixtures.ReferenceTime()

		expired, err := store.CreateSession(ctx, testfixtures.NewSession(employee.NationalID, testfixtures.WithSessionExpiresAt(base)))
		require.NoError(t, err)
		live, err := store.CreateSession(ctx, testfixtures.NewSession(employee.NationalID, testfixtures.WithSessionExpiresAt(base.Add(time.Hour))))
		require.NoError(t, err)

		require.NoError(t, store.DeleteExpiredSessions(ctx, base))

		_, err = store.GetSession(ctx, expired.Token)
		require.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = store.GetSession(ctx, live.Token)
		require.NoError(t, err, "session %s should survive", live.ID)
	})
}
