package obs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/example/sirius-meet/internal/application"
)

func TestMetrics_DomainCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.MeetingCreated("team")
	m.MeetingCreated("team")
	m.InviteIssued("forest")
	m.InviteConsumed("accepted")
	m.InviteConsumed("exhausted")
	m.ParticipantJoined(application.RoleHost)
	m.MeetingEnded(45)

	require.Equal(t, 2.0, testutil.ToFloat64(m.meetingsCreated.WithLabelValues("team")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.invitesIssued.WithLabelValues("forest")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.invitesConsumed.WithLabelValues("exhausted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.participantsJoined.WithLabelValues("host")))
	require.Equal(t, 1, testutil.CollectAndCount(m.meetingDuration))
}

func TestMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	t.Parallel()

	m := New()
	router := chi.NewRouter()
	router.Use(m.Instrument)
	router.Get("/invites/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	router.Handle("/metrics", m.Handler())

	for _, code := range []string{"roble-rio-1", "pino-luz-2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invites/"+code, nil))
		require.Equal(t, http.StatusGone, rec.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/invites/{code}", "410")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "sirius_meet_http_requests_total"))
}
