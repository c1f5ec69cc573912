package grant

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/example/sirius-meet/internal/application"
	"github.com/example/sirius-meet/internal/testfixtures"
)

func newTestSigner(t *testing.T, now *time.Time) *Signer {
	t.Helper()
	signer, err := NewSigner([]byte("test-session-secret"), func() time.Time { return *now })
	require.NoError(t, err)
	return signer
}

func participantGrant(now time.Time) application.Grant {
	return application.Grant{
		MeetingID:     "01JXMEETING",
		RoomID:        "sirius-team-1748961000000",
		Role:          application.RoleParticipant,
		ParticipantID: "01JXPARTICIPANT",
		Subject:       "01JXPARTICIPANT",
		IssuedAt:      now,
		ExpiresAt:     now.Add(application.ParticipantGrantTTL),
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	t.Parallel()

	now := testfixtures.ReferenceTime()
	signer := newTestSigner(t, &now)

	token, err := signer.Sign(participantGrant(now))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	got, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01JXMEETING", got.MeetingID)
	require.Equal(t, "sirius-team-1748961000000", got.RoomID)
	require.Equal(t, application.RoleParticipant, got.Role)
	require.Equal(t, "01JXPARTICIPANT", got.ParticipantID)
	require.NotEmpty(t, got.ID)
	require.True(t, got.ExpiresAt.Equal(now.Add(24*time.Hour)))
}

func TestSigner_RejectsTampering(t *testing.T) {
	t.Parallel()

	now := testfixtures.ReferenceTime()
	signer := newTestSigner(t, &now)

	host := participantGrant(now)
	host.Role = application.RoleHost
	host.ParticipantID = ""
	token, err := signer.Sign(participantGrant(now))
	require.NoError(t, err)

	hostToken, err := signer.Sign(host)
	require.NoError(t, err)

	// Splice the host payload onto the participant signature.
	parts := strings.Split(token, ".")
	hostParts := strings.Split(hostToken, ".")
	forged := parts[0] + "." + hostParts[1] + "." + parts[2]

	_, err = signer.Verify(forged)
	require.ErrorIs(t, err, application.ErrUnauthorized)

	other, err := NewSigner([]byte("another-secret"), func() time.Time { return now })
	require.NoError(t, err)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = signer.Verify("not-a-token")
	require.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = signer.Verify("")
	require.ErrorIs(t, err, application.ErrUnauthorized)
}

func TestSigner_RejectsExpiredGrants(t *testing.T) {
	t.Parallel()

	now := testfixtures.ReferenceTime()
	signer := newTestSigner(t, &now)

	token, err := signer.Sign(participantGrant(now))
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, err = signer.Verify(token)
	require.ErrorIs(t, err, application.ErrUnauthorized)
	require.Contains(t, err.Error(), "expired")
}

func TestSigner_RejectsForeignTokens(t *testing.T) {
	t.Parallel()

	now := testfixtures.ReferenceTime()
	signer := newTestSigner(t, &now)
	key, err := DeriveKey([]byte("test-session-secret"))
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, c claims, key any) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return token
	}

	base := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		MeetingID: "m",
		RoomID:    "r",
		Role:      string(application.RoleHost),
	}

	wrongIssuer := base
	wrongIssuer.Issuer = "someone-else"
	_, err = signer.Verify(sign(jwt.SigningMethodHS256, wrongIssuer, key))
	require.ErrorIs(t, err, application.ErrUnauthorized)

	noExpiry := base
	noExpiry.ExpiresAt = nil
	_, err = signer.Verify(sign(jwt.SigningMethodHS256, noExpiry, key))
	require.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = signer.Verify(sign(jwt.SigningMethodHS512, base, key))
	require.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = signer.Verify(sign(jwt.SigningMethodNone, base, jwt.UnsafeAllowNoneSignatureType))
	require.ErrorIs(t, err, application.ErrUnauthorized)

	badRole := base
	badRole.Role = "admin"
	_, err = signer.Verify(sign(jwt.SigningMethodHS256, badRole, key))
	require.ErrorIs(t, err, application.ErrUnauthorized)

	ok, err := signer.Verify(sign(jwt.SigningMethodHS256, base, key))
	require.NoError(t, err)
	require.Equal(t, application.RoleHost, ok.Role)
}

func TestSigner_SignValidation(t *testing.T) {
	t.Parallel()

	now := testfixtures.ReferenceTime()
	signer := newTestSigner(t, &now)

	_, err := signer.Sign(application.Grant{Role: application.RoleHost, ExpiresAt: now.Add(time.Hour)})
	require.Error(t, err)

	g := participantGrant(now)
	g.ExpiresAt = now
	_, err = signer.Sign(g)
	require.Error(t, err)

	_, err = NewSigner(nil, nil)
	require.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	a, err := DeriveKey([]byte("secret"))
	require.NoError(t, err)
	b, err := DeriveKey([]byte("secret"))
	require.NoError(t, err)
	c, err := DeriveKey([]byte("other"))
	require.NoError(t, err)

	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, []byte("secret"), a)
}
