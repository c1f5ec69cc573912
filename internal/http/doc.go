// Package http exposes the meeting backend over JSON.
//
// Public endpoints:
//   - POST /sessions: signs an employee in. Body: {"national_id"}. Response:
//     {"token","expires_at","employee"}; the token is also set in the
//     `session_token` cookie and the `X-Session-Token` header. Rate limited
//     like the invite routes.
//   - DELETE /sessions/current: revokes the caller's session and clears the cookie.
//   - GET /invites/{code}: previews an invite without using it.
//   - POST /invites/{code}/join: joins the meeting behind the invite. Body:
//     {"display_name","organization","email"}. A session or an X-Meeting-Grant
//     host grant proves the host role. Both invite routes are rate limited per
//     client address. Forwarding headers count only from trusted proxies.
//   - POST /participants/{id}/leave, PATCH /participants/{id}/connection: updates
//     sent from inside a meeting; they require the participant's X-Meeting-Grant.
//   - POST /rtc/token, GET /rtc/token?channel=: media credentials and the
//     channel readiness probe.
//   - GET /healthz, GET /metrics.
//
// Session protected endpoints accept `Authorization: Bearer <token>` or the
// session cookie: /employees/me, /employees?q=, /meetings, /meetings/{id},
// /rooms/{roomID} and the /meetings/{id}/{invites,start,end,join,participants}
// actions. GET /meetings lists the caller's meetings, or searches all of them
// when type, location, season or topic is given.
//
// User facing messages are in Spanish. Request and response DTOs live next to
// the handlers that use them.
package http
