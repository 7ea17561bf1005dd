package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventpass/internal/logging"
	"github.com/dmitrijs2005/eventpass/internal/server/auth"
	"github.com/dmitrijs2005/eventpass/internal/server/config"
	"github.com/dmitrijs2005/eventpass/internal/server/models"
	"github.com/dmitrijs2005/eventpass/internal/server/repositories/memory"
	"github.com/dmitrijs2005/eventpass/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	app    *httptest.Server
	server *Server
	tokens *auth.TokenIssuer
	auth   *services.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		AccessTokenValidityDuration: time.Hour,
		AdminTokenValidityDuration:  time.Hour,
	}
	m := memory.NewManager()
	tokens := auth.NewTokenIssuer("test-secret")
	logger := logging.NewNop()
	as := services.NewAuthService(m, tokens, auth.NewPasswordHasher(bcrypt.MinCost), nil, nil, cfg, logger)
	es := services.NewEventService(m, nil, logger)

	s := NewServer(":0", time.Second, logger, as, es, tokens)
	app := httptest.NewServer(s.Router())
	t.Cleanup(app.Close)
	return &testEnv{app: app, server: s, tokens: tokens, auth: as}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.app.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (e *testEnv) register(t *testing.T, email string) (token, id string) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "Secr3t!", "firstName": "A", "lastName": "B",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	return body["accessToken"].(string), user["id"].(string)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.auth.ProvisionAdmin(context.Background(), services.AdminInput{
		Email: "admin@x.com", Password: "AdminPass1", AdminSecret: "s3cret", FirstName: "Ada", LastName: "Admin",
	})
	require.NoError(t, err)
	resp, body := e.do(t, http.MethodPost, "/auth/admin/login", "", map[string]string{
		"email": "admin@x.com", "password": "AdminPass1", "adminSecret": "s3cret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["accessToken"].(string)
}

func (e *testEnv) createEvent(t *testing.T, token string, limit int) string {
	t.Helper()
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	resp, body := e.do(t, http.MethodPost, "/events", token, map[string]any{
		"title": "Meetup", "address": "Riga", "status": "published",
		"startTime": start, "endTime": start.Add(time.Hour), "maxParticipants": limit,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func registrationBody(eventID string) map[string]any {
	return map[string]any{"eventId": eventID, "firstName": "Jane", "lastName": "Doe", "email": "jane@x.com"}
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"email": "a@b.com", "password": "Secr3t!", "firstName": "A", "lastName": "B"}

	resp, body := env.do(t, http.MethodPost, "/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, strings.Split(body["accessToken"].(string), "."), 3)
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "passwordSalt")

	resp, body = env.do(t, http.MethodPost, "/auth/register", "", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "User with this email already exists", body["message"])
}

func TestRegisterEndpoint_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@b.com", "password": "p", "firstName": "A", "lastName": "B", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.register(t, "real@x.com")

	resp, unknown := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nonexistent@x.com", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, wrong := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "real@x.com", "password": "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, unknown, wrong)

	resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "REAL@x.com", "password": "Secr3t!"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claims, err := env.tokens.Verify(body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID())
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestTokenGuard(t *testing.T) {
	env := newTestEnv(t)
	token, id := env.register(t, "a@b.com")

	resp, body := env.do(t, http.MethodGet, "/auth/validate", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	resp, body = env.do(t, http.MethodGet, "/auth/validate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Missing bearer token", body["message"])

	resp, _ = env.do(t, http.MethodGet, "/auth/validate", token[:len(token)-2]+"xx", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := env.tokens.Issue(&models.User{ID: id, Email: "a@b.com", Role: models.RoleUser}, -time.Minute, false)
	require.NoError(t, err)
	resp, body = env.do(t, http.MethodGet, "/auth/validate", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token expired", body["message"])

	other, err := auth.NewTokenIssuer("other-secret").Issue(&models.User{ID: id, Role: models.RoleAdmin}, time.Hour, false)
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/auth/me", other, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["id"])
}

func TestAdminOnlyRoutes(t *testing.T) {
	env := newTestEnv(t)
	userToken, _ := env.register(t, "user@x.com")
	adminToken := env.adminToken(t)

	resp, body := env.do(t, http.MethodGet, "/auth/admin/dashboard", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Insufficient permissions", body["message"])

	resp, body = env.do(t, http.MethodGet, "/auth/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store, no-cache, must-revalidate", resp.Header.Get("Cache-Control"))
	assert.EqualValues(t, 2, body["totalUsers"])
	assert.Equal(t, services.SystemOperational, body["systemStatus"])
}

func TestAdminLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.adminToken(t)

	resp, body := env.do(t, http.MethodPost, "/auth/admin/login", "", map[string]string{
		"email": "admin@x.com", "password": "AdminPass1", "adminSecret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid admin secret", body["message"])

	resp, body = env.do(t, http.MethodPost, "/auth/admin/login", "", map[string]string{
		"email": "admin@x.com", "password": "AdminPass1", "adminSecret": "s3cret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claims, err := env.tokens.Verify(body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "a@b.com")

	resp, body := env.do(t, http.MethodPut, "/auth/profile-picture", token, map[string]string{"profilePictureUrl": "users/a/pic.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "users/a/pic.png", body["profilePictureUrl"])

	resp, body = env.do(t, http.MethodPatch, "/auth/profile", token, map[string]any{"firstName": "Grace", "sessionType": "persistent"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Grace B", body["fullName"])
	assert.Equal(t, "user", body["role"])

	resp, body = env.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", body["message"])

	resp, body = env.do(t, http.MethodPost, "/auth/profile-picture/upload-url", token, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestEventCapacityOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")
	id := env.createEvent(t, owner, 1)

	resp, body := env.do(t, http.MethodPost, "/events/register", "", registrationBody(id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", body["registrationStatus"])
	assert.NotContains(t, body, "userId")

	resp, body = env.do(t, http.MethodGet, "/events/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["currentParticipants"])

	resp, body = env.do(t, http.MethodPost, "/events/register", "", registrationBody(id))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Event is full", body["message"])

	resp, body = env.do(t, http.MethodPost, "/events/register", "", registrationBody("missing"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Event not found", body["message"])
}

func TestRegisterForEvent_OptionalAuth(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")
	userToken, userID := env.register(t, "user@x.com")
	id := env.createEvent(t, owner, 10)

	resp, body := env.do(t, http.MethodPost, "/events/register", userToken, registrationBody(id))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, userID, body["userId"])

	resp, _ = env.do(t, http.MethodPost, "/events/register", "garbage", registrationBody(id))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.app.URL+"/events/my-registrations", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+userToken)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	var regs []map[string]any
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&regs))
	require.Len(t, regs, 1)
	assert.Equal(t, id, regs[0]["eventId"])
}

func TestEventOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")
	intruder, _ := env.register(t, "intruder@x.com")
	id := env.createEvent(t, owner, 5)
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	update := map[string]any{"title": "Taken", "address": "Elsewhere", "startTime": start, "endTime": start.Add(time.Hour)}

	resp, body := env.do(t, http.MethodPut, "/events/"+id, intruder, update)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You are not authorized to modify this event", body["message"])

	_, body = env.do(t, http.MethodGet, "/events/"+id, "", nil)
	assert.Equal(t, "Meetup", body["title"])

	resp, _ = env.do(t, http.MethodGet, "/events/"+id+"/registrations", intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/events/"+id+"/time-slots", owner, map[string]any{
		"startTime": start, "endTime": start.Add(30 * time.Minute), "maxCapacity": 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "available", body["status"])

	resp, _ = env.do(t, http.MethodDelete, "/events/"+id, intruder, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/events/"+id, owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/events/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegistrationStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")
	adminToken := env.adminToken(t)
	id := env.createEvent(t, owner, 1)

	_, reg := env.do(t, http.MethodPost, "/events/register", "", registrationBody(id))
	regID := reg["id"].(string)
	path := "/events/registrations/" + regID + "/status"

	resp, _ := env.do(t, http.MethodPut, path, owner, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["registrationStatus"])

	_, ev := env.do(t, http.MethodGet, "/events/"+id, "", nil)
	assert.EqualValues(t, 0, ev["currentParticipants"])

	resp, _ = env.do(t, http.MethodPost, "/events/register", "", registrationBody(id))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestListEventsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")

	req, err := http.NewRequest(http.MethodGet, env.app.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))

	env.createEvent(t, owner, 3)
	resp, body := env.do(t, http.MethodGet, "/events?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid event status", body["message"])
}

func TestDraftEventsArePrivate(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.register(t, "owner@x.com")
	other, _ := env.register(t, "other@x.com")
	env.createEvent(t, owner, 3)

	start := time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	resp, body := env.do(t, http.MethodPost, "/events", owner, map[string]any{
		"title": "Planning", "address": "Riga", "startTime": start, "endTime": start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "draft", body["status"])
	draftID := body["id"].(string)

	countEvents := func(token string) int {
		req, err := http.NewRequest(http.MethodGet, env.app.URL+"/events", nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var list []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		return len(list)
	}
	assert.Equal(t, 1, countEvents(""))
	assert.Equal(t, 1, countEvents(other))
	assert.Equal(t, 2, countEvents(owner))
	assert.Equal(t, 2, countEvents(env.adminToken(t)))

	resp, body = env.do(t, http.MethodGet, "/events/"+draftID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Event not found", body["message"])
	resp, _ = env.do(t, http.MethodGet, "/events/"+draftID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/events/"+draftID, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/events/"+draftID, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPictureDownloadEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "a@b.com")

	resp, body := env.do(t, http.MethodGet, "/auth/profile-picture", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Picture not found", body["message"])

	resp, _ = env.do(t, http.MethodGet, "/auth/profile-picture", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/auth/profile-picture", token,
		map[string]string{"profilePictureUrl": "https://cdn.example.com/me.png"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/auth/profile-picture", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://cdn.example.com/me.png", body["url"])

	id := env.createEvent(t, token, 3)
	resp, body = env.do(t, http.MethodGet, "/events/"+id+"/picture", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Picture not found", body["message"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	// The sample is recorded after the response is written.
	assert.Eventually(t, func() bool {
		resp, err := http.Get(env.app.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(raw),
			`eventpass_http_requests_total{method="GET",route="/health",status="200"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRequireRoles_EmptySetPasses(t *testing.T) {
	h := RequireRoles()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(withClaims(req.Context(), &auth.Claims{Role: models.RoleGuest}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()

	env.server.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestServe_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
