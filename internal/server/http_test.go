package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	credentialdomain "quizdeck/internal/credential/domain"
	identityhandler "quizdeck/internal/identity/handler"
	identityservice "quizdeck/internal/identity/service"
	membershipdomain "quizdeck/internal/membership/domain"
	membershiphandler "quizdeck/internal/membership/handler"
	membershipservice "quizdeck/internal/membership/service"
	"quizdeck/internal/metrics"
	orgdomain "quizdeck/internal/organization/domain"
	organizationhandler "quizdeck/internal/organization/handler"
	organizationservice "quizdeck/internal/organization/service"
	"quizdeck/internal/security"
	userdomain "quizdeck/internal/user/domain"
)

// In-memory stores backing a full router, so the tests can walk end-to-end
// flows over real HTTP semantics.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func (r *memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUsers) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

type memCreds struct {
	mu    sync.Mutex
	creds map[string]*credentialdomain.Credential
}

func (r *memCreds) Create(_ context.Context, c *credentialdomain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.creds[c.UserID] = &cp
	return nil
}

func (r *memCreds) GetByUserID(_ context.Context, userID string) (*credentialdomain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.creds[userID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memCreds) GetByRefreshTokenHash(_ context.Context, hash string) (*credentialdomain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.RefreshTokenHash != nil && *c.RefreshTokenHash == hash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCreds) SetRefreshToken(_ context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return errors.New("no credential")
	}
	c.RefreshTokenHash = &hash
	return nil
}

func (r *memCreds) RotateRefreshToken(_ context.Context, userID, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || c.RefreshTokenHash == nil || *c.RefreshTokenHash != oldHash {
		return false, nil
	}
	c.RefreshTokenHash = &newHash
	return true, nil
}

func (r *memCreds) SetRestoreCode(_ context.Context, userID, codeHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return errors.New("no credential")
	}
	c.RestoreCodeHash = &codeHash
	c.RestoreCodeExpiresAt = &expiresAt
	return nil
}

func (r *memCreds) ConsumeRestoreCode(_ context.Context, userID, codeHash, newPasswordHash, newRefreshHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || c.RestoreCodeHash == nil || *c.RestoreCodeHash != codeHash {
		return false, nil
	}
	c.PasswordHash = newPasswordHash
	c.RestoreCodeHash = nil
	c.RestoreCodeExpiresAt = nil
	c.PasswordResetRequired = false
	c.RefreshTokenHash = &newRefreshHash
	return true, nil
}

func (r *memCreds) UpdatePassword(_ context.Context, userID, newPasswordHash, newRefreshHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return false, nil
	}
	c.PasswordHash = newPasswordHash
	c.RestoreCodeHash = nil
	c.RestoreCodeExpiresAt = nil
	c.PasswordResetRequired = false
	c.RefreshTokenHash = &newRefreshHash
	return true, nil
}

func (r *memCreds) SetPasswordResetRequired(_ context.Context, userID string, required bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return errors.New("no credential")
	}
	c.PasswordResetRequired = required
	return nil
}

type memMemberships struct {
	mu   sync.Mutex
	rows map[string]*membershipdomain.Membership
}

func mkey(userID, orgID string) string { return userID + "|" + orgID }

func (r *memMemberships) GetByUserAndOrg(_ context.Context, userID, orgID string) (*membershipdomain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[mkey(userID, orgID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *memMemberships) ListByOrg(_ context.Context, orgID string) ([]*membershipdomain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*membershipdomain.Membership
	for _, m := range r.rows {
		if m.OrgID == orgID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMemberships) Create(_ context.Context, m *membershipdomain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.rows[mkey(m.UserID, m.OrgID)] = &cp
	return nil
}

func (r *memMemberships) UpdateApprovement(_ context.Context, userID, orgID string, to membershipdomain.Approvement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[mkey(userID, orgID)]
	if !ok || m.Approvement != membershipdomain.ApprovementPending {
		return false, nil
	}
	m.Approvement = to
	return true, nil
}

func (r *memMemberships) Delete(_ context.Context, userID, orgID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := mkey(userID, orgID)
	if _, ok := r.rows[k]; !ok {
		return false, nil
	}
	delete(r.rows, k)
	return true, nil
}

type memOrgs struct {
	mu   sync.Mutex
	rows map[string]*orgdomain.Org
}

func (r *memOrgs) GetByID(_ context.Context, id string) (*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.rows[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r *memOrgs) ListByMember(_ context.Context, userID string) ([]*orgdomain.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*orgdomain.Org
	for _, o := range r.rows {
		if o.AuthorID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memOrgs) Create(_ context.Context, o *orgdomain.Org) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.rows[o.ID] = &cp
	return nil
}

func (r *memOrgs) Update(_ context.Context, o *orgdomain.Org) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[o.ID]
	if !ok {
		return false, nil
	}
	cur.Title, cur.Description, cur.Color = o.Title, o.Description, o.Color
	return true, nil
}

func (r *memOrgs) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

type memSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *memSender) SendCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *memSender, *memCreds) {
	t.Helper()
	users := &memUsers{users: map[string]*userdomain.User{}}
	creds := &memCreds{creds: map[string]*credentialdomain.Credential{}}
	members := &memMemberships{rows: map[string]*membershipdomain.Membership{}}
	orgs := &memOrgs{rows: map[string]*orgdomain.Org{}}
	sender := &memSender{codes: map[string]string{}}

	tokens := security.NewTokenProvider([]byte("test-secret"), "quizdeck-auth", "quizdeck-api", time.Hour)
	m := metrics.New()

	auth := identityservice.NewAuthService(users, creds, sender, security.NewHasher(4), tokens, 15*time.Minute)
	membershipSvc := membershipservice.New(members, users)
	orgSvc := organizationservice.New(orgs, membershipSvc)

	router := NewRouter(RouterDeps{
		Identity:      identityhandler.New(auth, m),
		Organizations: organizationhandler.New(orgSvc),
		Memberships:   membershiphandler.New(membershipSvc),
		Tokens:        tokens,
		Metrics:       m,
	})
	return router, sender, creds
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func signUp(t *testing.T, router http.Handler, email string) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"name": "Test User", "email": email, "password": "correct horse",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status: %d body=%s", rec.Code, rec.Body.String())
	}
	return decodeAuth(t, rec)
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}

func TestRouter_SignUpSignInFlow(t *testing.T) {
	router, _, _ := newTestRouter(t)
	signUp(t, router, "ada@example.com")

	// duplicate signup conflicts
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"name": "Again", "email": "ada@example.com", "password": "correct horse",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "correct horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin: got %d", rec.Code)
	}
}

func TestRouter_RefreshViaHeader(t *testing.T) {
	router, _, _ := newTestRouter(t)
	res := signUp(t, router, "ada@example.com")
	refresh, _ := res["refreshToken"].(string)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh", nil, map[string]string{
		"Refresh": refresh,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: got %d body=%s", rec.Code, rec.Body.String())
	}
	// replay fails once rotated
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh", nil, map[string]string{
		"Refresh": refresh,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: got %d", rec.Code)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/organizations", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rec.Code)
	}
}

func TestRouter_RecoveryFlow(t *testing.T) {
	router, sender, _ := newTestRouter(t)
	signUp(t, router, "ada@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/recovery/request", map[string]string{
		"email": "ada@example.com",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("recovery request: got %d", rec.Code)
	}
	code := sender.codes["ada@example.com"]
	if code == "" {
		t.Fatal("expected a delivered code")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/recovery/verify", map[string]string{
		"email": "ada@example.com", "code": "000000",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code verify: got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/recovery/restore", map[string]string{
		"email": "ada@example.com", "code": code, "newPassword": "brand new pass",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "brand new pass",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin with new password: got %d", rec.Code)
	}

	// an unknown email reports success without leaking anything
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/recovery/request", map[string]string{
		"email": "ghost@example.com",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unknown email recovery: got %d", rec.Code)
	}
}

func TestRouter_ForcedResetFlow(t *testing.T) {
	router, _, creds := newTestRouter(t)
	res := signUp(t, router, "ada@example.com")
	userID := res["userId"].(string)

	if err := creds.SetPasswordResetRequired(context.Background(), userID, true); err != nil {
		t.Fatalf("SetPasswordResetRequired: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "correct horse",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: got %d body=%s", rec.Code, rec.Body.String())
	}
	restricted := decodeAuth(t, rec)
	if restricted["passwordResetRequired"] != true {
		t.Fatal("signin must report the pending reset")
	}
	restrictedAuth := map[string]string{"Authorization": "Bearer " + restricted["accessToken"].(string)}

	// a restricted token is useless everywhere but the password route
	rec = doJSON(t, router, http.MethodGet, "/api/v1/organizations", nil, restrictedAuth)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("restricted token on protected route: got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/v1/auth/password", map[string]string{
		"newPassword": "brand new pass",
	}, restrictedAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: got %d body=%s", rec.Code, rec.Body.String())
	}
	fresh := decodeAuth(t, rec)
	if fresh["passwordResetRequired"] != false {
		t.Fatal("change must clear the pending reset")
	}

	// the fresh token is unrestricted
	freshAuth := map[string]string{"Authorization": "Bearer " + fresh["accessToken"].(string)}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/organizations", nil, freshAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh token on protected route: got %d body=%s", rec.Code, rec.Body.String())
	}

	// the route refuses anonymous callers
	rec = doJSON(t, router, http.MethodPut, "/api/v1/auth/password", map[string]string{
		"newPassword": "brand new pass",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous change: got %d", rec.Code)
	}
}

func TestRouter_OrganizationAndMembershipFlow(t *testing.T) {
	router, _, _ := newTestRouter(t)
	author := signUp(t, router, "author@example.com")
	invitee := signUp(t, router, "member@example.com")

	authorAuth := map[string]string{"Authorization": "Bearer " + author["accessToken"].(string)}
	inviteeAuth := map[string]string{"Authorization": "Bearer " + invitee["accessToken"].(string)}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/organizations", map[string]string{
		"title": "Biology 101", "description": "intro", "color": "#00ff00",
	}, authorAuth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create org: got %d body=%s", rec.Code, rec.Body.String())
	}
	org := decodeAuth(t, rec)
	orgID := org["id"].(string)

	// invitee cannot see the org before accepting
	rec = doJSON(t, router, http.MethodGet, "/api/v1/organizations/"+orgID, nil, inviteeAuth)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member get: got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/organizations/"+orgID+"/members", map[string]string{
		"email": "member@example.com", "permission": "read",
	}, authorAuth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite: got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/organizations/"+orgID+"/members/respond", map[string]string{
		"decision": "accepted",
	}, inviteeAuth)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("respond: got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/organizations/"+orgID, nil, inviteeAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("member get: got %d", rec.Code)
	}

	// read member cannot invite
	rec = doJSON(t, router, http.MethodPost, "/api/v1/organizations/"+orgID+"/members", map[string]string{
		"email": "author@example.com", "permission": "read",
	}, inviteeAuth)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("read member invite: got %d", rec.Code)
	}

	// responding twice conflicts
	rec = doJSON(t, router, http.MethodPost, "/api/v1/organizations/"+orgID+"/members/respond", map[string]string{
		"decision": "declined",
	}, inviteeAuth)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second respond: got %d", rec.Code)
	}

	// member leaves
	inviteeID := invitee["userId"].(string)
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/organizations/"+orgID+"/members/"+inviteeID, nil, inviteeAuth)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("leave: got %d", rec.Code)
	}
}
