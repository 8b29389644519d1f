package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/service"
)

const (
	testJWTSecret      = "0123456789abcdef0123456789abcdef"
	testInternalSecret = "internal-test-secret"
)

type testEnv struct {
	server  *Server
	backend *fakeBackend
	checker *fakeChecker
}

func newTestEnv(t *testing.T, opts HandlerOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	backend := &fakeBackend{
		servers: []models.Server{{SubscriptionID: "sub_1", UID: "uid_1", Name: "survival", Region: "us-east"}},
		methods: []models.PaymentMethod{{ID: "pm_1", IsDefault: true}, {ID: "pm_2"}},
	}
	checker := &fakeChecker{}
	log := zerolog.Nop()
	billing := service.NewBillingService(backend, log)

	h := NewHandler(Services{
		Dashboard: service.NewDashboardService(backend, backend, checker, cat, billing, log),
		Billing:   billing,
		Files:     service.NewFileService(backend),
		Backups:   service.NewBackupService(backend, log),
		Settings:  service.NewSettingsService(backend, fakeDecrypter{}, log),
		Store:     service.NewStoreService(config.StripeConfig{}, cat, backend, log),
		Pinger:    fakePinger{up: map[string]bool{"play.example": true}},
	}, opts, log)

	cfg := &config.Config{
		Server:         config.ServerConfig{Mode: gin.TestMode, Port: "0"},
		JWT:            config.JWTConfig{SecretKey: testJWTSecret},
		CORS:           config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		InternalSecret: testInternalSecret,
	}
	return &testEnv{server: NewServer(cfg, h, log), backend: backend, checker: checker}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func userToken(t *testing.T) string {
	return signToken(t, testJWTSecret, jwt.MapClaims{"uid": "u1"})
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", "", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signToken(t, "another-secret-another-secret-xx", jwt.MapClaims{"uid": "u1"}), "", http.StatusUnauthorized},
		{"no subject", "Bearer " + signToken(t, testJWTSecret, jwt.MapClaims{"role": "user"}), "", http.StatusUnauthorized},
		{"uid claim", "Bearer " + userToken(t), "", http.StatusOK},
		{"sub claim", "Bearer " + signToken(t, testJWTSecret, jwt.MapClaims{"sub": "u2"}), "", http.StatusOK},
		{"query token", "", "?token=" + userToken(t), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/servers"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestInternalAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	body := `{"servers":[{"subscription_id":"sub_9"}]}`

	w := env.do(http.MethodPost, "/api/internal/status", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: status %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/internal/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", testInternalSecret)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.StatusMapResponse
	decode(t, rec, &resp)
	if resp.Statuses["sub_9"].Provisioning != models.ProvisioningReady {
		t.Fatalf("unexpected statuses %+v", resp.Statuses)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}

	w = env.do(http.MethodGet, "/health", "", "")
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("no request id generated")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request must be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("keys must be limited independently")
	}
}

func TestRateLimiterForgetsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		rl.Allow(key)
	}
	now = now.Add(2 * time.Minute)
	if !rl.Allow("d") {
		t.Fatal("fresh key limited")
	}
	if len(rl.requests) != 1 {
		t.Fatalf("idle keys kept: %d", len(rl.requests))
	}
}

func TestListServersAndStatuses(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)

	w := env.do(http.MethodGet, "/api/v1/servers", "", token)
	var list models.ServerListResponse
	decode(t, w, &list)
	if list.Total != 1 || list.Servers[0].SubscriptionID != "sub_1" {
		t.Fatalf("unexpected list %+v", list)
	}

	w = env.do(http.MethodGet, "/api/v1/servers/status", "", token)
	var statuses models.StatusMapResponse
	decode(t, w, &statuses)
	if statuses.Statuses["sub_1"].Provisioning != models.ProvisioningReady {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
}

func TestMutationErrorsMapToStatusAndNotice(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unavailable region", http.MethodPost, "/api/v1/servers/sub_1/region", `{"region":"ap-southeast"}`, http.StatusBadRequest},
		{"confirm before preview", http.MethodPost, "/api/v1/servers/sub_1/upgrade/confirm", "", http.StatusConflict},
		{"unknown plan", http.MethodPost, "/api/v1/servers/sub_1/upgrade/preview", `{"plan_id":"nope"}`, http.StatusBadRequest},
		{"path escape", http.MethodPost, "/api/v1/servers/sub_1/files/delete", `{"root":"../..","files":["x"]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.body, token)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			var resp models.MutationResponse
			decode(t, w, &resp)
			if resp.Notice == nil || resp.Notice.Type != models.NoticeError || resp.Notice.Message == "" {
				t.Fatalf("missing error notice: %s", w.Body.String())
			}
		})
	}

	w := env.do(http.MethodGet, "/api/v1/servers/sub_1/files?directory=../etc", "", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("read path escape: status %d", w.Code)
	}
	w = env.do(http.MethodGet, "/api/v1/servers/missing/console", "", token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("console for unknown server: status %d", w.Code)
	}
}

func TestUpgradeEndpoints(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)
	base := "/api/v1/servers/sub_1/upgrade"

	var flow struct {
		Step    string                 `json:"step"`
		Preview *models.UpgradePreview `json:"preview"`
	}
	decode(t, env.do(http.MethodPost, base+"/open", "", token), &flow)
	if flow.Step != "select" {
		t.Fatalf("open: step %q", flow.Step)
	}

	w := env.do(http.MethodPost, base+"/preview", `{"plan_id":"performance"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", w.Code, w.Body.String())
	}
	decode(t, env.do(http.MethodGet, base, "", token), &flow)
	if flow.Step != "preview" || flow.Preview == nil || flow.Preview.PlanTitle != "Performance" {
		t.Fatalf("after preview: %+v", flow)
	}

	w = env.do(http.MethodPost, base+"/back", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("back: %d %s", w.Code, w.Body.String())
	}
	flow.Preview = nil
	decode(t, w, &flow)
	if flow.Step != "select" || flow.Preview != nil {
		t.Fatalf("after back: %+v", flow)
	}
	if w = env.do(http.MethodPost, base+"/back", "", token); w.Code != http.StatusConflict {
		t.Fatalf("back from select: %d", w.Code)
	}

	if w = env.do(http.MethodPost, base+"/preview", `{"plan_id":"performance"}`, token); w.Code != http.StatusOK {
		t.Fatalf("second preview: %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, base+"/confirm", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}
	decode(t, env.do(http.MethodGet, base, "", token), &flow)
	if flow.Step != "success" {
		t.Fatalf("after confirm: step %q", flow.Step)
	}

	if w = env.do(http.MethodDelete, base, "", token); w.Code != http.StatusOK {
		t.Fatalf("close: %d", w.Code)
	}
	decode(t, env.do(http.MethodGet, base, "", token), &flow)
	if flow.Step != "select" {
		t.Fatalf("after close: step %q", flow.Step)
	}
}

func TestBillingEndpoints(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)

	var view struct {
		Subscriptions  []models.Server        `json:"subscriptions"`
		PaymentMethods []models.PaymentMethod `json:"payment_methods"`
		Pending        []string               `json:"pending"`
	}
	decode(t, env.do(http.MethodGet, "/api/v1/billing", "", token), &view)
	if len(view.Subscriptions) != 1 || len(view.PaymentMethods) != 2 || view.Pending == nil {
		t.Fatalf("unexpected view %+v", view)
	}

	w := env.do(http.MethodPost, "/api/v1/billing/payment-methods/pm_2/default", "", token)
	var resp models.MutationResponse
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.View == nil {
		t.Fatalf("set default: %d %s", w.Code, w.Body.String())
	}
	for _, pm := range resp.View.PaymentMethods {
		if pm.IsDefault != (pm.ID == "pm_2") {
			t.Fatalf("default not moved: %+v", resp.View.PaymentMethods)
		}
	}

	w = env.do(http.MethodPost, "/api/v1/billing/subscriptions/sub_1/cancel", "", token)
	decode(t, w, &resp)
	if !resp.View.Subscriptions[0].CancelAtPeriodEnd {
		t.Fatalf("cancel not mirrored: %s", w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/v1/billing/payment-methods", "", token)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "https://pay.example/setup") {
		t.Fatalf("add payment method: %d %s", w.Code, w.Body.String())
	}
}

func TestFileBackupAndSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)
	base := "/api/v1/servers/sub_1"

	var list models.FileListResponse
	decode(t, env.do(http.MethodGet, base+"/files?directory=plugins/", "", token), &list)
	if list.Directory != "/plugins" || list.Files[0].Name != "world" {
		t.Fatalf("unexpected listing %+v", list)
	}

	w := env.do(http.MethodGet, base+"/files/contents?file=server.properties", "", token)
	if w.Code != http.StatusOK || w.Body.String() != "motd=hello" {
		t.Fatalf("contents: %d %q", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, base+"/backups", "", token)
	var resp models.MutationResponse
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Notice.Type != models.NoticeSuccess {
		t.Fatalf("create backup: %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodGet, base+"/sftp", "", token)
	var creds models.SFTPCredentials
	decode(t, w, &creds)
	if creds.Password != "plain-cipher" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("sftp: %+v %v", creds, w.Header())
	}
}

func TestCheckoutAndCatalog(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	token := userToken(t)

	w := env.do(http.MethodGet, "/api/v1/public/catalog", "", "")
	var cat models.CatalogResponse
	decode(t, w, &cat)
	if len(cat.Plans) != 4 || len(cat.Regions) != 3 {
		t.Fatalf("unexpected catalog %+v", cat)
	}

	w = env.do(http.MethodPost, "/api/v1/checkout", `{"plan_id":"standard","region":"us-east","name":"My Server"}`, token)
	var redirect models.RedirectResponse
	decode(t, w, &redirect)
	if w.Code != http.StatusOK || redirect.URL != "https://pay.example/checkout" {
		t.Fatalf("checkout: %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/v1/checkout", `{"plan_id":"standard","region":"ap-southeast","name":"My Server"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unavailable region: %d", w.Code)
	}
	w = env.do(http.MethodPost, "/api/v1/checkout", `{"plan_id":"standard","region":"us-east","name":"x"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short name: %d", w.Code)
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})
	up, down := "play.example", "down.example"
	env.backend.servers = append(env.backend.servers,
		models.Server{SubscriptionID: "sub_2", Name: "creative", CNAMERecordName: &up},
		models.Server{SubscriptionID: "sub_3", Name: "modded", CNAMERecordName: &down},
	)
	token := userToken(t)

	tests := []struct {
		query string
		token string
		code  int
		want  string
	}{
		{"?address=play.example", token, http.StatusOK, "up"},
		{"?address=PLAY.example", token, http.StatusOK, "up"},
		{"?address=down.example", token, http.StatusOK, "down"},
		{"?address=play.example", "", http.StatusUnauthorized, ""},
		{"?address=other.example", token, http.StatusNotFound, ""},
		{"?address=http://10.0.0.1/computeMetadata/v1/token", token, http.StatusBadRequest, ""},
		{"?address=169.254.169.254", token, http.StatusBadRequest, ""},
		{"?address=play.example:8080", token, http.StatusBadRequest, ""},
		{"", token, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		w := env.do(http.MethodGet, "/api/ping"+tt.query, "", tt.token)
		if w.Code != tt.code {
			t.Fatalf("%s: status %d", tt.query, w.Code)
		}
		if tt.want != "" {
			var body map[string]string
			decode(t, w, &body)
			if body["status"] != tt.want {
				t.Fatalf("%s: got %q", tt.query, body["status"])
			}
		}
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w := env.do(http.MethodGet, "/pricing", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pricing: %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Standard", "$10.00", "Most popular", "Europe (Frankfurt)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("pricing page missing %q", want)
		}
	}
	if strings.Contains(body, "Asia Pacific") {
		t.Fatal("unavailable region listed on pricing page")
	}

	for _, path := range []string{"/", "/terms", "/privacy"} {
		if w := env.do(http.MethodGet, path, "", ""); w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		plan models.Plan
		want string
	}{
		{models.Plan{Amount: 1000, Currency: "usd"}, "$10.00"},
		{models.Plan{Amount: 1999, Currency: "EUR"}, "€19.99"},
		{models.Plan{Amount: 5, Currency: "jpy"}, "JPY 0.05"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.plan); got != tt.want {
			t.Fatalf("formatPrice(%+v) = %q, want %q", tt.plan, got, tt.want)
		}
	}
}
