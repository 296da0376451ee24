package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/fridgescan/internal/camera"
	"github.com/vbonduro/fridgescan/internal/events"
	"github.com/vbonduro/fridgescan/internal/kvstore"
	"github.com/vbonduro/fridgescan/internal/metrics"
	"github.com/vbonduro/fridgescan/internal/product/openfoodfacts"
	"github.com/vbonduro/fridgescan/internal/service"
	"github.com/vbonduro/fridgescan/internal/store"
	"github.com/vbonduro/fridgescan/internal/web"
	"github.com/vbonduro/fridgescan/internal/web/templates"
)

// productAPI fakes the product database: codes in names are found, the rest
// are unknown.
func productAPI(t *testing.T, names map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v0/product/"), ".json")
		name, ok := names[code]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			// The live API may send the not-found body with a 404.
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `{"status":0,"code":%q,"status_verbose":"product not found"}`, code)
			return
		}
		_, _ = fmt.Fprintf(w, `{"status":1,"code":%q,"product":{"product_name":%q}}`, code, name)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// attachedScanner is a camera device layer whose decoder emits the codes
// pushed into reads.
type attachedScanner struct {
	accessErr error
	reads     chan string
}

func (a *attachedScanner) Supported() bool { return true }

func (a *attachedScanner) SecureContext() bool { return true }

func (a *attachedScanner) RequestAccess(context.Context) error { return a.accessErr }

func (a *attachedScanner) VideoInputs(context.Context) ([]camera.Device, error) {
	return []camera.Device{{ID: "/dev/ttyACM0", Label: "scanner"}}, nil
}

func (a *attachedScanner) Start(ctx context.Context, _ string, fn func(string, error)) (<-chan error, error) {
	done := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case code := <-a.reads:
				fn(code, nil)
			}
		}
	}()
	return done, nil
}

type testEnv struct {
	srv     *httptest.Server
	bus     *events.Bus
	items   *store.ItemStore
	scanner *attachedScanner
}

func newTestEnv(t *testing.T, withScanner bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	api := productAPI(t, map[string]string{"3017620422003": "Nutella"})
	items := store.NewItemStore(kvstore.NewMemory())
	shopping := store.NewShoppingStore(kvstore.NewMemory())
	bus := events.NewBus(logger)
	m := metrics.New()
	svc := service.NewPantryService(items, shopping, openfoodfacts.NewClient(api.URL), bus, m, logger)

	env := &testEnv{bus: bus, items: items}
	var ctrl *camera.Controller
	if withScanner {
		env.scanner = &attachedScanner{reads: make(chan string)}
		ctrl = camera.NewController(env.scanner, env.scanner, logger, svc.CameraOptions(time.Second))
		t.Cleanup(ctrl.Stop)
	}

	env.srv = httptest.NewServer(web.NewServer(svc, ctrl, bus, m, templates.FS, logger))
	t.Cleanup(env.srv.Close)
	return env
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type item struct {
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	Label   string `json:"label"`
}

type shoppingView struct {
	Name  string `json:"name"`
	Owned bool   `json:"owned"`
}

func TestIntegration_IndexPage(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="start-scan"`)
	// httptest listens on 127.0.0.1, which browsers treat as secure.
	assert.NotContains(t, string(body), `id="insecure"`)
	assert.NotContains(t, string(body), `id="start-attached"`)
}

func TestIntegration_IndexPageHandlesBrowserFailures(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(raw)

	report := scriptFunction(t, page, "reportError")
	assert.Contains(t, report, "catch (")
	assert.Contains(t, report, "finally {")
	assert.Contains(t, report, "startBtn.disabled = false", "the start control is re-enabled on every path")
	assert.Less(t, strings.Index(report, "finally {"), strings.Index(report, "startBtn.disabled = false"))

	submit := scriptFunction(t, page, "submit")
	assert.Contains(t, submit, "res.ok")
	assert.Contains(t, submit, "catch (")
	assert.Contains(t, submit, "setStatus(")

	assert.Contains(t, page, "(result, err) =>")
	assert.Contains(t, page, "ZXing.NotFoundException")
	assert.Contains(t, page, "await reportError(err)")
}

// scriptFunction returns the source of the async function name in page, up to
// the next function declaration.
func scriptFunction(t *testing.T, page, name string) string {
	t.Helper()
	start := strings.Index(page, "async function "+name+"(")
	require.GreaterOrEqual(t, start, 0, "function %s not found", name)
	rest := page[start+len("async function "):]
	if end := strings.Index(rest, "function "); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func TestIntegration_UnknownPathIsNotFound(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.srv.URL + "/nope")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_ScanKnownProduct(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	got := decode[item](t, resp)
	assert.Equal(t, item{Name: "Nutella", Barcode: "3017620422003", Label: "Nutella — 3017620422003"}, got)
}

func TestIntegration_ScanUnknownProduct(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "0000000000000"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	got := decode[item](t, resp)
	assert.Equal(t, "Unknown product (0000000000000)", got.Name)
	assert.Len(t, env.items.List(), 1)
}

func TestIntegration_ScanFormEncoded(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.PostForm(env.srv.URL+"/api/scans", url.Values{"code": {" 3017620422003 "}})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "3017620422003", decode[item](t, resp).Barcode)
}

func TestIntegration_ScanRejectsEmptyCode(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.items.List())
}

func TestIntegration_ScanRejectsOversizedCode(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": strings.Repeat("Q", 129)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "code too long")
	assert.Empty(t, env.items.List())
}

func TestIntegration_ScanRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Post(env.srv.URL+"/api/scans", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_SearchItems(t *testing.T) {
	env := newTestEnv(t, false)
	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})
	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "123"})

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"Unknown product (123)", "Nutella"}},
		{query: "nut", want: []string{"Nutella"}},
		{query: "NUT", want: []string{"Nutella"}},
		{query: "zzz", want: nil},
	}
	for _, tt := range tests {
		t.Run("q="+tt.query, func(t *testing.T) {
			resp, err := http.Get(env.srv.URL + "/api/items?q=" + url.QueryEscape(tt.query))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var names []string
			for _, it := range decode[[]item](t, resp) {
				names = append(names, it.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestIntegration_SearchItemsHTMXPartial(t *testing.T) {
	env := newTestEnv(t, false)
	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/items?q=nut", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<ul id="my-items-list">`)
	assert.Contains(t, string(body), "<li>Nutella</li>")
}

func TestIntegration_ShoppingList(t *testing.T) {
	env := newTestEnv(t, false)
	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})

	resp := postJSON(t, env.srv.URL+"/api/shopping", map[string]string{"name": "nutella"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = postJSON(t, env.srv.URL+"/api/shopping", map[string]string{"name": "Bread"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got, err := http.Get(env.srv.URL + "/api/shopping")
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	assert.Equal(t, []shoppingView{
		{Name: "nutella", Owned: true},
		{Name: "Bread", Owned: false},
	}, decode[[]shoppingView](t, got))
}

func TestIntegration_ShoppingIgnoresBlank(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postJSON(t, env.srv.URL+"/api/shopping", map[string]string{"name": "   "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]shoppingView](t, resp))
}

func TestIntegration_ShoppingHTMXForm(t *testing.T) {
	env := newTestEnv(t, false)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/shopping",
		strings.NewReader(url.Values{"name": {"Eggs"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<li>Eggs</li>")
}

func TestIntegration_CameraErrorClassification(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name     string
		wantKind string
		wantMsg  string
	}{
		{"NotAllowedError", "permission_denied", camera.KindPermissionDenied.Message()},
		{"NotFoundError", "no_camera", camera.KindNoCamera.Message()},
		{"NotReadableError", "camera_in_use", camera.KindCameraInUse.Message()},
		{"SecurityError", "insecure_context", camera.KindInsecureContext.Message()},
		{"WeirdError", "unexpected", "Camera error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, env.srv.URL+"/api/camera/errors", map[string]string{"name": tt.name, "message": "boom"})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			got := decode[struct {
				Kind    string `json:"kind"`
				Message string `json:"message"`
			}](t, resp)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestIntegration_CameraWithoutScanner(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/api/camera/start", "/api/camera/stop"} {
		resp := postJSON(t, env.srv.URL+path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
	resp, err := http.Get(env.srv.URL + "/api/camera")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type cameraState struct {
	State     string `json:"state"`
	Status    string `json:"status"`
	CanStart  bool   `json:"can_start"`
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
	SessionID string `json:"session_id"`
	DeviceID  string `json:"device_id"`
}

func TestIntegration_AttachedScannerLifecycle(t *testing.T) {
	env := newTestEnv(t, true)

	resp := postJSON(t, env.srv.URL+"/api/camera/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[cameraState](t, resp)
	assert.Equal(t, "decoding", started.State)
	assert.Equal(t, camera.StatusStarted, started.Status)
	assert.False(t, started.CanStart)
	assert.Equal(t, "/dev/ttyACM0", started.DeviceID)
	assert.NotEmpty(t, started.SessionID)

	again := postJSON(t, env.srv.URL+"/api/camera/start", nil)
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	env.scanner.reads <- "3017620422003"
	env.scanner.reads <- "3017620422003"
	require.Eventually(t, func() bool { return len(env.items.List()) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp = postJSON(t, env.srv.URL+"/api/camera/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stopped := decode[cameraState](t, resp)
	assert.Equal(t, "stopped", stopped.State)
	assert.True(t, stopped.CanStart)

	assert.Equal(t, "Nutella", env.items.List()[0].Name)
}

func TestIntegration_AttachedScannerPermissionDenied(t *testing.T) {
	env := newTestEnv(t, true)
	env.scanner.accessErr = camera.ErrPermissionDenied

	resp := postJSON(t, env.srv.URL+"/api/camera/start", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	got := decode[cameraState](t, resp)
	assert.Equal(t, "error", got.State)
	assert.Equal(t, "permission_denied", got.ErrorKind)
	assert.Equal(t, camera.KindPermissionDenied.Message(), got.Error)
	assert.True(t, got.CanStart)
}

func TestIntegration_EventStream(t *testing.T) {
	env := newTestEnv(t, false)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return env.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})

	seen := map[events.Type]events.Event{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(seen) < 2 {
		var ev events.Event
		require.NoError(t, conn.ReadJSON(&ev))
		seen[ev.Type] = ev
	}

	added := seen[events.TypeItemAdded]
	require.NotNil(t, added.Item)
	assert.Equal(t, "Nutella", added.Item.Name)
	assert.Equal(t, "Nutella — 3017620422003", added.Label)
	assert.Contains(t, seen, events.TypeShoppingChanged)
}

func TestIntegration_MetricsAndHealth(t *testing.T) {
	env := newTestEnv(t, false)
	postJSON(t, env.srv.URL+"/api/scans", map[string]string{"code": "3017620422003"})

	resp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fridgescan_scans_total 1")
	assert.Contains(t, string(body), `fridgescan_lookups_total{outcome="found"} 1`)
}
