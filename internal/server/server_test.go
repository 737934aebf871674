package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/helmetgate/internal/config"
	"github.com/smartdevs17/helmetgate/internal/metrics"
	"github.com/smartdevs17/helmetgate/internal/models"
	"github.com/smartdevs17/helmetgate/internal/storage"
	"github.com/smartdevs17/helmetgate/internal/uploads"
	"github.com/smartdevs17/helmetgate/pkg/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHardware struct {
	mu     sync.Mutex
	base   string
	action models.GateAction
	status *models.HardwareStatus
	err    error
}

func (f *fakeHardware) Status(ctx context.Context, base string) (*models.HardwareStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.base = base
	return f.status, f.err
}

func (f *fakeHardware) Gate(ctx context.Context, base string, action models.GateAction) (*models.GateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.base, f.action = base, action
	if f.err != nil {
		return nil, f.err
	}
	return &models.GateResponse{Success: true, Message: "ok", GateStatus: string(action) + "ed"}, nil
}

func (f *fakeHardware) lastCall() (string, models.GateAction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base, f.action
}

func (f *fakeHardware) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeWeather struct {
	mu       sync.Mutex
	forecast *models.WeatherForecast
	err      error
}

func (f *fakeWeather) Forecast(ctx context.Context) (*models.WeatherForecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forecast, f.err
}

func (f *fakeWeather) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecast, f.err = nil, err
}

type testEnv struct {
	srv      *httptest.Server
	api      *HTTPServer
	store    storage.Storage
	fs       afero.Fs
	hardware *fakeHardware
	weather  *fakeWeather
}

func newTestEnv(t *testing.T, mutate ...func(*ServerConfig)) *testEnv {
	t.Helper()

	store, err := storage.Open(&config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "api.db"),
		MaxConnections:   4,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fs := afero.NewMemMapFs()
	hw := &fakeHardware{status: &models.HardwareStatus{IsOnline: true, GateStatus: "closed", ModelLoaded: true}}
	wx := &fakeWeather{forecast: &models.WeatherForecast{Timezone: "Asia/Bangkok", Description: "Clear sky"}}

	cfg := &ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		EnableMetrics:  true,
		EnableHealth:   true,
		CORSOrigins:    []string{"*"},
		MaxPageSize:    100,
		MaxUploadBytes: 1 << 20,
		Version:        "test",
	}
	for _, m := range mutate {
		m(cfg)
	}

	api, err := NewHTTPServer(cfg, Dependencies{
		Storage:        store,
		Uploads:        uploads.NewStore(fs, "/data/uploads", "/uploads"),
		Hardware:       hw,
		Weather:        wx,
		MetricsManager: metrics.NewManager(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, api: api, store: store, fs: fs, hardware: hw, weather: wx}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func (e *testEnv) upload(t *testing.T, field, name, content string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.srv.URL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"isOnline": true}, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPreflightIsAnswered(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/config", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestLogsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, env.store.SaveLog(ctx, &models.LogEntry{
			IsOpen:    i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	t.Run("defaults", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/logs", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := body["data"].([]interface{})
		assert.Len(t, data, 10)
		pagination := body["pagination"].(map[string]interface{})
		assert.Equal(t, 1.0, pagination["page"])
		assert.Equal(t, 10.0, pagination["limit"])
		assert.Equal(t, 25.0, pagination["total"])
		assert.Equal(t, 3.0, pagination["totalPages"])

		first := data[0].(map[string]interface{})
		second := data[1].(map[string]interface{})
		assert.Greater(t, first["createdAt"].(string), second["createdAt"].(string))
		assert.Contains(t, first, "image")
		assert.Nil(t, first["image"])
	})

	t.Run("last page", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/logs?page=3&limit=10", nil)
		assert.Len(t, body["data"].([]interface{}), 5)
	})

	t.Run("beyond last page", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/logs?page=7&limit=10", nil)
		assert.Empty(t, body["data"].([]interface{}))
		assert.Equal(t, 25.0, body["pagination"].(map[string]interface{})["total"])
	})

	t.Run("limit is capped", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/logs?limit=1000", nil)
		assert.Equal(t, 100.0, body["pagination"].(map[string]interface{})["limit"])
		assert.Len(t, body["data"].([]interface{}), 25)
	})

	t.Run("largest page that fits", func(t *testing.T) {
		page := math.MaxInt/20 + 1
		resp, body := env.do(t, http.MethodGet, fmt.Sprintf("/logs?page=%d&limit=20", page), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body["data"].([]interface{}))
	})

	for _, query := range []string{"page=0", "page=-1", "page=abc", "limit=0", "limit=x",
		"page=922337203685477581&limit=20", fmt.Sprintf("page=%d&limit=100", math.MaxInt)} {
		t.Run("rejects "+query, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/logs?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, utils.ErrCodeValidation, body["code"])
			assert.Equal(t, "Invalid query parameters", body["error"])
		})
	}
}

func TestCreateLogThenList(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/logs", map[string]interface{}{
		"image":  "/uploads/1714550400000-rider.jpg",
		"isOpen": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	created := body["data"].(map[string]interface{})
	assert.True(t, utils.IsValidID(created["id"].(string)))
	assert.Equal(t, true, created["isOpen"])
	assert.Equal(t, "/uploads/1714550400000-rider.jpg", created["image"])

	_, list := env.do(t, http.MethodGet, "/logs?page=1&limit=5", nil)
	first := list["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, created["id"], first["id"])
	assert.Equal(t, created["image"], first["image"])
}

func TestCreateLogValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]interface{}{
		"missing isOpen":    map[string]interface{}{"image": "x"},
		"string isOpen":     map[string]interface{}{"isOpen": "yes"},
		"non-string image":  map[string]interface{}{"isOpen": true, "image": 12},
		"malformed json":    "{",
		"empty json object": map[string]interface{}{},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, decoded := env.do(t, http.MethodPost, "/logs", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, utils.ErrCodeValidation, decoded["code"])
			assert.NotEmpty(t, decoded["error"])
		})
	}

	count, err := env.store.GetLogCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConfigScenario(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/config", nil)
	assert.Contains(t, body, "data")
	assert.Nil(t, body["data"])

	resp, body := env.do(t, http.MethodPost, "/config", map[string]string{"webhookUrl": "http://10.0.0.5:8000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	created := body["data"].(map[string]interface{})
	assert.Equal(t, "http://10.0.0.5:8000", created["webhookUrl"])
	assert.NotEmpty(t, created["id"])

	_, body = env.do(t, http.MethodGet, "/config", nil)
	assert.Equal(t, created, body["data"])

	_, body = env.do(t, http.MethodPost, "/config", map[string]string{"webhookUrl": "http://10.0.0.6:8000"})
	updated := body["data"].(map[string]interface{})
	assert.Equal(t, created["id"], updated["id"])
	assert.Equal(t, "http://10.0.0.6:8000", updated["webhookUrl"])
}

func TestConfigConcurrentPosts(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf(`{"webhookUrl":"http://10.0.0.%d:8000"}`, i+1)
			resp, err := http.Post(env.srv.URL+"/config", "application/json", strings.NewReader(payload))
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	stats, err := env.store.GetStorageStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.ConfigPresent)

	_, body := env.do(t, http.MethodGet, "/config", nil)
	cfg := body["data"].(map[string]interface{})
	assert.Regexp(t, `^http://10\.0\.0\.[1-6]:8000$`, cfg["webhookUrl"])
}

func TestConfigValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []interface{}{
		map[string]string{},
		map[string]string{"webhookUrl": ""},
		map[string]string{"webhookUrl": "not a url"},
		map[string]string{"webhookUrl": "ftp://10.0.0.5"},
		map[string]interface{}{"webhookUrl": 5},
	} {
		resp, decoded := env.do(t, http.MethodPost, "/config", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, utils.ErrCodeValidation, decoded["code"])
	}

	_, decoded := env.do(t, http.MethodGet, "/config", nil)
	assert.Nil(t, decoded["data"])
}

func TestUploadThenLogRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.upload(t, "file", "rider.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	path := body["path"].(string)
	assert.Regexp(t, `^/uploads/\d+-rider\.jpg$`, path)

	exists, err := afero.Exists(env.fs, "/data/uploads/"+strings.TrimPrefix(path, "/uploads/"))
	require.NoError(t, err)
	assert.True(t, exists)

	served, err := http.Get(env.srv.URL + path)
	require.NoError(t, err)
	content, _ := io.ReadAll(served.Body)
	served.Body.Close()
	assert.Equal(t, http.StatusOK, served.StatusCode)
	assert.Equal(t, "jpeg-bytes", string(content))

	_, created := env.do(t, http.MethodPost, "/logs", map[string]interface{}{"image": path, "isOpen": false})
	_, list := env.do(t, http.MethodGet, "/logs", nil)
	first := list["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, path, first["image"])
	assert.Equal(t, created["data"].(map[string]interface{})["id"], first["id"])
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, func(c *ServerConfig) { c.MaxUploadBytes = 1024 })

	resp, body := env.upload(t, "image", "rider.jpg", "x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file provided", body["error"])

	resp, body = env.do(t, http.MethodPost, "/upload", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file provided", body["error"])

	resp, body = env.upload(t, "file", "big.jpg", strings.Repeat("a", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "Failed to upload file", body["error"])
	assert.Equal(t, utils.ErrCodeUpload, body["code"])
}

func TestHardwareEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/hardware/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Webhook URL is not configured", body["error"])
	assert.Equal(t, utils.ErrCodeConfiguration, body["code"])

	_, err := env.store.UpsertConfig(context.Background(), "http://10.0.0.5:5000")
	require.NoError(t, err)

	resp, body = env.do(t, http.MethodGet, "/api/hardware/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["is_online"])
	base, _ := env.hardware.lastCall()
	assert.Equal(t, "http://10.0.0.5:5000", base)

	resp, body = env.do(t, http.MethodPost, "/api/hardware/gate", map[string]string{"action": "open"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	_, action := env.hardware.lastCall()
	assert.Equal(t, models.GateActionOpen, action)

	resp, body = env.do(t, http.MethodPost, "/api/hardware/gate", map[string]string{"action": "lock"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, utils.ErrCodeValidation, body["code"])

	env.hardware.fail(utils.NewAppError(utils.ErrCodeConnection, "Failed to reach hardware", "refused"))
	resp, body = env.do(t, http.MethodGet, "/api/hardware/status", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, utils.ErrCodeConnection, body["code"])
}

func TestStreamProxy(t *testing.T) {
	camera := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream.mjpg", r.URL.Path)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\nJPEG\r\n"))
	}))
	defer camera.Close()

	env := newTestEnv(t)
	_, err := env.store.UpsertConfig(context.Background(), camera.URL+"/")
	require.NoError(t, err)

	resp, err := http.Get(env.srv.URL + "/api/hardware/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "--frame\r\nContent-Type: image/jpeg\r\n\r\nJPEG\r\n", string(raw))
}

func TestStreamEndsOnStop(t *testing.T) {
	camera := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Write([]byte("--frame\r\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer camera.Close()

	env := newTestEnv(t)
	_, err := env.store.UpsertConfig(context.Background(), camera.URL)
	require.NoError(t, err)

	resp, err := http.Get(env.srv.URL + "/api/hardware/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	first := make([]byte, len("--frame\r\n"))
	_, err = io.ReadFull(resp.Body, first)
	require.NoError(t, err)

	require.NoError(t, env.api.Stop(context.Background()))

	done := make(chan struct{})
	go func() {
		io.Copy(io.Discard, resp.Body)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream still open after Stop")
	}
}

func TestWeatherAndDashboard(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/weather", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Clear sky", body["data"].(map[string]interface{})["description"])

	resp, body = env.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["isOnline"])
	assert.Nil(t, body["hardware"])
	assert.Contains(t, body["hardwareError"], "Webhook URL is not configured")
	assert.NotNil(t, body["weather"])

	env.weather.fail(utils.NewAppError(utils.ErrCodeExternal, "Weather service returned non-success status", ""))
	resp, body = env.do(t, http.MethodGet, "/api/weather", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Failed to fetch weather", body["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/health/detailed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["components"], "storage")

	resp, _ = env.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(metricsResp.Body)
	metricsResp.Body.Close()
	assert.Contains(t, string(raw), "helmetgate_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, utils.ErrCodeNotFound, body["code"])
}
