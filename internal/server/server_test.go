package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/geostamp/pkg/annotate"
	"github.com/menta2k/geostamp/pkg/codec"
	"github.com/menta2k/geostamp/pkg/pipeline"
)

// Test server setup
func setupTestServer() *httptest.Server {
	p := pipeline.New(annotate.New(),
		pipeline.WithLogger(log.New(io.Discard, "", 0)),
		pipeline.WithClock(func() time.Time { return time.Date(2024, 5, 6, 18, 30, 0, 0, time.UTC) }),
	)
	return httptest.NewServer(NewServer(p, "1.0.0-test", 0).Router(30 * time.Second))
}

func photo(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 160, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func postStamp(t *testing.T, url string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("image", "capture.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/v1/stamp", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0-test", health.Version)
	assert.GreaterOrEqual(t, health.Uptime, 0)
	assert.WithinDuration(t, time.Now(), health.Timestamp, time.Minute)
}

func TestLegacyHealthRedirect(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/api/v1/health", resp.Header.Get("Location"))
}

func TestStampEndpoint_Success(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp := postStamp(t, server.URL, photo(t, 600, 800), map[string]string{
		"address": "Piazza San Marco, Venice",
		"lat":     "45.4341",
		"lng":     "12.3388",
		"facing":  "front",
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "annotated", resp.Header.Get("X-Annotation"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	img, format, err := codec.New().DecodeReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 600, 800), img.Bounds())
}

func TestStampEndpoint_NoLocation(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp := postStamp(t, server.URL, photo(t, 300, 200), map[string]string{"timestamp": "2024-05-06T07:08:09Z"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "annotated", resp.Header.Get("X-Annotation"))
}

func TestStampEndpoint_ValidationErrors(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	tests := []struct {
		name   string
		image  bool
		fields map[string]string
		code   string
	}{
		{"missing image", false, map[string]string{"address": "x"}, "MISSING_IMAGE"},
		{"bad lat", true, map[string]string{"lat": "north", "lng": "1"}, "VALIDATION_ERROR"},
		{"lat out of range", true, map[string]string{"lat": "91", "lng": "1"}, "VALIDATION_ERROR"},
		{"lat without lng", true, map[string]string{"lat": "1"}, "VALIDATION_ERROR"},
		{"bad facing", true, map[string]string{"facing": "sideways"}, "VALIDATION_ERROR"},
		{"bad timestamp", true, map[string]string{"timestamp": "yesterday"}, "VALIDATION_ERROR"},
		{"bad map flag", true, map[string]string{"map": "perhaps"}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var img []byte
			if tt.image {
				img = photo(t, 40, 30)
			}
			resp := postStamp(t, server.URL, img, tt.fields)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			e := decodeError(t, resp)
			assert.Equal(t, tt.code, e.Error)
			assert.NotEmpty(t, e.RequestID)
		})
	}
}

func TestStampEndpoint_Undecodable(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp := postStamp(t, server.URL, []byte("this is not a photo"), nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "UNDECODABLE_IMAGE", decodeError(t, resp).Error)
}

func TestStampEndpoint_NotMultipart(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/stamp", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_FORM", decodeError(t, resp).Error)
}
