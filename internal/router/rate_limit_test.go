package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRateLimitContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"
	return c
}

func TestKeyByIPAndJSONFieldRestoresBody(t *testing.T) {
	c := newRateLimitContext(`{"email":" Donor@PawPledge.test ","password":"x"}`)

	key := KeyByIPAndJSONField("email")(c)
	if key != "donor@pawpledge.test|1.2.3.4" {
		t.Fatalf("key want donor@pawpledge.test|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "Donor@PawPledge.test") {
		t.Fatalf("request body should be restored for the handler, got %s", body)
	}
}

func TestKeyByIPAndJSONFieldFallsBackToIP(t *testing.T) {
	cases := map[string]string{
		"missing field":  `{"password":"x"}`,
		"non string":     `{"email":42}`,
		"malformed json": `{"email":`,
		"empty body":     ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if key := KeyByIPAndJSONField("email")(newRateLimitContext(body)); key != "1.2.3.4" {
				t.Fatalf("key want 1.2.3.4 got %s", key)
			}
		})
	}
}

func TestRateLimitMiddlewarePassesThroughWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rules := []RateLimitRule{
		{WindowSeconds: 60, MaxRequests: 1},
		{WindowSeconds: 0, MaxRequests: 5},
	}
	for _, rule := range rules {
		r := gin.New()
		r.Use(RateLimitMiddleware(nil, rule, KeyByIP))
		r.POST("/checkout", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("expected pass-through, got %d %s", w.Code, w.Body.String())
		}
	}
}

func TestRateLimitMessage(t *testing.T) {
	got := rateLimitMessage(RateLimitRule{Message: "too many checkout attempts"}, 30)
	if got != "too many checkout attempts, retry in 30 seconds" {
		t.Fatalf("unexpected message: %s", got)
	}
	if got := rateLimitMessage(RateLimitRule{}, 1); got != "too many requests, retry in 1 seconds" {
		t.Fatalf("unexpected default message: %s", got)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "int32", input: int32(-1), want: -1, ok: true},
		{name: "uint64", input: uint64(14), want: 14, ok: true},
		{name: "uint8", input: uint8(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
		{name: "nil", input: nil, want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("want (%d,%v) got (%d,%v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}
