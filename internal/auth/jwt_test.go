package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mangamirror/internal/auth"
)

func testTokens() auth.TokenService {
	return auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "mangamirror",
		Duration: time.Hour,
	}
}

func TestSignParseRoundTrip(t *testing.T) {
	ts := testTokens()

	token, exp, err := ts.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("expiry too close: %v", exp)
	}

	claims, err := ts.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "admin" || claims.Issuer != "mangamirror" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := testTokens().Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other := testTokens()
	other.Secret = []byte("different-secret")
	if _, err := other.Parse(token); err == nil {
		t.Fatal("token verified against the wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	ts := testTokens()
	ts.Duration = -time.Minute

	token, _, err := ts.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ts.Parse(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := testTokens()

	r := gin.New()
	r.GET("/guarded", auth.Middleware(ts), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do(""); code != http.StatusUnauthorized {
		t.Errorf("no header: %d", code)
	}
	if code := do("Basic dXNlcg=="); code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: %d", code)
	}
	if code := do("Bearer garbage"); code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", code)
	}

	token, _, err := ts.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code := do("Bearer " + token); code != http.StatusNoContent {
		t.Errorf("valid token: %d", code)
	}
}
