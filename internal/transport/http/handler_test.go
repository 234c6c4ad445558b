package http

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?limit=5&neg=-3&junk=abc&huge=99999999999999999999999", nil)

	if got := queryInt(c, "limit", 20); got != 5 {
		t.Fatalf("limit = %d, want 5", got)
	}
	if got := queryInt(c, "missing", 20); got != 20 {
		t.Fatalf("missing = %d, want default 20", got)
	}
	if got := queryInt(c, "neg", 20); got != 20 {
		t.Fatalf("neg = %d, want default 20", got)
	}
	if got := queryInt(c, "junk", 20); got != 20 {
		t.Fatalf("junk = %d, want default 20", got)
	}
	// переполнение int не должно протекать в лимит запроса
	if got := queryInt(c, "huge", 20); got != 20 {
		t.Fatalf("huge = %d, want default 20", got)
	}
}
