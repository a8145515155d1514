package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

func serveError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		RespondServiceError(c, err)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var body map[string]interface{}
	if decodeErr := json.Unmarshal(w.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode body failed: %v", decodeErr)
	}
	return w.Code, body
}

func TestRespondServiceErrorUnknownError(t *testing.T) {
	code, body := serveError(t, errors.New("db exploded"))
	if code != http.StatusInternalServerError {
		t.Fatalf("want 500 got %d", code)
	}
	if body["code"] != "internal_server_error" {
		t.Fatalf("unexpected code: %v", body["code"])
	}
}

func TestRespondServiceErrorDomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{service.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
		{fmt.Errorf("wrap: %w", service.ErrVoucherUsageExceeded), http.StatusConflict, "voucher_usage_exceeded"},
		{service.ErrCartPaymentPending, http.StatusUnprocessableEntity, "cart_payment_pending"},
		{service.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable"},
		{service.ErrCriticalInconsistency, http.StatusInternalServerError, "critical_inconsistency"},
	}
	for _, tc := range cases {
		code, body := serveError(t, tc.err)
		if code != tc.status || body["code"] != tc.code {
			t.Fatalf("%v: want %d/%s got %d/%v", tc.err, tc.status, tc.code, code, body["code"])
		}
	}
}
