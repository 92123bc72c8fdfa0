package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCheckoutCounters(t *testing.T) {
	m := NewCheckout()
	m.Attempts.WithLabelValues("completed").Inc()
	m.UnitsSold.Add(2)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics code %v", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `pharmapos_checkout_attempts_total{outcome="completed"} 1`) {
		t.Fatalf("attempts counter missing:\n%s", body)
	}
	if !strings.Contains(body, "pharmapos_checkout_units_sold_total 2") {
		t.Fatalf("units counter missing:\n%s", body)
	}
}
