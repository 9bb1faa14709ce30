package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewMetricsCollector()
	ctr := c.Counter("test_total", "A test counter", "")

	ctr.Inc()
	ctr.Add(4)
	if got := ctr.Value(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestCounter_SameKeyReturnsSameCounter(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("test_total", "A test counter", `kind="x"`)
	b := c.Counter("test_total", "A test counter", `kind="x"`)
	if a != b {
		t.Error("expected same counter instance for same name and labels")
	}

	other := c.Counter("test_total", "A test counter", `kind="y"`)
	if a == other {
		t.Error("expected distinct counters for distinct label sets")
	}
}

func TestHistogram(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("test_seconds", "A test histogram", []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	if h.count != 3 {
		t.Errorf("expected count 3, got %d", h.count)
	}
	if h.sum != 103.5 {
		t.Errorf("expected sum 103.5, got %f", h.sum)
	}
	// 0.5 lands in all buckets, 3 in le=5 and le=10, 100 in none.
	want := []int64{1, 2, 2}
	for i, b := range h.buckets {
		if b.count != want[i] {
			t.Errorf("bucket le=%g: expected %d, got %d", b.le, want[i], b.count)
		}
	}
}

func TestHandler(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("relay_events_total", "Events by kind", `kind="new_message"`).Add(3)
	c.Histogram("relay_wait_seconds", "Wait time", []float64{1, 10}).Observe(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler()(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE relay_events_total counter",
		`relay_events_total{kind="new_message"} 3`,
		"# TYPE relay_wait_seconds histogram",
		`relay_wait_seconds_bucket{le="10"} 1`,
		"relay_wait_seconds_count 1",
		"instarelay_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q\n%s", want, body)
		}
	}
}
