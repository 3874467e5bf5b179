package clock

import (
	"testing"
	"time"
)

func TestSystemNow(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", now.Location())
	}
	if now.Nanosecond()%1000 != 0 {
		t.Errorf("expected microsecond precision, got %v", now)
	}
	if d := time.Since(now); d < 0 || d > time.Minute {
		t.Errorf("Now is off by %v", d)
	}
}
