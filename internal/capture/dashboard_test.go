package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o, err := Options{URL: "http://x/dashboard", OutputPath: "/tmp/x.png"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeoutSec*time.Second {
		t.Errorf("defaults = %+v", o)
	}

	o, _ = Options{URL: "u", OutputPath: "p", Width: 800, Height: 600, Timeout: time.Second}.withDefaults()
	if o.Width != 800 || o.Height != 600 || o.Timeout != time.Second {
		t.Errorf("explicit values overwritten: %+v", o)
	}
}

func TestDashboardPNGRequiresURLAndOutput(t *testing.T) {
	if err := DashboardPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Error("expected error without URL")
	}
	if err := DashboardPNG(context.Background(), Options{URL: "http://127.0.0.1/dashboard"}); err == nil {
		t.Error("expected error without output path")
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/dashboard"},
		{":8080", "http://127.0.0.1:8080/dashboard"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/dashboard"},
		{"[::]:9000", "http://127.0.0.1:9000/dashboard"},
		{"meetlens.local:80", "http://meetlens.local:80/dashboard"},
	}
	for _, tt := range tests {
		if got := DashboardURL(tt.listen); got != tt.want {
			t.Errorf("DashboardURL(%q) = %q, want %q", tt.listen, got, tt.want)
		}
	}
}
