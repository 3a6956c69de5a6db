package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"meetlens/internal/model"
	"meetlens/internal/stats"
)

func sampleDigest() Digest {
	s := model.Statistics{
		Total:           1234,
		TotalDuration:   95,
		AverageDuration: 47.5,
		ByColor:         model.ColorBreakdown{Red: 1000, Green: 200, Blue: 30, Default: 4},
		WeeklyFrequency: 3.25,
		BusiestDays:     []model.DayCount{{Date: "2024-01-16", Count: 4}},
		BusiestHours:    []model.HourCount{{Hour: 9, Count: 5}},
	}
	return Digest{
		From:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC),
		Source: "outlook",
		Stats:  s,
		Shares: stats.Shares(s),
	}
}

func TestFormatDigest(t *testing.T) {
	msg := FormatDigest(sampleDigest(), time.UTC)
	for _, want := range []string{
		"*Bilan des réunions*",
		"15/01/2024 → 21/01/2024 \\(outlook\\)",
		"Réunions : *1,234*",
		"Durée totale : *1 h 35*",
		"Durée moyenne : 47\\.5 min",
		"🔴 No Flex : 1,000 \\(81 %\\)",
		"🟢 Flex : 200 \\(16\\.2 %\\)",
		"Jour le plus chargé : 2024\\-01\\-16 \\(4\\)",
		"Heure la plus chargée : 9h \\(5\\)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("digest missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatDigestEmpty(t *testing.T) {
	msg := FormatDigest(Digest{From: time.Now(), To: time.Now()}, time.UTC)
	if !strings.Contains(msg, "Aucune réunion sur la période\\.") {
		t.Errorf("unexpected empty digest:\n%s", msg)
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0 min"},
		{45, "45 min"},
		{60, "1 h"},
		{95, "1 h 35"},
		{60 * 1500, "1,500 h"},
	}
	for _, tt := range tests {
		if got := formatMinutes(tt.in); got != tt.want {
			t.Errorf("formatMinutes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeBotAPI struct {
	mu       sync.Mutex
	failures int
	sent     []http.Header
	texts    []string
	modes    []string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"meetlens","username":"meetlens_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests"}`))
			return
		}
		f.texts = append(f.texts, r.PostForm.Get("text"))
		f.modes = append(f.modes, r.PostForm.Get("parse_mode"))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestSendDigestRetries(t *testing.T) {
	api := &fakeBotAPI{failures: 2}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tg, err := NewTelegram("123:abc", "42", WithAPIEndpoint(srv.URL+"/bot%s/%s"), WithRetry(3, 0), WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("NewTelegram failed: %v", err)
	}
	if err := tg.SendDigest(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}
	if len(api.texts) != 1 || !strings.Contains(api.texts[0], "Bilan des réunions") {
		t.Errorf("texts = %q", api.texts)
	}
	if api.modes[0] != "MarkdownV2" {
		t.Errorf("parse_mode = %q", api.modes[0])
	}
}

func TestSendDigestGivesUp(t *testing.T) {
	api := &fakeBotAPI{failures: 10}
	srv := httptest.NewServer(api)
	defer srv.Close()

	tg, err := NewTelegram("123:abc", "42", WithAPIEndpoint(srv.URL+"/bot%s/%s"), WithRetry(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	err = tg.SendDigest(context.Background(), sampleDigest())
	if err == nil || !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("err = %v", err)
	}
	if api.failures != 8 {
		t.Errorf("attempts = %d, want 2", 10-api.failures)
	}
}

func TestNewTelegramRejectsBadChatID(t *testing.T) {
	if _, err := NewTelegram("123:abc", "not-a-number"); err == nil {
		t.Error("expected error")
	}
}
