package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ResellBot/internal/config"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("text") != "2 neue Treffer" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "token", ChatID: "42", APIURL: server.URL}, server.Client())
	if err := n.PublishDigest(context.Background(), "2 neue Treffer"); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}
	if err := n.PublishDigest(context.Background(), "other"); err == nil {
		t.Fatal("expected error on rejected request")
	}
}

func TestNotifierDisabledWithoutToken(t *testing.T) {
	t.Parallel()

	n := NewNotifier(config.TelegramConfig{ChatID: "42"}, nil)
	if n.Enabled() {
		t.Fatal("notifier without token must be disabled")
	}
	if err := n.PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
