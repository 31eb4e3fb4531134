package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/WossMusic/woss-royalties/internal/logging"
)

type notification struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	Recipient      string            `json:"recipient"`
	Channel        string            `json:"channel"`
	Event          string            `json:"event"`
	Data           map[string]string `json:"data"`
}

func main() {
	logging.Init("mock-notifier", "info", os.Getenv("APP_ENV"))

	addr := ":8081"
	if v := os.Getenv("MOCK_NOTIFIER_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /notifications", func(w http.ResponseWriter, r *http.Request) {
		var n notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, "invalid notification payload", http.StatusBadRequest)
			return
		}
		if n.NotificationID == "" || n.Event == "" {
			http.Error(w, "notification_id and event are required", http.StatusBadRequest)
			return
		}

		slog.Info("notification received",
			"notification_id", n.NotificationID,
			"event", n.Event,
			"channel", n.Channel,
			"user_id", n.UserID,
			"recipient", n.Recipient,
			"data", n.Data,
		)
		w.WriteHeader(http.StatusAccepted)
	})

	slog.Info("mock notifier started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
