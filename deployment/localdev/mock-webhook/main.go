// Command mock-webhook is a local stand-in for an alert webhook endpoint.
// It prints every notification it receives and answers 200, so pulse-engine
// can be pointed at it during development:
//
//	PROMPTPULSE_WEBHOOK_URL=http://localhost:9090/alerts pulse-engine serve
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

type notification struct {
	RuleID      string    `json:"rule_id"`
	RuleName    string    `json:"rule_name"`
	Kind        string    `json:"kind"`
	EventID     string    `json:"event_id"`
	Message     string    `json:"message"`
	Value       float64   `json:"value"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read failed", http.StatusBadRequest)
			return
		}
		var note notification
		if err := json.Unmarshal(body, &note); err != nil {
			log.Printf("received non-notification payload: %s", body)
		} else {
			log.Printf("alert %s rule=%q kind=%s value=%.4f message=%q",
				note.EventID, note.RuleName, note.Kind, note.Value, note.Message)
		}
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("mock webhook listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
