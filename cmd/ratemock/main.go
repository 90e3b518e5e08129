// cmd/ratemock/main.go
//
// ratemock is a small stand-in for the external exchange-rate API, used for
// local development and manual testing of the fallback path. It serves a
// deterministic static rate table and can be switched into rate-limited or
// failing mode at runtime.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/username/salespipe/src/logger"
)

// USD per one unit of base currency.
var usdRates = map[string]float64{
	"EUR": 1.0850,
	"GBP": 1.2700,
	"JPY": 0.0067,
	"BRL": 0.1840,
	"CHF": 1.1050,
	"USD": 1.0,
}

type mockState struct {
	mu          sync.Mutex
	rateLimited bool
	failing     bool
}

func (s *mockState) set(rateLimited, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = rateLimited
	s.failing = failing
}

func (s *mockState) snapshot() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited, s.failing
}

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.InitLogger(logLevel)

	port := os.Getenv("RATEMOCK_PORT")
	if port == "" {
		port = "8091"
	}

	state := &mockState{}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/rates", func(w http.ResponseWriter, req *http.Request) {
		rateLimited, failing := state.snapshot()
		if rateLimited {
			w.Header().Set("Retry-After", "1200")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		if failing {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		base := req.URL.Query().Get("base")
		date := req.URL.Query().Get("date")
		rate, ok := usdRates[base]
		if !ok {
			http.Error(w, "unknown base currency", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"base":  base,
			"date":  date,
			"rates": map[string]float64{"USD": rate},
		})
	})

	// Runtime toggles for exercising the client's 429 and failure handling:
	//   POST /admin/mode?ratelimited=true
	//   POST /admin/mode?failing=true
	r.Post("/admin/mode", func(w http.ResponseWriter, req *http.Request) {
		rateLimited, _ := strconv.ParseBool(req.URL.Query().Get("ratelimited"))
		failing, _ := strconv.ParseBool(req.URL.Query().Get("failing"))
		state.set(rateLimited, failing)
		logger.L.Info("ratemock mode changed", "rateLimited", rateLimited, "failing", failing)
		w.WriteHeader(http.StatusNoContent)
	})

	logger.L.Info("ratemock listening", "port", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.L.Error("ratemock server stopped", "error", err)
		os.Exit(1)
	}
}
