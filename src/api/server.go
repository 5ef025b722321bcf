package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quantlab/backtest-engine/src/feed"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/signals"
	"github.com/quantlab/backtest-engine/src/store"
)

// Server exposes backtest runs over HTTP. Each request owns an independent
// run; the shared feed and signal source are read-only.
type Server struct {
	barFeed      feed.BarFeed
	signalSource signals.SignalSource
	store        *store.SQLiteStore
	config       models.BacktestConfig
	outDir       string
	resultsDB    string
}

func NewServer(barFeed feed.BarFeed, signalSource signals.SignalSource, resultsStore *store.SQLiteStore, config models.BacktestConfig, outDir, resultsDB string) *Server {
	return &Server{
		barFeed:      barFeed,
		signalSource: signalSource,
		store:        resultsStore,
		config:       config,
		outDir:       outDir,
		resultsDB:    resultsDB,
	}
}

func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/backtests", s.createBacktest).Methods("POST")
	router.HandleFunc("/backtests/{id}", s.getReport).Methods("GET")
	router.HandleFunc("/backtests/{id}/equity", s.getEquityCurve).Methods("GET")

	return router
}

func (s *Server) ListenAndServe(port int) error {
	handler := otelhttp.NewHandler(s.Routes(), "backtest-api")

	addr := fmt.Sprintf(":%d", port)
	log.Infof("backtest api listening on %s", addr)

	return http.ListenAndServe(addr, handler)
}
