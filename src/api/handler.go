package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/service"
	"github.com/quantlab/backtest-engine/src/utils"
)

var queryDecoder = schema.NewDecoder()

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("setResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := &errorResponse{Type: errType, Msg: err.Error()}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		log.Errorf("setErrorResponse: encode: %v", encodeErr)
	}
}

type CreateBacktestRequest struct {
	Ticker         string  `schema:"ticker,required"`
	Start          string  `schema:"start,required"`
	End            string  `schema:"end,required"`
	InitialCapital float64 `schema:"initial_capital,required"`
	ExportReport   bool    `schema:"export_report"`
	SaveResults    bool    `schema:"save_results"`
}

func (s *Server) createBacktest(w http.ResponseWriter, r *http.Request) {
	var req CreateBacktestRequest
	if err := queryDecoder.Decode(&req, r.URL.Query()); err != nil {
		setErrorResponse("createBacktest: invalid query", 400, err, w)
		return
	}

	start, err := utils.ParseDate(req.Start)
	if err != nil {
		setErrorResponse("createBacktest: invalid start date", 400, err, w)
		return
	}

	end, err := utils.ParseDate(req.End)
	if err != nil {
		setErrorResponse("createBacktest: invalid end date", 400, err, w)
		return
	}

	output, err := service.RunBacktest(r.Context(), s.barFeed, s.signalSource, service.RunBacktestArgs{
		Ticker:         req.Ticker,
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		Config:         s.config,
		ExportReport:   req.ExportReport,
		SaveResults:    req.SaveResults,
		OutDir:         s.outDir,
		ResultsDB:      s.resultsDB,
	})
	if err != nil {
		setErrorResponse("createBacktest: run failed", 422, err, w)
		return
	}

	response := map[string]interface{}{
		"run_id":    output.Result.RunID,
		"report":    output.Report,
		"artifacts": output.Artifacts,
	}

	if err := setResponse(response, w); err != nil {
		log.Errorf("createBacktest: %v", err)
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		setErrorResponse("getReport: invalid run id", 400, err, w)
		return
	}

	rpt, err := s.store.GetReport(r.Context(), runID)
	if err != nil {
		setErrorResponse("getReport: not found", 404, err, w)
		return
	}

	if err := setResponse(rpt, w); err != nil {
		log.Errorf("getReport: %v", err)
	}
}

func (s *Server) getEquityCurve(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		setErrorResponse("getEquityCurve: invalid run id", 400, err, w)
		return
	}

	curve, err := s.store.GetEquityCurve(r.Context(), runID)
	if err != nil {
		setErrorResponse("getEquityCurve: not found", 404, err, w)
		return
	}

	if err := setResponse(curve, w); err != nil {
		log.Errorf("getEquityCurve: %v", err)
	}
}
