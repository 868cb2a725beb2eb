package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/regime"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	rid, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   err.Error(),
		RequestID: rid,
	})
}

// statusOf maps engine errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, risk.ErrInvalidInput), errors.Is(err, regime.ErrNoParameters):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrPositionNotFound), errors.Is(err, journal.ErrRowNotFound):
		return http.StatusNotFound
	case store.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, r, status, err)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: body: %v", risk.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Session(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) setRegime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Regime string `json:"regime"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	g, err := regime.ParseRegime(req.Regime)
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %v", risk.ErrInvalidInput, err))
		return
	}
	if err := s.engine.SetRegime(r.Context(), g); err != nil {
		fail(w, r, err)
		return
	}
	s.session(w, r)
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checklist []string `json:"checklist"`
		Apply     bool     `json:"apply"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	n, err := regime.CountChecked(req.Checklist)
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %v", risk.ErrInvalidInput, err))
		return
	}

	res, err := s.engine.Suggest(r.Context(), n, req.Apply)
	if err != nil {
		fail(w, r, err)
		return
	}
	resp := struct {
		regime.Result
		Error string `json:"error,omitempty"`
	}{Result: res}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryFloat(r *http.Request, key string) (float64, error) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", risk.ErrInvalidInput, key, err)
	}
	return v, nil
}

func (s *Server) size(w http.ResponseWriter, r *http.Request) {
	entry, err := queryFloat(r, "entry")
	if err != nil {
		fail(w, r, err)
		return
	}
	stop, err := queryFloat(r, "stop")
	if err != nil {
		fail(w, r, err)
		return
	}
	sz, err := s.engine.Size(r.Context(), entry, stop)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sz)
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.engine.Overview(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) addPosition(w http.ResponseWriter, r *http.Request) {
	var f portfolio.Fill
	if err := decode(r, &f); err != nil {
		fail(w, r, err)
		return
	}
	p, err := s.engine.AddPosition(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	as, err := s.engine.Review(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (s *Server) updateStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stop float64 `json:"stop"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := s.engine.UpdateStop(r.Context(), mux.Vars(r)["symbol"], req.Stop)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) breakEven(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.MoveToBreakEven(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeletePosition(r.Context(), mux.Vars(r)["symbol"]); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exit sells Quantity shares, or the whole position when Quantity is omitted.
func (s *Server) exit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price    float64 `json:"price"`
		Quantity *int    `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	sym := mux.Vars(r)["symbol"]
	var (
		ex  journal.Exit
		err error
	)
	if req.Quantity == nil {
		ex, err = s.engine.Close(r.Context(), sym, req.Price)
	} else {
		ex, err = s.engine.Exit(r.Context(), sym, req.Price, *req.Quantity)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.Ledger(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []journal.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	perf, err := s.engine.Stats(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

func (s *Server) correctRow(w http.ResponseWriter, r *http.Request) {
	var c engine.Correction
	if err := decode(r, &c); err != nil {
		fail(w, r, err)
		return
	}
	row, err := s.engine.CorrectRow(r.Context(), mux.Vars(r)["id"], c)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["id"]
	n, err := s.engine.DeleteRows(r.Context(), []string{rid})
	if err != nil {
		fail(w, r, err)
		return
	}
	if n == 0 {
		fail(w, r, fmt.Errorf("%w: %s", journal.ErrRowNotFound, rid))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountResponse struct {
	Equity      decimal.Decimal `json:"equity"`
	LastUpdated string          `json:"last_updated"`
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.engine.AdjustEquity(r.Context(), req.Amount, req.Reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Equity: a.Equity, LastUpdated: a.LastUpdated.Format(time.RFC3339)})
}

func (s *Server) forceEquity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Equity decimal.Decimal `json:"equity"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.engine.ForceEquity(r.Context(), req.Equity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Equity: a.Equity, LastUpdated: a.LastUpdated.Format(time.RFC3339)})
}
