package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/econ"
	"github.com/sanspareilsmyn/cyclelens/internal/lora"
)

const maxRebateBody = 64 << 10

// LoRaReporter builds the LoRa sensor success table.
type LoRaReporter interface {
	Report(ctx context.Context) (*lora.Report, error)
}

func (s *Server) handleLoRaSuccess(w http.ResponseWriter, r *http.Request) {
	rep, err := s.lora.Report(r.Context())
	if err != nil {
		s.logger.Warn("LoRa report failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleRebate runs the rebate economics model. A POSTed JSON body overrides
// individual default inputs; GET returns the defaults' result.
func (s *Server) handleRebate(w http.ResponseWriter, r *http.Request) {
	in := econ.DefaultInputs()
	if r.Method == http.MethodPost {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRebateBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rebate inputs: " + err.Error()})
			return
		}
	}

	res, err := econ.Model(in)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
