package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// maxBodyBytes bounds request bodies: params are at most 64 KiB, hex
// doubles that, and signature batches are small.
const maxBodyBytes = 1 << 20

// LoadRequest is the body of POST /v1/operations.
type LoadRequest struct {
	Operation ir.Operation `json:"operation"`
	Hash      common.Hash  `json:"hash"`
}

// SignRequest is the body of POST /v1/operations/{hash}/signatures.
type SignRequest struct {
	Signatures []hexutil.Bytes `json:"signatures"`
}

// ExecuteGovRequest is the body of POST /v1/governance/{hash}/execute.
type ExecuteGovRequest struct {
	TargetProtocol ir.ProtocolID `json:"target_protocol"`
}

// ProposeRequest is the body of POST /v1/proposals.
type ProposeRequest struct {
	ProtocolID    ir.ProtocolID `json:"protocol_id"`
	DstChainID    uint64        `json:"dst_chain_id"`
	TargetAddress hexutil.Bytes `json:"target_address"`
	Selector      ir.Selector   `json:"function_selector"`
	Params        hexutil.Bytes `json:"params"`
}

func (s *Server) loadOperation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req LoadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.ledger.LoadOperation(r.Context(), caller, req.Operation, req.Hash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) signOperation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	hash, ok := pathHash(w, r)
	if !ok {
		return
	}
	var req SignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sigs := make([][]byte, len(req.Signatures))
	for i, sig := range req.Signatures {
		sigs[i] = sig
	}
	res, err := s.ledger.SignOperation(r.Context(), caller, hash, sigs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) executeOperation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	hash, ok := pathHash(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.ExecuteOperation(r.Context(), caller, hash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) executeGovOperation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	hash, ok := pathHash(w, r)
	if !ok {
		return
	}
	var req ExecuteGovRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.ledger.ExecuteGovOperation(r.Context(), caller, hash, req.TargetProtocol)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) propose(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req ProposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ev, err := s.ledger.ProposeToOtherChain(r.Context(), caller, engine.ProposeRequest{
		ProtocolID:    req.ProtocolID,
		DstChainID:    req.DstChainID,
		TargetAddress: req.TargetAddress,
		Selector:      req.Selector,
		Params:        req.Params,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	hash, ok := pathHash(w, r)
	if !ok {
		return
	}
	st, err := s.ledger.Operation(r.Context(), hash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getTrace(w http.ResponseWriter, r *http.Request) {
	hash, ok := pathHash(w, r)
	if !ok {
		return
	}
	steps, err := s.ledger.Trace(r.Context(), hash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) listProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, err := s.ledger.Protocols(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocols)
}

func (s *Server) getProtocol(w http.ResponseWriter, r *http.Request) {
	id, err := ir.ParseProtocolID(mux.Vars(r)["id"])
	if err != nil {
		writeRequestError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}
	cfg, err := s.ledger.Protocol(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.ledger.Config(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// listProposals serves GET /v1/proposals?after=N&limit=M. Events with a
// nonce greater than after are returned; without after, from nonce 0.
func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from uint64
	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeRequestError(w, http.StatusBadRequest, KindBadRequest, fmt.Sprintf("after: %v", err))
			return
		}
		from = after + 1
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeRequestError(w, http.StatusBadRequest, KindBadRequest, fmt.Sprintf("limit %q is not a non-negative integer", v))
			return
		}
		limit = n
	}
	events, err := s.ledger.Proposals(r.Context(), from, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func requireCaller(w http.ResponseWriter, r *http.Request) (ir.Account, bool) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		writeRequestError(w, http.StatusUnauthorized, KindMissingCaller, CallerHeader+" header is required")
		return "", false
	}
	caller, err := ir.ParseAccount(raw)
	if err != nil {
		writeRequestError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return "", false
	}
	return caller, true
}

func pathHash(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	raw := mux.Vars(r)["hash"]
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		writeRequestError(w, http.StatusBadRequest, KindBadRequest, fmt.Sprintf("hash %q is not 32 bytes of 0x-hex", raw))
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeRequestError(w, http.StatusBadRequest, KindBadRequest, fmt.Sprintf("decode body: %v", err))
		return false
	}
	return true
}
