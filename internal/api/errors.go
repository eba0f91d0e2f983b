package api

import (
	"encoding/json"
	"net/http"

	errorsmod "cosmossdk.io/errors"

	"github.com/roach88/spotter/internal/engine"
)

// CodespaceAPI marks errors raised by the transport rather than the engine.
const CodespaceAPI = "api"

// Transport error kinds.
const (
	KindBadRequest    = "BadRequest"
	KindMissingCaller = "MissingCaller"
)

// ErrorBody is the error payload of every failed request.
type ErrorBody struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// statusByKind maps engine error kinds to HTTP statuses.
// Kinds not listed map to 500.
var statusByKind = map[string]int{
	"HashMismatch":             http.StatusBadRequest,
	"InvalidSignature":         http.StatusBadRequest,
	"InvalidSelector":          http.StatusBadRequest,
	"InvalidGovernancePayload": http.StatusBadRequest,
	"InvalidOperation":         http.StatusBadRequest,
	"UnknownGovernanceOpcode":  http.StatusBadRequest,
	"TargetProtocolMismatch":   http.StatusBadRequest,
	"DestinationChainMismatch": http.StatusBadRequest,
	"NotGovernanceOperation":   http.StatusBadRequest,
	"TargetAddressNotAllowed":  http.StatusBadRequest,
	"UnauthorizedKeeper":       http.StatusForbidden,
	"UnauthorizedExecutor":     http.StatusForbidden,
	"UnauthorizedProposer":     http.StatusForbidden,
	"OperationNotFound":        http.StatusNotFound,
	"ProtocolNotRegistered":    http.StatusNotFound,
	"TargetNotFound":           http.StatusNotFound,
	"AlreadyLoaded":            http.StatusConflict,
	"AlreadyExecuted":          http.StatusConflict,
	"AlreadyInitialized":       http.StatusConflict,
	"ConsensusNotReached":      http.StatusConflict,
	"ProtocolReserved":         http.StatusConflict,
	"GovernanceLockout":        http.StatusConflict,
	"NotInitialized":           http.StatusConflict,
}

// StatusForKind returns the HTTP status for an engine error kind.
func StatusForKind(kind string) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeEngineError writes err with its registered codespace and code.
// Internal errors are reported without their detail.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := engine.Kind(err)
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	msg := err.Error()
	if kind == engine.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, StatusForKind(kind), errorEnvelope{Error: ErrorBody{
		Codespace: codespace,
		Code:      code,
		Kind:      kind,
		Message:   msg,
	}})
}

// writeRequestError reports a malformed request.
func writeRequestError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorEnvelope{Error: ErrorBody{
		Codespace: CodespaceAPI,
		Kind:      kind,
		Message:   msg,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
