package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/rileyhilliard/bashkernel/internal/errors"
	"github.com/rileyhilliard/bashkernel/internal/kernel"
	"github.com/rileyhilliard/bashkernel/internal/output"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeSSHConnection    = "SSH_CONNECTION_FAILED"
	ErrCodeRemoteExec       = "REMOTE_EXEC_FAILED"
	ErrCodeUsage            = "USAGE"
	ErrCodeAlreadyConnected = "ALREADY_CONNECTED"
	ErrCodeNotConnected     = "NOT_CONNECTED"
	ErrCodeProcessExited    = "PROCESS_TERMINATED"
	ErrCodeInterrupted      = "INTERRUPTED"
	ErrCodeNonZeroExit      = "NONZERO_EXIT"
	ErrCodeUnknown          = "UNKNOWN"
)

// FrameJSON is one output frame.
type FrameJSON struct {
	MediaType string      `json:"media_type"`
	Data      interface{} `json:"data"`
}

// SubmissionJSON is the result of one submission.
type SubmissionJSON struct {
	Code   string      `json:"code"`
	Frames []FrameJSON `json:"frames"`
	Error  *JSONError  `json:"error,omitempty"`
}

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: ErrorToJSON(err)})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	jsonErr := &JSONError{Code: ErrCodeUnknown, Message: kernel.Describe(err)}
	if code, ok := errors.GetExitCode(err); ok {
		jsonErr.ExitCode = &code
		jsonErr.Code = ErrCodeNonZeroExit
	}

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		jsonErr.Code = mapErrorCode(structured.Code)
		jsonErr.Message = structured.Message
		jsonErr.Suggestion = structured.Suggestion
	}
	return jsonErr
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode string) string {
	switch internalCode {
	case errors.ErrConfig:
		return ErrCodeConfigInvalid
	case errors.ErrSSH:
		return ErrCodeSSHConnection
	case errors.ErrExec:
		return ErrCodeRemoteExec
	case errors.ErrUsage:
		return ErrCodeUsage
	case errors.ErrAlreadyConnected:
		return ErrCodeAlreadyConnected
	case errors.ErrNotConnected:
		return ErrCodeNotConnected
	case errors.ErrProcess:
		return ErrCodeProcessExited
	case errors.ErrInterrupted:
		return ErrCodeInterrupted
	}
	return ErrCodeUnknown
}

// frameToJSON converts a frame; CSV payloads stay as arrays of rows.
func frameToJSON(f output.Frame) FrameJSON {
	mediaType := string(f.MediaType)
	if mediaType == "" {
		mediaType = string(output.MediaText)
	}
	if rows, ok := f.Payload.([][]string); ok {
		return FrameJSON{MediaType: mediaType, Data: rows}
	}
	return FrameJSON{MediaType: mediaType, Data: f.String()}
}
