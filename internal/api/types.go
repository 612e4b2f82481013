package api

// ResponseError is the body of every non-2xx response, under "error".
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// BlockInfo describes one container block without decoding it.
type BlockInfo struct {
	Name         string `json:"name"`
	Encoding     string `json:"encoding"`
	Compression  string `json:"compression"`
	Count        uint64 `json:"count"`
	PayloadBytes uint64 `json:"payload_bytes"`
	Offset       uint64 `json:"offset"`
}

type InspectResponse struct {
	Object string      `json:"object"`
	Major  uint16      `json:"major"`
	Minor  uint16      `json:"minor"`
	Blocks []BlockInfo `json:"blocks"`
}

// Response headers set by a successful decode.
const (
	HeaderDecodeID  = "X-Decode-Id"
	HeaderTotalSize = "X-Total-Size"
)
