package request

import "errors"

const maxTextBytes = 1 << 20

// ScanRequest is the inbound payload of POST /v1/security/scan.
type ScanRequest struct {
	Text      string `json:"text"`
	Endpoint  string `json:"endpoint,omitempty"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientKey string `json:"client_key,omitempty"`
}

func (r *ScanRequest) Validate() error {
	if len(r.Text) > maxTextBytes {
		return errors.New("text exceeds maximum size of 1MiB")
	}
	return nil
}
