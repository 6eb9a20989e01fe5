package models

// WorkflowState carries everything a signing run accumulates as its steps
// complete. It is owned by the orchestrator for the duration of one run and
// mutated incrementally; the retry engine may refresh AccessToken in place.
type WorkflowState struct {
	AccessToken     string   `json:"access_token"`      // System (client-credentials) bearer token
	UserToken       string   `json:"user_token"`        // Signer (password-grant) bearer token
	UploadedFiles   []string `json:"uploaded_files"`    // Server-side filenames, upload order preserved
	RequestID       string   `json:"request_id"`        // Random identifier naming the signing request
	UserIdentifier  string   `json:"user_identifier"`   // Signer username
	SignerSessionID string   `json:"signer_session_id"` // "id" query param extracted from the auth URL
}

// Clone returns a deep copy so a checkpoint snapshot cannot alias the
// orchestrator's live slice.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.UploadedFiles = append([]string(nil), s.UploadedFiles...)
	return out
}
