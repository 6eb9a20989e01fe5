package signing

// tokenResponse is the body of both the client-credentials and password
// grants.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// uploadResponse names the stored file; the filename is what the signing
// request references.
type uploadResponse struct {
	Filename string `json:"filename"`
}

// SignaturePlacement positions one signature block on a page.
type SignaturePlacement struct {
	UserIdentifier string `json:"user_identifier"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	CoordinateX    int    `json:"coordinate_x"`
	CoordinateY    int    `json:"coordinate_y"`
	PageNumber     int    `json:"page_number"`
}

// SignerInfo identifies the signer and their signature image.
type SignerInfo struct {
	UserIdentifier string `json:"user_identifier"`
	SignatureImage string `json:"signature_image"`
	Sequence       int    `json:"sequence"`
}

// PDFEntry pairs an uploaded filename with its signature placements.
type PDFEntry struct {
	Filename   string               `json:"filename"`
	Signatures []SignaturePlacement `json:"signatures"`
}

// SignRequest is the payload of the request-sign endpoint.
type SignRequest struct {
	RequestID  string       `json:"request_id"`
	Signatures []SignerInfo `json:"signatures"`
	ListPDF    []PDFEntry   `json:"list_pdf"`
}

// signResponse carries the per-signer auth URLs; each URL embeds the signer
// session identifier as its "id" query parameter.
type signResponse struct {
	AuthURLs []struct {
		URL string `json:"url"`
	} `json:"auth_urls"`
}

type statusResponse struct {
	Message string `json:"message"`
}

// StatusDone is the terminal message of the status endpoint.
const StatusDone = "DONE"
