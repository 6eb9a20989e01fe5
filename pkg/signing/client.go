package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Endpoints holds the remote service URLs.
type Endpoints struct {
	AccessToken     string `yaml:"access_token_url"`
	Upload          string `yaml:"upload_url"`
	RequestSign     string `yaml:"request_sign_url"`
	AuthHashSign    string `yaml:"auth_hash_url"`
	ExecuteSign     string `yaml:"execute_sign_url"`
	CheckSignStatus string `yaml:"check_sign_status_url"`
}

// Credentials holds the API client and signer credentials.
type Credentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	OTPPin       string `yaml:"otp_pin"`
}

// Logger defines the logging interface for the client.
type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Client is the signing service surface the workflow drives. All operations
// return *APIError so the retry engine can classify failures.
type Client interface {
	// GetAccessToken performs the client-credentials grant.
	GetAccessToken(ctx context.Context) (string, error)
	// GetUserToken performs the password grant for the signer.
	GetUserToken(ctx context.Context) (string, error)
	// UploadFile sends one multipart PDF and returns the stored filename.
	UploadFile(ctx context.Context, token, path string) (string, error)
	// RequestSign submits the signing request and returns the signer
	// session identifier extracted from the first auth URL.
	RequestSign(ctx context.Context, token string, req SignRequest) (string, error)
	// AuthOTP submits the one-time passcode for a signer session.
	AuthOTP(ctx context.Context, userToken, userIdentifier, sessionID string) error
	// ExecuteSign triggers asynchronous signing of the request.
	ExecuteSign(ctx context.Context, token, requestID, userIdentifier string) error
	// CheckStatus returns the current status message for the request.
	// record controls whether the exchange lands in the response log; the
	// poll loop records only its first response to bound log volume.
	CheckStatus(ctx context.Context, token, requestID string, record bool) (string, error)
}

// HTTPClient implements Client against the Tilaka staging API.
type HTTPClient struct {
	http      *http.Client
	endpoints Endpoints
	creds     Credentials
	respLog   *ResponseLog
	logger    Logger
}

func NewHTTPClient(endpoints Endpoints, creds Credentials, timeout time.Duration, respLog *ResponseLog, logger Logger) *HTTPClient {
	return &HTTPClient{
		http:      &http.Client{Timeout: timeout},
		endpoints: endpoints,
		creds:     creds,
		respLog:   respLog,
		logger:    logger,
	}
}

func (c *HTTPClient) GetAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	return c.token(ctx, "Get Access Token", form)
}

func (c *HTTPClient) GetUserToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
		"grant_type":    {"password"},
		"username":      {c.creds.Username},
		"password":      {c.creds.Password},
	}
	return c.token(ctx, "Get User Token", form)
}

func (c *HTTPClient) token(ctx context.Context, op string, form url.Values) (string, error) {
	body, err := c.do(ctx, op, http.MethodPost, c.endpoints.AccessToken,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "", redactForm(form))
	if err != nil {
		return "", err
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", newAPIError(InvalidResponse, op, 0, errors.New("token response missing access_token"))
	}
	return tok.AccessToken, nil
}

func (c *HTTPClient) UploadFile(ctx context.Context, token, path string) (string, error) {
	const op = "Upload File"

	f, err := os.Open(path)
	if err != nil {
		return "", newAPIError(ClientError, op, 0, errors.Wrap(err, "open pdf"))
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", newAPIError(ClientError, op, 0, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", newAPIError(ClientError, op, 0, errors.Wrap(err, "read pdf"))
	}
	if err := mw.Close(); err != nil {
		return "", newAPIError(ClientError, op, 0, err)
	}

	body, err := c.do(ctx, op, http.MethodPost, c.endpoints.Upload, &buf, mw.FormDataContentType(), token, nil)
	if err != nil {
		return "", err
	}
	var up uploadResponse
	if err := json.Unmarshal(body, &up); err != nil || up.Filename == "" {
		return "", newAPIError(InvalidResponse, op, 0, errors.New("upload response missing filename"))
	}
	return up.Filename, nil
}

func (c *HTTPClient) RequestSign(ctx context.Context, token string, req SignRequest) (string, error) {
	const op = "Request Sign"

	payload, err := json.Marshal(req)
	if err != nil {
		return "", newAPIError(ClientError, op, 0, err)
	}
	body, err := c.do(ctx, op, http.MethodPost, c.endpoints.RequestSign, bytes.NewReader(payload), "application/json", token, req)
	if err != nil {
		return "", err
	}
	var resp signResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.AuthURLs) == 0 {
		return "", newAPIError(InvalidResponse, op, 0, errors.New("sign response missing auth_urls"))
	}
	sessionID, err := extractSessionID(resp.AuthURLs[0].URL)
	if err != nil {
		return "", newAPIError(InvalidResponse, op, 0, err)
	}
	c.logger.Infof("Got signer session id: %s", sessionID)
	return sessionID, nil
}

func (c *HTTPClient) AuthOTP(ctx context.Context, userToken, userIdentifier, sessionID string) error {
	const op = "Auth OTP"

	u, err := url.Parse(c.endpoints.AuthHashSign)
	if err != nil {
		return newAPIError(ClientError, op, 0, err)
	}
	q := u.Query()
	q.Set("user", userIdentifier)
	q.Set("id", sessionID)
	q.Set("channel_id", c.creds.ClientID)
	u.RawQuery = q.Encode()

	payload := map[string]string{"otp_pin": c.creds.OTPPin}
	data, _ := json.Marshal(payload)
	_, err = c.do(ctx, op, http.MethodPost, u.String(), bytes.NewReader(data), "application/json", userToken,
		map[string]string{"otp_pin": "<redacted>"})
	return err
}

func (c *HTTPClient) ExecuteSign(ctx context.Context, token, requestID, userIdentifier string) error {
	const op = "Execute Sign"

	payload := map[string]string{
		"request_id":      requestID,
		"user_identifier": userIdentifier,
	}
	data, _ := json.Marshal(payload)
	_, err := c.do(ctx, op, http.MethodPost, c.endpoints.ExecuteSign, bytes.NewReader(data), "application/json", token, payload)
	return err
}

func (c *HTTPClient) CheckStatus(ctx context.Context, token, requestID string, record bool) (string, error) {
	const op = "Check Sign Status"

	payload := map[string]string{"request_id": requestID}
	data, _ := json.Marshal(payload)
	var body []byte
	var err error
	if record {
		body, err = c.do(ctx, op, http.MethodPost, c.endpoints.CheckSignStatus, bytes.NewReader(data), "application/json", token, payload)
	} else {
		body, err = c.doQuiet(ctx, op, http.MethodPost, c.endpoints.CheckSignStatus, bytes.NewReader(data), "application/json", token)
	}
	if err != nil {
		return "", err
	}
	var st statusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return "", newAPIError(InvalidResponse, op, 0, errors.New("status response not JSON"))
	}
	return st.Message, nil
}

// do performs one HTTP round trip, records it in the response log, and maps
// the outcome onto the error taxonomy: 401 is AuthExpired, other 4xx are
// ClientError, 5xx and transport failures are TransientError.
func (c *HTTPClient) do(ctx context.Context, op, method, rawURL string, body io.Reader, contentType, token string, loggedRequest interface{}) ([]byte, error) {
	return c.roundTrip(ctx, op, method, rawURL, body, contentType, token, loggedRequest, true)
}

// doQuiet is do without response-log recording; the status poll loop records
// only its first response to bound log volume.
func (c *HTTPClient) doQuiet(ctx context.Context, op, method, rawURL string, body io.Reader, contentType, token string) ([]byte, error) {
	return c.roundTrip(ctx, op, method, rawURL, body, contentType, token, nil, false)
}

func (c *HTTPClient) roundTrip(ctx context.Context, op, method, rawURL string, body io.Reader, contentType, token string, loggedRequest interface{}, record bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, newAPIError(ClientError, op, 0, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures classify the same way.
		return nil, newAPIError(TransientError, op, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAPIError(TransientError, op, resp.StatusCode, errors.Wrap(err, "read body"))
	}

	if record && c.respLog != nil {
		c.respLog.Log(op, rawURL, resp.StatusCode, loggedRequest, respBody)
	}
	c.logger.Debugf("%s %s -> %d", method, rawURL, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, newAPIError(AuthExpired, op, resp.StatusCode, errors.Errorf("unauthorized: %s", truncate(respBody)))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, newAPIError(ClientError, op, resp.StatusCode, errors.Errorf("rejected: %s", truncate(respBody)))
	case resp.StatusCode >= 500:
		return nil, newAPIError(TransientError, op, resp.StatusCode, errors.Errorf("server error: %s", truncate(respBody)))
	}
	return respBody, nil
}

// extractSessionID pulls the "id" query parameter out of a server-issued
// auth URL.
func extractSessionID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse auth url %q", rawURL)
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", errors.Errorf("auth url %q has no id parameter", rawURL)
	}
	return id, nil
}

func redactForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		switch k {
		case "client_secret", "password":
			out[k] = "<redacted>"
		default:
			out[k] = form.Get(k)
		}
	}
	return out
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
