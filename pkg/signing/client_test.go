package signing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andriantochan/signbench/pkg/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Debugf(format string, args ...interface{}) {
	// no-op
}

func testCreds() signing.Credentials {
	return signing.Credentials{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Username:     "tester",
		Password:     "pw",
		OTPPin:       "123456",
	}
}

func newClient(t *testing.T, handler http.Handler) (*signing.HTTPClient, *signing.ResponseLog, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	endpoints := signing.Endpoints{
		AccessToken:     srv.URL + "/auth",
		Upload:          srv.URL + "/plus-upload",
		RequestSign:     srv.URL + "/plus-requestsign",
		AuthHashSign:    srv.URL + "/signing-authhashsign",
		ExecuteSign:     srv.URL + "/plus-executesign",
		CheckSignStatus: srv.URL + "/plus-checksignstatus",
	}
	respLog := signing.NewResponseLog()
	client := signing.NewHTTPClient(endpoints, testCreds(), 5*time.Second, respLog, logger{})
	return client, respLog, srv
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blank.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func TestGetAccessToken(t *testing.T) {
	var gotGrant string
	client, respLog, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.PostFormValue("grant_type")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	}))

	token, err := client.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "client_credentials", gotGrant)

	// The exchange lands in the response log with secrets redacted.
	entries := respLog.Entries()
	require.Len(t, entries, 1)
	body, _ := json.Marshal(entries[0].RequestBody)
	assert.NotContains(t, string(body), "secret-1")
}

func TestGetUserToken(t *testing.T) {
	var gotGrant, gotUser string
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.PostFormValue("grant_type")
		gotUser = r.PostFormValue("username")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "user-tok"})
	}))

	token, err := client.GetUserToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-tok", token)
	assert.Equal(t, "password", gotGrant)
	assert.Equal(t, "tester", gotUser)
}

func TestTokenMissingFieldIsInvalidResponse(t *testing.T) {
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"unexpected": "x"})
	}))

	_, err := client.GetAccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, signing.InvalidResponse, signing.ClassOf(err))
}

func TestUploadFile(t *testing.T) {
	var gotAuth, gotField string
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotField = header.Filename
		json.NewEncoder(w).Encode(map[string]string{"filename": "stored-1.pdf"})
	}))

	filename, err := client.UploadFile(context.Background(), "tok-1", writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, "stored-1.pdf", filename)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "blank.pdf", gotField)
}

func TestUploadMissingFileIsClientError(t *testing.T) {
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := client.UploadFile(context.Background(), "tok-1", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, signing.ClientError, signing.ClassOf(err))
}

func TestRequestSignExtractsSessionID(t *testing.T) {
	var gotReq signing.SignRequest
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"auth_urls": []map[string]string{
				{"url": "https://sign.example.com/auth?id=sess-42&channel=web"},
			},
		})
	}))

	req := signing.SignRequest{
		RequestID: "abc123",
		Signatures: []signing.SignerInfo{
			{UserIdentifier: "tester", SignatureImage: "img", Sequence: 1},
		},
		ListPDF: []signing.PDFEntry{
			{Filename: "stored-1.pdf", Signatures: []signing.SignaturePlacement{
				{UserIdentifier: "tester", Width: 200, Height: 100, PageNumber: 1},
			}},
		},
	}
	sessionID, err := client.RequestSign(context.Background(), "tok-1", req)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", sessionID)
	assert.Equal(t, "abc123", gotReq.RequestID)
	require.Len(t, gotReq.ListPDF, 1)
	assert.Equal(t, "stored-1.pdf", gotReq.ListPDF[0].Filename)
}

func TestRequestSignMissingIDIsInvalidResponse(t *testing.T) {
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"auth_urls": []map[string]string{{"url": "https://sign.example.com/auth?channel=web"}},
		})
	}))

	_, err := client.RequestSign(context.Background(), "tok-1", signing.SignRequest{})
	require.Error(t, err)
	assert.Equal(t, signing.InvalidResponse, signing.ClassOf(err))
}

func TestAuthOTPQueryParams(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"user":       q.Get("user"),
			"id":         q.Get("id"),
			"channel_id": q.Get("channel_id"),
		}
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	err := client.AuthOTP(context.Background(), "user-tok", "tester", "sess-42")
	require.NoError(t, err)
	assert.Equal(t, "tester", gotQuery["user"])
	assert.Equal(t, "sess-42", gotQuery["id"])
	assert.Equal(t, "client-1", gotQuery["channel_id"])
	assert.Equal(t, "Bearer user-tok", gotAuth)
}

func TestCheckStatusRecording(t *testing.T) {
	client, respLog, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "PENDING"})
	}))

	msg, err := client.CheckStatus(context.Background(), "tok-1", "abc123", true)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", msg)
	assert.Len(t, respLog.Entries(), 1)

	// Subsequent polls are not recorded.
	_, err = client.CheckStatus(context.Background(), "tok-1", "abc123", false)
	require.NoError(t, err)
	assert.Len(t, respLog.Entries(), 1)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		class  signing.ErrorClass
	}{
		{"Unauthorized", http.StatusUnauthorized, signing.AuthExpired},
		{"BadRequest", http.StatusBadRequest, signing.ClientError},
		{"Conflict", http.StatusConflict, signing.ClientError},
		{"ServerError", http.StatusInternalServerError, signing.TransientError},
		{"BadGateway", http.StatusBadGateway, signing.TransientError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			err := client.ExecuteSign(context.Background(), "tok-1", "abc123", "tester")
			require.Error(t, err)
			assert.Equal(t, tc.class, signing.ClassOf(err))
		})
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	client, _, srv := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := client.ExecuteSign(context.Background(), "tok-1", "abc123", "tester")
	require.Error(t, err)
	assert.Equal(t, signing.TransientError, signing.ClassOf(err))
	assert.True(t, signing.IsRetryable(err))
}

func TestResponseLogSaveToFile(t *testing.T) {
	l := signing.NewResponseLog()
	l.Log("Token Access", "https://example.com/auth", 200, map[string]string{"grant_type": "client_credentials"}, []byte(`{"access_token":"x"}`))
	l.Log("Execute Sign", "https://example.com/exec", 200, nil, []byte("not-json"))

	path := filepath.Join(t.TempDir(), "responses.json")
	require.NoError(t, l.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []signing.ResponseEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Token Access", entries[0].Operation)
	assert.Equal(t, 200, entries[0].StatusCode)
}
