package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CuriousLearner/phone-verify/core"
)

func testOptions(apiBase string) map[string]string {
	return map[string]string{
		"sid":      "AC00000000000000000000000000000000",
		"secret":   "auth-token",
		"from":     "+15005550006",
		"api_base": apiBase,
	}
}

func TestSendSMS(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	backend, err := New(testOptions(server.URL))
	require.NoError(t, err)

	err = backend.SendSMS(context.Background(), "+13478379634", "Welcome! Your code is 123456.")
	require.NoError(t, err)

	assert.Equal(t, "/2010-04-01/Accounts/AC00000000000000000000000000000000/Messages.json", gotPath)
	assert.Equal(t, "AC00000000000000000000000000000000", gotUser)
	assert.Equal(t, "auth-token", gotPass)
	assert.Equal(t, "+13478379634", gotForm["To"])
	assert.Equal(t, "+15005550006", gotForm["From"])
	assert.Equal(t, "Welcome! Your code is 123456.", gotForm["Body"])
}

func TestSendSMSErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": 21211, "message": "Invalid 'To' phone number"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	backend, err := New(testOptions(server.URL))
	require.NoError(t, err)

	err = backend.SendSMS(context.Background(), "not-a-number", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "21211")
}

func TestSendBulkSMS(t *testing.T) {
	var recipients []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		recipients = append(recipients, r.PostForm.Get("To"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	backend, err := New(testOptions(server.URL))
	require.NoError(t, err)

	err = backend.SendBulkSMS(context.Background(), []string{"+13478379634", "+15551230000"}, "bulk hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"+13478379634", "+15551230000"}, recipients)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(map[string]string{"sid": "AC123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestSandboxFixedCodeAndValidation(t *testing.T) {
	options := testOptions("http://unused.invalid")
	options["sandbox_token"] = "123456"

	backend, err := NewSandbox(options)
	require.NoError(t, err)

	gen, ok := backend.(core.SecurityCodeGenerator)
	require.True(t, ok)
	code, handled := gen.GenerateSecurityCode()
	assert.True(t, handled)
	assert.Equal(t, "123456", code)

	validator, ok := backend.(core.SecurityCodeValidator)
	require.True(t, ok)
	outcome, handled := validator.ValidateSecurityCode("999999", "+13478379634", "any-token")
	assert.True(t, handled)
	assert.Equal(t, core.SecurityCodeValid, outcome)
}

func TestSandboxRequiresToken(t *testing.T) {
	_, err := NewSandbox(testOptions("http://unused.invalid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox_token")
}
