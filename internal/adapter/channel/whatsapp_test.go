package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

const (
	testTwilioSID   = "AC0123456789abcdef0123456789abcdef"
	testTwilioToken = "super-secret-token-16"
)

func twilioFields() map[string]string {
	return map[string]string{
		"account_sid": testTwilioSID,
		"auth_token":  testTwilioToken,
		"from_number": "+14155550100",
	}
}

func TestWhatsAppVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/"+testTwilioSID+".json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != testTwilioSID || pass != testTwilioToken {
			t.Errorf("basic auth not set correctly")
		}
		fmt.Fprint(w, `{"friendly_name":"Juno Project","status":"active"}`)
	}))
	defer server.Close()

	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL(server.URL))
	res, err := v.Verify(context.Background(), twilioFields())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "Juno Project", res.Identity)
}

func TestWhatsAppVerifyRejectsMalformedFields(t *testing.T) {
	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL("http://unused.invalid"))

	fields := twilioFields()
	fields["account_sid"] = "SK0000"
	_, err := v.Verify(context.Background(), fields)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.UserMessage(err), "AC...")

	fields = twilioFields()
	fields["from_number"] = "555-0100"
	_, err = v.Verify(context.Background(), fields)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestWhatsAppVerifySuspendedAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"friendly_name":"Juno Project","status":"suspended"}`)
	}))
	defer server.Close()

	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL(server.URL))
	res, err := v.Verify(context.Background(), twilioFields())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "suspended")
}

func TestWhatsAppVerifyBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL(server.URL))
	res, err := v.Verify(context.Background(), twilioFields())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "rejected")
}

func TestWhatsAppSendTest(t *testing.T) {
	var gotFrom, gotTo, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2010-04-01/Accounts/" + testTwilioSID + ".json":
			fmt.Fprint(w, `{"friendly_name":"Juno Project","status":"active"}`)
		case "/2010-04-01/Accounts/" + testTwilioSID + "/Messages.json":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			gotFrom = r.PostForm.Get("From")
			gotTo = r.PostForm.Get("To")
			gotBody = r.PostForm.Get("Body")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL(server.URL))
	ctx := context.Background()

	err := v.SendTest(ctx, "+14155550123", "hi")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = v.Verify(ctx, twilioFields())
	require.NoError(t, err)

	require.NoError(t, v.SendTest(ctx, "+14155550123", "hello"))
	assert.Equal(t, "whatsapp:+14155550100", gotFrom)
	assert.Equal(t, "whatsapp:+14155550123", gotTo)
	assert.Equal(t, "hello", gotBody)
}

func TestWhatsAppSendTestRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"The 'To' number is not a valid phone number."}`)
			return
		}
		fmt.Fprint(w, `{"friendly_name":"Juno Project","status":"active"}`)
	}))
	defer server.Close()

	v := NewWhatsAppVerifier(nil, WithWhatsAppBaseURL(server.URL))
	ctx := context.Background()
	_, err := v.Verify(ctx, twilioFields())
	require.NoError(t, err)

	err = v.SendTest(ctx, "nonsense", "hello")
	require.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Contains(t, domain.UserMessage(err), "not a valid phone number")
}
