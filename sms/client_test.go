package sms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sara3/tesla-mcp/sms"
)

func TestSend_PostsTwilioForm(t *testing.T) {
	var gotPath, gotFrom, gotTo, gotBody string
	var gotUser, gotPass string

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotFrom = r.PostFormValue("From")
		gotTo = r.PostFormValue("To")
		gotBody = r.PostFormValue("Body")
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
	}))
	defer provider.Close()

	client := sms.NewClient("AC123", "auth-token", "+15550001111", sms.WithAPIBase(provider.URL))
	err := client.Send(context.Background(), "+15552223333", "car is charged")
	require.NoError(t, err)

	require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	require.Equal(t, "+15550001111", gotFrom)
	require.Equal(t, "+15552223333", gotTo)
	require.Equal(t, "car is charged", gotBody)
	require.Equal(t, "AC123", gotUser)
	require.Equal(t, "auth-token", gotPass)
}

func TestSend_ProviderErrorWithoutBodyLeak(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"account AC123 token auth-token invalid"}`))
	}))
	defer provider.Close()

	client := sms.NewClient("AC123", "auth-token", "+15550001111", sms.WithAPIBase(provider.URL))
	err := client.Send(context.Background(), "+15552223333", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
	require.NotContains(t, err.Error(), "auth-token invalid")
}
