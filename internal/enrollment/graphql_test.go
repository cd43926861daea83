package enrollment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestGraphQLSubmitter_Success(t *testing.T) {
	var body []byte
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{"submitEnrollment":{"id":"enr-42","message":"Enrollment submitted."}}}`))
	}))
	defer srv.Close()

	submitter := NewGraphQLSubmitter(srv.URL, "svc-token", srv.Client())
	result, err := submitter.Submit(context.Background(), Request{
		CorporateID: "acme",
		EmployeeID:  "emp-1",
		SessionID:   "sess-1",
		Key:         acmeKey(),
		Selection:   &form.Selection{Family: map[string]bool{"self": true}, Payment: "PREPAID_WALLET"},
	})
	require.NoError(t, err)
	require.Equal(t, KindSuccess, result.Kind)
	require.Equal(t, "Enrollment submitted.", result.Message)
	require.Equal(t, "enr-42", result.EnrollmentID)

	require.Equal(t, "Bearer svc-token", auth)
	require.Contains(t, gjson.GetBytes(body, "query").String(), "submitEnrollment")
	require.Equal(t, "acme", gjson.GetBytes(body, "variables.input.corporateId").String())
	require.Equal(t, "GMC", gjson.GetBytes(body, "variables.input.planType").String())
	require.True(t, gjson.GetBytes(body, "variables.input.selection.family.self").Bool())
}

func TestGraphQLSubmitter_DefaultMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"submitEnrollment":{"id":"enr-1"}}}`))
	}))
	defer srv.Close()

	result, err := NewGraphQLSubmitter(srv.URL, "", srv.Client()).Submit(context.Background(), Request{Key: acmeKey()})
	require.NoError(t, err)
	require.Equal(t, DefaultSuccessMessage, result.Message)
}

func TestGraphQLSubmitter_Errors(t *testing.T) {
	payload := `{"errors":[{"message":"employee not eligible"}],"data":null}`
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()
	submitter := NewGraphQLSubmitter(srv.URL, "", srv.Client())

	_, err := submitter.Submit(context.Background(), Request{Key: acmeKey()})
	require.ErrorContains(t, err, "employee not eligible")

	payload = `{"errors":[{"message":"duplicate","extensions":{"code":"ALREADY_SUBMITTED"}}]}`
	_, err = submitter.Submit(context.Background(), Request{Key: acmeKey()})
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	status = http.StatusInternalServerError
	payload = `oops`
	_, err = submitter.Submit(context.Background(), Request{Key: acmeKey()})
	require.ErrorContains(t, err, "unexpected status 500")
}
