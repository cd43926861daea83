package enrollment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultGraphQLTimeout = 15 * time.Second
	maxGraphQLResponse    = 1 << 20
)

const submitEnrollmentMutation = `mutation SubmitEnrollment($input: EnrollmentInput!) {
  submitEnrollment(input: $input) {
    id
    message
  }
}`

// GraphQLSubmitter sends enrollments to the submitEnrollment mutation.
type GraphQLSubmitter struct {
	endpoint string
	client   *http.Client
	token    string
	nowFn    func() time.Time
}

// NewGraphQLSubmitter constructs a submitter for endpoint. token, when set,
// is sent as a bearer credential.
func NewGraphQLSubmitter(endpoint, token string, client *http.Client) *GraphQLSubmitter {
	if client == nil {
		client = &http.Client{Timeout: defaultGraphQLTimeout}
	}
	return &GraphQLSubmitter{endpoint: strings.TrimSpace(endpoint), client: client, token: token, nowFn: time.Now}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Submit posts the mutation. GraphQL errors and non-2xx statuses are failures.
func (s *GraphQLSubmitter) Submit(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.endpoint == "" {
		return Result{}, fmt.Errorf("enrollment: graphql endpoint not configured")
	}
	input := map[string]any{
		"corporateId": req.CorporateID,
		"employeeId":  req.EmployeeID,
		"sessionId":   req.SessionID,
		"planType":    req.Key.PlanType,
		"countryCode": req.Key.CountryCode,
		"selection":   req.Selection,
		"summary":     req.Summary,
	}
	payload, errEncode := json.Marshal(graphQLRequest{
		Query:     submitEnrollmentMutation,
		Variables: map[string]any{"input": input},
	})
	if errEncode != nil {
		return Result{}, fmt.Errorf("enrollment: encode mutation: %w", errEncode)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if errReq != nil {
		return Result{}, fmt.Errorf("enrollment: build request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, errDo := s.client.Do(httpReq)
	if errDo != nil {
		return Result{}, fmt.Errorf("enrollment: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("enrollment: close response body failed")
		}
	}()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxGraphQLResponse))
	if errRead != nil {
		return Result{}, fmt.Errorf("enrollment: read response: %w", errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if msg := gjson.GetBytes(body, "errors.0.message").String(); msg != "" {
			return Result{}, fmt.Errorf("enrollment: status %d: %s", resp.StatusCode, msg)
		}
		return Result{}, fmt.Errorf("enrollment: unexpected status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return Result{}, fmt.Errorf("enrollment: invalid json response")
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		first := errs.Array()[0]
		if first.Get("extensions.code").String() == "ALREADY_SUBMITTED" {
			return Result{}, ErrAlreadySubmitted
		}
		return Result{}, fmt.Errorf("enrollment: graphql: %s", first.Get("message").String())
	}

	data := gjson.GetBytes(body, "data.submitEnrollment")
	if !data.Exists() || data.Type == gjson.Null {
		return Result{}, fmt.Errorf("enrollment: graphql: empty submitEnrollment payload")
	}
	return Result{
		Kind:         KindSuccess,
		Message:      successMessage(data.Get("message").String()),
		EnrollmentID: data.Get("id").String(),
		SubmittedAt:  s.nowFn().UTC(),
	}, nil
}
