package planconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 4 << 20
	defaultCorporateSlug  = "default"
)

// RESTSource fetches plan configurations from the external configuration
// service at {baseURL}/plan-configurations/{plan}/{corporate}/{country}.
type RESTSource struct {
	baseURL string
	client  *http.Client
}

// NewRESTSource constructs a source against baseURL. A nil client uses a
// client with the default request timeout.
func NewRESTSource(baseURL string, client *http.Client) *RESTSource {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &RESTSource{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), client: client}
}

func (s *RESTSource) Name() string { return "remote" }

// URL returns the request URL for key.
func (s *RESTSource) URL(key Key) string {
	corp := key.CorporateID
	if corp == "" {
		corp = defaultCorporateSlug
	}
	return fmt.Sprintf("%s/plan-configurations/%s/%s/%s",
		s.baseURL, url.PathEscape(string(key.PlanType)), url.PathEscape(corp), url.PathEscape(string(key.CountryCode)))
}

// Fetch requests the bundle for key. A 404 or an empty body is absent. The
// body is either {"config": ..., "overrides": [...]} or a bare document.
func (s *RESTSource) Fetch(ctx context.Context, key Key) (*Bundle, error) {
	if s == nil || s.baseURL == "" {
		return nil, fmt.Errorf("planconfig: remote source not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("planconfig: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planconfig: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("planconfig: close response body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("planconfig: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("planconfig: read response: %w", err)
	}
	return decodeRemoteBundle(key, body)
}

func decodeRemoteBundle(key Key, body []byte) (*Bundle, error) {
	if isBlank(body) {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("planconfig: invalid json response")
	}

	configRaw := body
	var overrides []OverrideDocument
	if envelope := gjson.GetBytes(body, "config"); envelope.Exists() {
		configRaw = []byte(envelope.Raw)
		if raw := gjson.GetBytes(body, "overrides"); raw.Exists() && raw.IsArray() {
			if errDecode := json.Unmarshal([]byte(raw.Raw), &overrides); errDecode != nil {
				return nil, fmt.Errorf("planconfig: decode overrides: %w", errDecode)
			}
		}
	}

	base, errParse := ParseDocument(configRaw)
	if errParse != nil {
		return nil, errParse
	}
	if base == nil {
		return nil, nil
	}
	kept := overrides[:0]
	for _, doc := range overrides {
		if doc.CorporateID != "" && doc.CorporateID != key.CorporateID {
			continue
		}
		if doc.CountryCode == "" {
			doc.CountryCode = key.CountryCode
		}
		if doc.Scope == "" {
			doc.Scope = ScopeCountry
			if doc.CorporateID != "" {
				doc.Scope = ScopeTenant
			}
		}
		kept = append(kept, doc)
	}
	return &Bundle{Key: key, Base: base, Overrides: kept}, nil
}
