package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	svc "github.com/devsync/outreach-backend/internal/service/outreach"
)

const twilioAPIVersion = "2010-04-01"

// TwilioProvider places calls through the Twilio REST API. The call speaks
// the prepared script via TwiML and reports progress to the status callback.
type TwilioProvider struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	logger     *zap.Logger
}

type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL overrides the Twilio endpoint, used in tests.
	BaseURL string
}

func NewTwilioProvider(opts TwilioOptions, logger *zap.Logger) *TwilioProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		from:       opts.FromNumber,
		logger:     logger,
	}
}

func (p *TwilioProvider) Name() string { return "twilio" }

// twiml is the minimal response document for a spoken, gathered call.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
}

func (p *TwilioProvider) Place(ctx context.Context, req svc.CallRequest) (*svc.CallResult, error) {
	doc, err := xml.Marshal(twiml{Say: req.Script})
	if err != nil {
		return nil, fmt.Errorf("building twiml: %w", err)
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.from)
	form.Set("Twiml", string(doc))
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", "POST")
	}

	endpoint := fmt.Sprintf("%s/%s/Accounts/%s/Calls.json", p.baseURL, twilioAPIVersion, p.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(p.accountSID, p.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The status code rides along so the caller can classify it.
		return nil, fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing twilio response: %w", err)
	}

	p.logger.Info("call placed via Twilio",
		zap.String("to", req.To),
		zap.String("call_sid", parsed.SID))

	return &svc.CallResult{
		CallID: parsed.SID,
		Response: map[string]interface{}{
			"provider": "twilio",
			"status":   parsed.Status,
		},
	}, nil
}
