package notify

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
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioOptions configures the Twilio-backed providers.
type TwilioOptions struct {
	AccountSID   string
	AuthToken    string
	SMSFrom      string
	WhatsAppFrom string
	// BaseURL overrides the Twilio API endpoint, mainly for tests.
	BaseURL string
	// Timeout bounds every provider request.
	Timeout time.Duration
}

// NewTwilioProviders builds the sms, whatsapp, and voice providers on top of
// a shared REST client. Voice calls originate from the SMS number.
func NewTwilioProviders(opts TwilioOptions) map[string]Provider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &twilioClient{
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		baseURL:    baseURL,
		http:       &http.Client{Timeout: timeout},
	}
	return map[string]Provider{
		ChannelSMS:      &smsProvider{client: client, from: opts.SMSFrom},
		ChannelWhatsApp: &whatsappProvider{client: client, from: opts.WhatsAppFrom},
		ChannelVoice:    &voiceProvider{client: client, from: opts.SMSFrom},
	}
}

type twilioClient struct {
	accountSID string
	authToken  string
	baseURL    string
	http       *http.Client
}

type smsProvider struct {
	client *twilioClient
	from   string
}

func (p *smsProvider) Send(ctx context.Context, to, body string) (string, error) {
	return p.client.post(ctx, "Messages.json", url.Values{
		"From": {p.from},
		"To":   {to},
		"Body": {body},
	})
}

type whatsappProvider struct {
	client *twilioClient
	from   string
}

func (p *whatsappProvider) Send(ctx context.Context, to, body string) (string, error) {
	return p.client.post(ctx, "Messages.json", url.Values{
		"From": {"whatsapp:" + p.from},
		"To":   {"whatsapp:" + to},
		"Body": {body},
	})
}

type voiceProvider struct {
	client *twilioClient
	from   string
}

func (p *voiceProvider) Send(ctx context.Context, to, body string) (string, error) {
	var spoken strings.Builder
	// The message is embedded in TwiML, so it has to be XML-escaped.
	if err := xml.EscapeText(&spoken, []byte(body)); err != nil {
		return "", fmt.Errorf("escaping message: %w", err)
	}
	twiml := fmt.Sprintf("<Response><Say>%s</Say></Response>", spoken.String())
	return p.client.post(ctx, "Calls.json", url.Values{
		"Twiml": {twiml},
		"From":  {p.from},
		"To":    {to},
	})
}

// post sends a form-encoded request to the given account resource and
// returns the SID Twilio assigned to the message or call.
func (c *twilioClient) post(ctx context.Context, resource string, form url.Values) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", fmt.Errorf("twilio credentials not configured")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s", c.baseURL, c.accountSID, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("twilio returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("twilio returned %d", resp.StatusCode)
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if created.SID == "" {
		return "", fmt.Errorf("response missing sid")
	}
	return created.SID, nil
}
