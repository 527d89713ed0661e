// Package captcha solves reCAPTCHA challenges through the 2Captcha
// HTTP API: submit via in.php, then poll res.php until the token is
// ready.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"storescout/lib/restyutil"
	"storescout/lib/serp"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const notReady = "CAPCHA_NOT_READY"

var sitekeyRegex = regexp.MustCompile(`data-sitekey="([\w-]+)"`)

// ExtractSiteKey pulls the reCAPTCHA sitekey out of a challenge page.
// Returns "" when the page carries none.
func ExtractSiteKey(html string) string {
	groups := sitekeyRegex.FindStringSubmatch(html)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// Proxy is forwarded to the solver so the challenge is answered from
// the same exit IP that hit it.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (p Proxy) addr() string {
	if p.Username != "" {
		return fmt.Sprintf("%s:%s@%s:%s", p.Username, p.Password, p.Host, p.Port)
	}
	return fmt.Sprintf("%s:%s", p.Host, p.Port)
}

type Client struct {
	http *resty.Client
	key  string

	// PollInterval is how long to wait between res.php polls.
	PollInterval time.Duration
}

type ClientOptions struct {
	Key string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Key == "" {
		return nil, fmt.Errorf("2captcha api key is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://2captcha.com"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		http:         client,
		key:          opts.Key,
		PollInterval: time.Second * 5,
	}, nil
}

// NewClientFromEnv reads CAPTCHA_API_KEY from the environment.
func NewClientFromEnv() (*Client, error) {
	return NewClient(ClientOptions{Key: os.Getenv("CAPTCHA_API_KEY")})
}

type SolveRequest struct {
	SiteKey   string
	PageURL   string
	UserAgent string
	Proxy     *Proxy
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// SolveRecaptcha submits the challenge and polls until 2Captcha
// returns a g-recaptcha-response token.
func (c *Client) SolveRecaptcha(ctx context.Context, req SolveRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "client:SolveRecaptcha")
	defer span.End()

	id, err := c.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit challenge")
		return "", err
	}

	token, err := c.poll(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to retrieve token")
		return "", err
	}
	return token, nil
}

func (c *Client) submit(ctx context.Context, req SolveRequest) (string, error) {
	params := map[string]string{
		"key":       c.key,
		"method":    "userrecaptcha",
		"googlekey": req.SiteKey,
		"pageurl":   req.PageURL,
		"json":      "1",
	}
	if req.UserAgent != "" {
		params["userAgent"] = req.UserAgent
	}
	if req.Proxy != nil {
		params["proxy"] = req.Proxy.addr()
		params["proxytype"] = "HTTP"
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Post("/in.php")
	if err != nil {
		return "", err
	}
	if res.StatusCode() != 200 {
		return "", &serp.StatusError{StatusCode: res.StatusCode(), Body: res.String()}
	}

	var data apiResponse
	err = json.Unmarshal(res.Body(), &data)
	if err != nil {
		return "", err
	}
	if data.Status != 1 {
		return "", fmt.Errorf("challenge rejected: %s", data.Request)
	}
	return data.Request, nil
}

func (c *Client) poll(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":    c.key,
				"action": "get",
				"id":     id,
				"json":   "1",
			}).
			Get("/res.php")
		if err != nil {
			return "", err
		}

		var data apiResponse
		err = json.Unmarshal(res.Body(), &data)
		if err != nil {
			return "", err
		}
		if data.Status == 1 {
			return data.Request, nil
		}
		if data.Request != notReady {
			return "", fmt.Errorf("solve failed: %s", data.Request)
		}
	}
}
