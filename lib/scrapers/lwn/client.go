// Package lwn implements the authenticated session against the site and
// the walk over the account's posted comments.
package lwn

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"lwncomments/lib/telemetry"
	"lwncomments/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/lwn")

var ErrLoginFailed = fmt.Errorf("could not log in")

const userAgent = "lwncomments (https://github.com/lwncomments)"

type Client struct {
	BaseUrl  *url.URL
	Http     *resty.Client
	loggedIn bool
}

type ClientOptions struct {
	BaseUrl string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	telemetry.InstrumentResty(client, "scrapers/lwn/http")

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	return c, nil
}

// Login posts the account credentials. Whether the session was actually
// established is decided by looking at the response page: if its first
// heading still starts with the login prompt, the site rejected the
// credentials and ErrLoginFailed is returned.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"Username": username,
			"Password": password,
		}).
		Post("/Login/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login response html")
		return err
	}

	heading := textutil.NormalizeName(doc.Find("h1").First().Text())
	if strings.HasPrefix(heading, "login") {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		return ErrLoginFailed
	}

	c.loggedIn = true
	return nil
}

// LoggedIn reports whether a Login call has succeeded on this client.
func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

// Logout closes the session on the server side. Best effort: it is only
// meaningful after a successful Login.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	_, err := c.Http.R().
		SetContext(ctx).
		Get("/Logout/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make logout request")
		return err
	}

	c.loggedIn = false
	return nil
}
