// Package amadeus Amadeus 航班报价数据源
package amadeus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

const (
	// Name 数据源名称
	Name = "amadeus"

	// DefaultBaseURL 测试环境地址
	DefaultBaseURL = "https://test.api.amadeus.com"

	maxOffers = 10
)

var iataCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Config 客户端配置
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Limiter      *rate.Limiter
}

// Client Amadeus 客户端
type Client struct {
	baseURL string
	http    *http.Client
	creds   *clientcredentials.Config
	limiter *rate.Limiter

	// tokenSem 串行化令牌获取，等待同样受调用方 ctx 约束
	tokenSem chan struct{}
	token    *oauth2.Token
}

// NewClient 创建客户端
//
// 访问令牌通过 client_credentials 获取并缓存，过期后在下一次查询时续期。
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: base,
		http:    hc,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v1/security/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		limiter:  cfg.Limiter,
		tokenSem: make(chan struct{}, 1),
	}
}

// accessToken 返回缓存的令牌，失效时在 ctx 约束下重新获取
func (c *Client) accessToken(ctx context.Context) (*oauth2.Token, error) {
	select {
	case c.tokenSem <- struct{}{}:
	case <-ctx.Done():
		return nil, provider.Classify(Name, "token", ctx.Err())
	}
	defer func() { <-c.tokenSem }()

	if c.token.Valid() {
		return c.token, nil
	}
	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		if ctx.Err() != nil {
			return nil, provider.Classify(Name, "token", ctx.Err())
		}
		return nil, provider.Classify(Name, "token", err)
	}
	c.token = tok
	return tok, nil
}

// authorized 携带令牌的 HTTP 客户端
func (c *Client) authorized(tok *oauth2.Token) *http.Client {
	return &http.Client{
		Timeout: c.http.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.http.Transport,
		},
	}
}

// Name 数据源名称
func (c *Client) Name() string {
	return Name
}

// SearchFlights 查询往返报价，按总价升序返回
//
// 出发地或目的地不是 IATA 代码时直接返回 unresolvable，不发起请求。
func (c *Client) SearchFlights(ctx context.Context, cr provider.FlightCriteria) ([]model.FlightOption, error) {
	origin := strings.ToUpper(strings.TrimSpace(cr.Origin))
	dest := strings.ToUpper(strings.TrimSpace(cr.Destination))
	if !iataCode.MatchString(origin) || !iataCode.MatchString(dest) {
		return nil, provider.NewError(Name, "flight-offers", provider.KindUnresolvable,
			fmt.Errorf("location %q -> %q is not an IATA code", cr.Origin, cr.Destination))
	}

	travelers := cr.Travelers
	if travelers < 1 {
		travelers = 1
	}
	q := url.Values{}
	q.Set("originLocationCode", origin)
	q.Set("destinationLocationCode", dest)
	q.Set("departureDate", cr.DepartureDate.String())
	q.Set("returnDate", cr.ReturnDate.String())
	q.Set("adults", fmt.Sprint(travelers))
	q.Set("currencyCode", "USD")
	q.Set("max", fmt.Sprint(maxOffers))

	tok, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp offersResponse
	if err := provider.GetJSON(ctx, c.authorized(tok), c.limiter, Name, "flight-offers", c.baseURL+"/v2/shopping/flight-offers", q, &resp); err != nil {
		return nil, err
	}

	options := make([]model.FlightOption, 0, len(resp.Data))
	for _, o := range resp.Data {
		opt, ok := o.toOption()
		if !ok {
			continue
		}
		options = append(options, opt)
	}
	if len(options) == 0 {
		return nil, provider.NewError(Name, "flight-offers", provider.KindUpstream, fmt.Errorf("no usable offers"))
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].TotalPrice < options[j].TotalPrice
	})
	return options, nil
}

// ============================================================================
// 响应结构
// ============================================================================

type offersResponse struct {
	Data []offer `json:"data"`
}

type offer struct {
	ID                     string      `json:"id"`
	Itineraries            []itinerary `json:"itineraries"`
	Price                  price       `json:"price"`
	ValidatingAirlineCodes []string    `json:"validatingAirlineCodes"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure   endpoint `json:"departure"`
	Arrival     endpoint `json:"arrival"`
	CarrierCode string   `json:"carrierCode"`
	Number      string   `json:"number"`
}

type endpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type price struct {
	Currency   string `json:"currency"`
	GrandTotal string `json:"grandTotal"`
	Total      string `json:"total"`
}

func (o offer) toOption() (model.FlightOption, bool) {
	if len(o.Itineraries) < 2 {
		return model.FlightOption{}, false
	}
	out, ok1 := o.Itineraries[0].leg()
	ret, ok2 := o.Itineraries[1].leg()
	if !ok1 || !ok2 {
		return model.FlightOption{}, false
	}

	raw := o.Price.GrandTotal
	if raw == "" {
		raw = o.Price.Total
	}
	total, err := model.ParseMoney(raw)
	if err != nil || total <= 0 {
		return model.FlightOption{}, false
	}

	airline := o.Itineraries[0].Segments[0].CarrierCode
	if len(o.ValidatingAirlineCodes) > 0 {
		airline = o.ValidatingAirlineCodes[0]
	}
	currency := o.Price.Currency
	if currency == "" {
		currency = "USD"
	}
	return model.FlightOption{
		ID:         Name + "-" + o.ID,
		Airline:    airline,
		Outbound:   out,
		Return:     ret,
		TotalPrice: total,
		Currency:   currency,
	}, true
}

func (it itinerary) leg() (model.FlightLeg, bool) {
	if len(it.Segments) == 0 {
		return model.FlightLeg{}, false
	}
	first := it.Segments[0]
	last := it.Segments[len(it.Segments)-1]
	return model.FlightLeg{
		From:         first.Departure.IATACode,
		To:           last.Arrival.IATACode,
		Departure:    first.Departure.At,
		Arrival:      last.Arrival.At,
		Duration:     it.Duration,
		FlightNumber: first.CarrierCode + first.Number,
	}, true
}
