// Package places Google Places 文本搜索数据源
package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

const (
	// Name 数据源名称
	Name = "google_places"

	// DefaultBaseURL 官方地址
	DefaultBaseURL = "https://maps.googleapis.com"

	textSearchPath = "/maps/api/place/textsearch/json"
)

// Config 客户端配置
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// Client Places 客户端，同时提供住宿与活动查询
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient 创建客户端
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, http: hc, limiter: cfg.Limiter}
}

// Name 数据源名称
func (c *Client) Name() string {
	return Name
}

// SearchHotels 查询目的地住宿
//
// 每晚价格由 price_level 估算，未提供等级时按 2 处理。
func (c *Client) SearchHotels(ctx context.Context, cr provider.HotelCriteria) ([]model.HotelOption, error) {
	q := url.Values{}
	q.Set("query", "hotels in "+cr.Destination)
	q.Set("type", "lodging")

	results, err := c.textSearch(ctx, "hotels", q)
	if err != nil {
		return nil, err
	}

	nights := cr.Nights()
	if nights < 1 {
		nights = 1
	}
	options := make([]model.HotelOption, 0, len(results))
	for _, p := range results {
		level := p.level()
		nightly := provider.NightlyRate(level)
		options = append(options, model.HotelOption{
			ID:             p.PlaceID,
			Name:           p.Name,
			Address:        p.FormattedAddress,
			Rating:         p.Rating,
			PriceLevel:     level,
			NightlyPrice:   nightly,
			EstimatedTotal: nightly.MulInt(nights),
			Amenities:      amenitiesFromTypes(p.Types),
		})
	}
	return options, nil
}

// SearchPlaces 按类别查询景点与活动
func (c *Client) SearchPlaces(ctx context.Context, cr provider.PlaceCriteria) ([]model.Suggestion, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("%s attractions in %s", cr.Category, cr.Destination))

	results, err := c.textSearch(ctx, "places", q)
	if err != nil {
		return nil, err
	}

	cost := provider.CategoryCost(cr.Category, cr.Dining)
	var out []model.Suggestion
	for _, p := range results {
		// price_level 0..4 线性映射到类别费用区间
		level := p.level()
		estimate := cost.Min + (cost.Max - cost.Min).MulRatio(float64(level)/4)
		if cr.MaxCost > 0 && estimate > cr.MaxCost {
			continue
		}
		out = append(out, model.Suggestion{
			Name:          p.Name,
			Description:   p.FormattedAddress,
			Category:      cr.Category,
			EstimatedCost: estimate,
			Duration:      "2 hours",
			Rating:        p.Rating,
		})
		if cr.Limit > 0 && len(out) >= cr.Limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, provider.NewError(Name, "places", provider.KindUpstream, fmt.Errorf("no affordable %s places", cr.Category))
	}
	return out, nil
}

func (c *Client) textSearch(ctx context.Context, op string, q url.Values) ([]place, error) {
	q.Set("key", c.apiKey)

	var resp textSearchResponse
	if err := provider.GetJSON(ctx, c.http, c.limiter, Name, op, c.baseURL+textSearchPath, q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "REQUEST_DENIED", "INVALID_REQUEST":
		return nil, provider.NewError(Name, op, provider.KindAuth, fmt.Errorf("%s: %s", resp.Status, resp.ErrorMessage))
	case "ZERO_RESULTS":
		return nil, provider.NewError(Name, op, provider.KindUpstream, fmt.Errorf("zero results"))
	default:
		return nil, provider.NewError(Name, op, provider.KindUpstream, fmt.Errorf("status %s: %s", resp.Status, resp.ErrorMessage))
	}
	if len(resp.Results) == 0 {
		return nil, provider.NewError(Name, op, provider.KindUpstream, fmt.Errorf("empty results"))
	}
	return resp.Results, nil
}

type textSearchResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Results      []place `json:"results"`
}

type place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Rating           float64  `json:"rating"`
	PriceLevel       *int     `json:"price_level"`
	Types            []string `json:"types"`
}

func (p place) level() int {
	if p.PriceLevel == nil {
		return 2
	}
	return *p.PriceLevel
}

var typeAmenities = map[string]string{
	"spa":        "Spa",
	"gym":        "Gym",
	"restaurant": "Restaurant",
	"parking":    "Parking",
	"bar":        "Bar",
}

func amenitiesFromTypes(types []string) []string {
	out := []string{}
	for _, t := range types {
		if a, ok := typeAmenities[t]; ok {
			out = append(out, a)
		}
	}
	return out
}
