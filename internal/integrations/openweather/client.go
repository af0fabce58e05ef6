package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.openweathermap.org"

// Client reads current conditions by US ZIP code. It satisfies
// shipping.Provider.
type Client struct {
	baseURL string
	apiKey  string
	country string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		country: "us",
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type weatherResp struct {
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Message string `json:"message"`
}

// Lookup returns the current temperature at zip in degrees Fahrenheit.
func (c *Client) Lookup(ctx context.Context, zip string) (float64, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return 0, errors.New("empty zip code")
	}
	if c.apiKey == "" {
		return 0, errors.New("openweather api key not configured")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, errors.Wrap(err, "parse base url")
	}
	u.Path = "/data/2.5/weather"

	q := u.Query()
	q.Set("zip", zip+","+c.country)
	q.Set("appid", c.apiKey)
	q.Set("units", "imperial")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var r weatherResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		if resp.StatusCode/100 != 2 {
			return 0, fmt.Errorf("openweather http %d", resp.StatusCode)
		}
		return 0, errors.Wrap(err, "decode")
	}
	if resp.StatusCode/100 != 2 {
		if r.Message != "" {
			return 0, fmt.Errorf("openweather http %d: %s", resp.StatusCode, r.Message)
		}
		return 0, fmt.Errorf("openweather http %d", resp.StatusCode)
	}
	if r.Main == nil {
		return 0, errors.New("openweather response has no temperature")
	}
	return r.Main.Temp, nil
}
