// Package weather はOpenWeather APIによる現在天気の取得を提供する。
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrNotFound は指定地点の天気が見つからなかったことを示す。
var ErrNotFound = errors.New("weather: location not found")

// Config はOpenWeather APIクライアントの設定。
type Config struct {
	APIKey   string
	APIURL   string
	Units    string // metric / imperial / standard
	Language string
	Timeout  time.Duration
}

// Report はOpenWeatherの現在天気レスポンスのうち通知に使う部分。
type Report struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// apiError はOpenWeatherのエラーレスポンス。codはintまたは文字列で返る。
type apiError struct {
	Cod     json.Number `json:"cod"`
	Message string      `json:"message"`
}

// Client はOpenWeather APIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientがnilの場合はSSRF防止機能付きのクライアントを使う。
// APIエンドポイントは運用側で差し替え可能なため、プライベートIPへの
// リクエストはsafeurlのDialer検証でブロックする。
func NewClient(config Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		safeConfig := safeurl.GetConfigBuilder().
			SetTimeout(config.Timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		httpClient = safeurl.Client(safeConfig).Client
	}
	return &Client{
		httpClient: httpClient,
		config:     config,
	}
}

// ByCoords は緯度経度で現在天気を取得する。
func (c *Client) ByCoords(ctx context.Context, latitude, longitude float64) (*Report, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	return c.fetch(ctx, query)
}

// ByCity は都市名で現在天気を取得する。
func (c *Client) ByCity(ctx context.Context, city string) (*Report, error) {
	query := url.Values{}
	query.Set("q", city)
	return c.fetch(ctx, query)
}

// fetch は共通パラメータを付与してAPIを呼び出す。
func (c *Client) fetch(ctx context.Context, query url.Values) (*Report, error) {
	query.Set("appid", c.config.APIKey)
	query.Set("units", c.config.Units)
	query.Set("lang", c.config.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.APIURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("天気APIリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("天気APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("天気APIがエラーを返しました（status=%d）: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("天気APIがエラーを返しました（status=%d）", resp.StatusCode)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("天気APIレスポンスの解析に失敗しました: %w", err)
	}

	return &report, nil
}
