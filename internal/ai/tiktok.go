package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"slideflow/internal/config"
)

// CarouselPost is the scraped shape of one TikTok photo-mode post.
type CarouselPost struct {
	AuthorHandle string
	Caption      string
	CoverURL     string
	Images       []string
}

type TikTokClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewTikTokClient(cfg config.TikTokConfig) *TikTokClient {
	return &TikTokClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type scrapeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Title  string   `json:"title"`
		Cover  string   `json:"cover"`
		Images []string `json:"images"`
		Author struct {
			UniqueID string `json:"unique_id"`
		} `json:"author"`
	} `json:"data"`
}

// ScrapePost resolves a share URL into the post's carousel images.
func (c *TikTokClient) ScrapePost(ctx context.Context, shareURL string) (CarouselPost, error) {
	endpoint := fmt.Sprintf("%s/?url=%s&hd=1", c.baseURL, url.QueryEscape(shareURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CarouselPost{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return CarouselPost{}, fmt.Errorf("scrape post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CarouselPost{}, fmt.Errorf("scrape post: status %d", resp.StatusCode)
	}

	var payload scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return CarouselPost{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Code != 0 {
		return CarouselPost{}, fmt.Errorf("scrape post: %s", payload.Msg)
	}
	if len(payload.Data.Images) == 0 {
		return CarouselPost{}, fmt.Errorf("post has no carousel images")
	}

	return CarouselPost{
		AuthorHandle: payload.Data.Author.UniqueID,
		Caption:      payload.Data.Title,
		CoverURL:     payload.Data.Cover,
		Images:       payload.Data.Images,
	}, nil
}
