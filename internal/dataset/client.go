package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	_ "golang.org/x/image/webp"
)

const (
	// DefaultEndpoint is the public Hugging Face datasets-server.
	DefaultEndpoint = "https://datasets-server.huggingface.co"
	// MaxPageSize is the largest page datasets-server will return.
	MaxPageSize = 100
)

// StatusError reports a non-2xx response from the dataset source.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Client talks to a datasets-server compatible endpoint.
type Client struct {
	endpoint   string
	dataset    string
	config     string
	httpClient *http.Client
}

func NewClient(endpoint, dataset, config string) *Client {
	return &Client{
		endpoint:   endpoint,
		dataset:    dataset,
		config:     config,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Rows fetches length rows of split starting at offset.
func (c *Client) Rows(ctx context.Context, split string, offset, length int) (*RowsPage, error) {
	q := url.Values{}
	q.Set("dataset", c.dataset)
	q.Set("config", c.config)
	q.Set("split", split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))

	body, err := c.get(ctx, c.endpoint+"/rows?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var page RowsPage
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return &page, nil
}

// Image downloads and decodes the image at src.
func (c *Client) Image(ctx context.Context, src string) (image.Image, error) {
	body, err := c.get(ctx, src)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", src, err)
	}
	return img, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return resp.Body, nil
}
