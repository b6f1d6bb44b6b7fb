package harvest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/schedule"
	"golang.org/x/net/html/charset"
)

const DefaultBaseURL = "http://ojp.nationalrail.co.uk/service/timesandfares"
const DefaultMaxDelay = 2 * time.Second
const DefaultUserAgent = "curl/7.54.1"

type Page struct {
	Descriptor schedule.Descriptor
	URL        string
	StatusCode int
	Body       []byte
}

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// PageFetcher is the part of Fetcher the harvester depends on
type PageFetcher interface {
	Fetch(ctx context.Context, descriptor schedule.Descriptor) (*Page, error)
}

type FetcherConfig struct {
	BaseURL   string
	MaxDelay  time.Duration
	Timeout   time.Duration
	UserAgent string
}

type Fetcher struct {
	BaseURL  string
	MaxDelay time.Duration

	// Sleep and Random are replaceable in tests
	Sleep  func(ctx context.Context, d time.Duration) error
	Random func() float64

	client *resty.Client
}

func NewFetcher(config FetcherConfig) *Fetcher {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxDelay < 0 {
		config.MaxDelay = 0
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent)

	return &Fetcher{
		BaseURL:  strings.TrimRight(config.BaseURL, "/"),
		MaxDelay: config.MaxDelay,
		Sleep:    sleepContext,
		Random:   rand.Float64,
		client:   client,
	}
}

func (f *Fetcher) URL(descriptor schedule.Descriptor) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/dep", f.BaseURL, descriptor.OriginCode, descriptor.DestinationCode, descriptor.RequestedDate, descriptor.TimeOfDay)
}

// Fetch performs a single GET for the descriptor and then waits a random
// politeness delay, whatever the outcome of the request.
func (f *Fetcher) Fetch(ctx context.Context, descriptor schedule.Descriptor) (*Page, error) {
	url := f.URL(descriptor)

	page, err := f.get(ctx, descriptor, url)

	if delayErr := f.delay(ctx); delayErr != nil && err == nil {
		err = delayErr
	}

	if err != nil {
		return nil, err
	}

	return page, nil
}

func (f *Fetcher) get(ctx context.Context, descriptor schedule.Descriptor, url string) (*Page, error) {
	startTime := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(url)
	fetchDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	if !resp.IsSuccess() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}

	body, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}

	log.Debug().
		Str("descriptor", descriptor.Key()).
		Int("status", resp.StatusCode()).
		Int("bytes", len(body)).
		Msg("Fetched page")

	return &Page{
		Descriptor: descriptor,
		URL:        url,
		StatusCode: resp.StatusCode(),
		Body:       body,
	}, nil
}

func (f *Fetcher) delay(ctx context.Context) error {
	if f.MaxDelay <= 0 {
		return nil
	}

	random := f.Random
	if random == nil {
		random = rand.Float64
	}
	sleep := f.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return sleep(ctx, time.Duration(random()*float64(f.MaxDelay)))
}

func decodeBody(body []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}

	return io.ReadAll(reader)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
