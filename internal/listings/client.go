package listings

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://serpapi.com"
	userAgent = "spigell/job-matcher"
	engine    = "google_jobs"

	defaultLanguage    = "en"
	defaultPageTimeout = 20 * time.Second
	defaultPageDelay   = time.Second
)

type Client struct {
	apiKey string
	logger *zap.Logger

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// Language and Country are passed as hl and gl.
	Language string
	Country  string
	// PageTimeout bounds every single page request.
	PageTimeout time.Duration
	// PageDelay is the minimum gap between two page requests of one Fetch.
	PageDelay time.Duration
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Language    string
	Country     string
	PageTimeout time.Duration
	// PageDelay is the minimum gap between two page requests.
	PageDelay time.Duration
}

func New(logger *zap.Logger, apiKey string, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	language := opts.Language
	if language == "" {
		language = defaultLanguage
	}

	timeout := opts.PageTimeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}

	delay := opts.PageDelay
	if delay <= 0 {
		delay = defaultPageDelay
	}

	return &Client{
		apiKey:      apiKey,
		logger:      logger,
		HTTPClient:  &http.Client{},
		UserAgent:   userAgent,
		APIURL:      apiURL,
		Language:    language,
		Country:     opts.Country,
		PageTimeout: timeout,
		PageDelay:   delay,
	}
}
