package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// API endpoint paths.
	pathPlayerAPI = "/player_api.php"
	pathXMLTV     = "/xmltv.php"
	pathLive      = "/live"
	pathMovie     = "/movie"
	pathSeries    = "/series"

	// API actions.
	actionAuthenticate        = "authenticate"
	actionGetLiveCategories   = "get_live_categories"
	actionGetVODCategories    = "get_vod_categories"
	actionGetSeriesCategories = "get_series_categories"
	actionGetLiveStreams      = "get_live_streams"
	actionGetVODStreams       = "get_vod_streams"
	actionGetVODInfo          = "get_vod_info"
	actionGetSeries           = "get_series"
	actionGetSeriesInfo       = "get_series_info"
	actionProgramGuide        = "xmltv"

	// Query parameter names.
	paramUsername   = "username"
	paramPassword   = "password"
	paramAction     = "action"
	paramCategoryID = "category_id"
	paramVODID      = "vod_id"
	paramSeriesID   = "series_id"
	paramStreamID   = "stream_id"

	maxErrorBodyReadSize = 1024
)

// HTTP header constants.
const (
	headerUserAgent = "User-Agent"
	headerAccept    = "Accept"
)

// Limiter gates outgoing calls. Wait blocks until the caller may proceed or
// the context is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Recorder receives one observation per panel call.
type Recorder interface {
	ObservePanelCall(action, outcome string, duration time.Duration)
}

// Call outcomes reported to a Recorder.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeDecode    = "decode_error"
	OutcomeTransport = "transport_error"
	OutcomeCanceled  = "canceled"
)

// Client is an Xtream Codes API client bound to one set of credentials.
// It is safe for concurrent use.
type Client struct {
	// Credentials identify the panel and account.
	Credentials Credentials

	// HTTPClient is used for requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Limiter is waited on before every request. Nil disables throttling.
	Limiter Limiter

	// Recorder observes request outcomes. Nil disables recording.
	Recorder Recorder

	logger *slog.Logger
	flight singleflight.Group
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// NewClient creates a new client for the given credentials. Credentials are
// trimmed, then validated per call so that a misconfigured client fails with
// ErrConfiguration before touching the network.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		Credentials: creds.Normalized(),
		HTTPClient:  NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout, nil),
		UserAgent:   "xtreamer",
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom standard library HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// WithTimeout replaces the HTTP client with one using the given overall
// request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		hc := NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout, c.logger)
		hc.Timeout = timeout
		c.HTTPClient = hc
	}
}

// WithLimiter sets the limiter waited on before every request.
func WithLimiter(l Limiter) ClientOption {
	return func(c *Client) {
		c.Limiter = l
	}
}

// WithRecorder sets the call recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.Recorder = r
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// apiURL builds the player_api.php URL with the given action and parameters.
func (c *Client) apiURL(action string, params url.Values) string {
	return c.endpoint(pathPlayerAPI, action, params)
}

func (c *Client) endpoint(path, action string, params url.Values) string {
	q := url.Values{}
	q.Set(paramUsername, c.Credentials.Username)
	q.Set(paramPassword, c.Credentials.Password)
	if action != "" {
		q.Set(paramAction, action)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.Credentials.BaseURL() + path + "?" + q.Encode()
}

// doRequest waits on the limiter, performs an HTTP GET and decodes the JSON
// response into target. An empty body leaves target untouched.
func (c *Client) doRequest(ctx context.Context, action, requestURL string, target any) (err error) {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			c.record(action, OutcomeCanceled, 0)
			return &RequestError{Action: action, Err: err}
		}
	}

	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		c.record(action, outcome, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		outcome = OutcomeTransport
		return &RequestError{Action: action, Err: fmt.Errorf("creating request: %w", err)}
	}

	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}
	req.Header.Set(headerAccept, "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		outcome = OutcomeTransport
		if ctx.Err() != nil {
			outcome = OutcomeCanceled
		}
		return &RequestError{Action: action, Err: fmt.Errorf("executing request: %w", redactURLError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = OutcomeHTTPError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		return &RequestError{Action: action, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		outcome = OutcomeDecode
		if ctx.Err() != nil {
			outcome = OutcomeCanceled
		}
		return &RequestError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return nil
}

func (c *Client) record(action, outcome string, d time.Duration) {
	if c.Recorder != nil {
		c.Recorder.ObservePanelCall(action, outcome, d)
	}
	if outcome != OutcomeOK {
		c.logger.Debug("panel call failed",
			slog.String("action", action),
			slog.String("outcome", outcome),
			slog.Duration("duration", d),
		)
	}
}

// Authenticate verifies the credentials. Any failure, including transport
// errors and non-2xx statuses, is reported as *AuthenticationError; the auth
// flag is only inspected for 2xx responses.
func (c *Client) Authenticate(ctx context.Context) (*AuthResult, error) {
	if err := c.Credentials.Validate(); err != nil {
		return nil, err
	}

	var result AuthResult
	if err := c.doRequest(ctx, actionAuthenticate, c.apiURL("", nil), &result); err != nil {
		authErr := &AuthenticationError{Err: err}
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			authErr.StatusCode = reqErr.StatusCode
		}
		return nil, authErr
	}

	if !result.UserInfo.Authenticated() {
		return nil, &AuthenticationError{
			StatusCode: http.StatusOK,
			Status:     result.UserInfo.Status,
			Message:    result.UserInfo.Message,
		}
	}

	return &result, nil
}

// ListCategories returns the categories of one catalog in panel order.
// Concurrent calls for the same catalog share a single request. The shared
// request is detached from the caller that started it: a caller whose ctx
// ends gets its ctx error while the others keep waiting on the result.
func (c *Client) ListCategories(ctx context.Context, contentType ContentType) ([]Category, error) {
	action := contentType.categoriesAction()
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(action, func() (any, error) {
		var categories []Category
		if err := c.doRequest(shared, action, c.apiURL(action, nil), &categories); err != nil {
			return nil, err
		}
		return categories, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, &RequestError{Action: action, Err: ctx.Err()}
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	categories := slices.Clone(res.Val.([]Category))
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func categoryParams(categoryID string) url.Values {
	if categoryID == "" {
		return nil
	}
	return url.Values{paramCategoryID: {categoryID}}
}

// ListChannels returns the live channels of a category. An empty categoryID
// lists the whole live catalog.
func (c *Client) ListChannels(ctx context.Context, categoryID string) ([]Channel, error) {
	channels := []Channel{}
	if err := c.doRequest(ctx, actionGetLiveStreams, c.apiURL(actionGetLiveStreams, categoryParams(categoryID)), &channels); err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []Channel{}
	}
	return channels, nil
}

// ListMovies returns the movies of a category.
func (c *Client) ListMovies(ctx context.Context, categoryID string) ([]Movie, error) {
	movies := []Movie{}
	if err := c.doRequest(ctx, actionGetVODStreams, c.apiURL(actionGetVODStreams, categoryParams(categoryID)), &movies); err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []Movie{}
	}
	return movies, nil
}

// ListSeries returns the series of a category.
func (c *Client) ListSeries(ctx context.Context, categoryID string) ([]Series, error) {
	series := []Series{}
	if err := c.doRequest(ctx, actionGetSeries, c.apiURL(actionGetSeries, categoryParams(categoryID)), &series); err != nil {
		return nil, err
	}
	if series == nil {
		series = []Series{}
	}
	return series, nil
}

// FetchProgramGuide returns the guide entries for a live stream from
// xmltv.php. Both a bare JSON array and the epg_listings envelope are accepted.
func (c *Client) FetchProgramGuide(ctx context.Context, streamID int64) ([]EPGProgram, error) {
	params := url.Values{paramStreamID: {strconv.FormatInt(streamID, 10)}}

	var raw json.RawMessage
	if err := c.doRequest(ctx, actionProgramGuide, c.endpoint(pathXMLTV, "", params), &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []EPGProgram{}, nil
	}

	if trimmed[0] == '{' {
		var envelope epgEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &RequestError{Action: actionProgramGuide, Err: fmt.Errorf("decoding response: %w", err)}
		}
		if envelope.Listings == nil {
			return []EPGProgram{}, nil
		}
		return envelope.Listings, nil
	}

	programs := []EPGProgram{}
	if err := json.Unmarshal(trimmed, &programs); err != nil {
		return nil, &RequestError{Action: actionProgramGuide, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return programs, nil
}

// FetchMovieDetail retrieves the info block and stream record of a movie.
func (c *Client) FetchMovieDetail(ctx context.Context, vodID int64) (*MovieDetail, error) {
	params := url.Values{paramVODID: {strconv.FormatInt(vodID, 10)}}

	var detail MovieDetail
	if err := c.doRequest(ctx, actionGetVODInfo, c.apiURL(actionGetVODInfo, params), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FetchSeriesDetail retrieves the info block, seasons and episodes of a series.
func (c *Client) FetchSeriesDetail(ctx context.Context, seriesID int64) (*SeriesDetail, error) {
	params := url.Values{paramSeriesID: {strconv.FormatInt(seriesID, 10)}}

	var detail SeriesDetail
	if err := c.doRequest(ctx, actionGetSeriesInfo, c.apiURL(actionGetSeriesInfo, params), &detail); err != nil {
		return nil, err
	}
	if detail.Episodes == nil {
		detail.Episodes = map[string][]Episode{}
	}
	return &detail, nil
}

// Detail holds the result of FetchDetail; exactly one field is set.
type Detail struct {
	Movie  *MovieDetail  `json:"movie,omitempty"`
	Series *SeriesDetail `json:"series,omitempty"`
}

// FetchDetail dispatches to FetchMovieDetail or FetchSeriesDetail.
// Live channels have no detail call.
func (c *Client) FetchDetail(ctx context.Context, contentType ContentType, id int64) (*Detail, error) {
	switch contentType {
	case ContentMovie:
		m, err := c.FetchMovieDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Detail{Movie: m}, nil
	case ContentSeries:
		s, err := c.FetchSeriesDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Detail{Series: s}, nil
	default:
		return nil, fmt.Errorf("no detail call for content type %q", contentType)
	}
}

// redactURLError strips the query string from *url.Error so credentials do
// not leak into error messages.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}
