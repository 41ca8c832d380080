package xtream

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

// newTestClient points a client at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing server url: %v", err)
	}
	creds := Credentials{Host: u.Hostname(), Port: u.Port(), Username: "user", Password: "pass"}
	return NewClient(creds, opts...)
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return l.err
}

type recorded struct {
	action, outcome string
}

type memoryRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *memoryRecorder) ObservePanelCall(action, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{action, outcome})
}

func TestClient_Authenticate(t *testing.T) {
	t.Run("auth 1 succeeds", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/player_api.php" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.URL.Query().Get("username") != "user" {
				t.Errorf("unexpected username: %s", r.URL.Query().Get("username"))
			}
			if r.URL.Query().Get("password") != "pass" {
				t.Errorf("unexpected password: %s", r.URL.Query().Get("password"))
			}
			if r.URL.Query().Has("action") {
				t.Errorf("authenticate must not send an action, got %q", r.URL.Query().Get("action"))
			}
			w.Write([]byte(`{"user_info":{"username":"user","auth":1,"status":"Active","max_connections":"2"},"server_info":{"port":"8080","timezone":"UTC"}}`))
		})

		result, err := client.Authenticate(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.UserInfo.Authenticated() {
			t.Error("expected authenticated user")
		}
		if result.UserInfo.MaxConnections.Int() != 2 {
			t.Errorf("expected max connections 2, got %d", result.UserInfo.MaxConnections.Int())
		}
		if result.ServerInfo.Port.Int() != 8080 {
			t.Errorf("expected port 8080, got %d", result.ServerInfo.Port.Int())
		}
	})

	t.Run("auth 0 fails with reported status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user_info":{"auth":0,"status":"Disabled"}}`))
		})

		_, err := client.Authenticate(context.Background())
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *AuthenticationError, got %T: %v", err, err)
		}
		if authErr.Status != "Disabled" {
			t.Errorf("expected status 'Disabled', got %q", authErr.Status)
		}
		if !strings.Contains(err.Error(), "Disabled") {
			t.Errorf("expected error text to contain status, got %q", err.Error())
		}
		if !errors.Is(err, ErrAuthentication) {
			t.Error("expected errors.Is(err, ErrAuthentication)")
		}
	})

	t.Run("HTTP 500 fails without reading auth", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"user_info":{"auth":1,"status":"Active"}}`))
		})

		_, err := client.Authenticate(context.Background())
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *AuthenticationError, got %T: %v", err, err)
		}
		if authErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status code 500, got %d", authErr.StatusCode)
		}
		if authErr.Status != "" {
			t.Errorf("auth payload must not be read on HTTP 500, got status %q", authErr.Status)
		}
	})

	t.Run("unparseable body fails", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>nope</html>`))
		})

		_, err := client.Authenticate(context.Background())
		if !errors.Is(err, ErrAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
	})

	t.Run("invalid credentials never reach the network", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer server.Close()

		client := NewClient(Credentials{Host: "127.0.0.1", Port: "1", Username: " ", Password: "p"})
		_, err := client.Authenticate(context.Background())
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
		if hits.Load() != 0 {
			t.Errorf("expected no requests, got %d", hits.Load())
		}
	})
}

func TestClient_ListCategories(t *testing.T) {
	tests := []struct {
		contentType ContentType
		action      string
	}{
		{ContentLive, "get_live_categories"},
		{ContentMovie, "get_vod_categories"},
		{ContentSeries, "get_series_categories"},
	}

	for _, tt := range tests {
		t.Run(string(tt.contentType), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("action"); got != tt.action {
					t.Errorf("unexpected action: %s", got)
				}
				w.Write([]byte(`[{"category_id":"1","category_name":"News","parent_id":0},{"category_id":2,"category_name":"Sports"}]`))
			})

			categories, err := client.ListCategories(context.Background(), tt.contentType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(categories) != 2 {
				t.Fatalf("expected 2 categories, got %d", len(categories))
			}
			if categories[0].Name != "News" {
				t.Errorf("expected first category 'News', got %q", categories[0].Name)
			}
			if categories[1].ID != "2" {
				t.Errorf("expected numeric id to decode as \"2\", got %q", categories[1].ID)
			}
		})
	}
}

func TestClient_ListCategories_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.ListCategories(context.Background(), ContentLive)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", reqErr.StatusCode)
	}
	if reqErr.Body != "upstream down" {
		t.Errorf("unexpected body %q", reqErr.Body)
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("expected errors.Is(err, ErrTransport)")
	}
}

func TestClient_ListCategories_JoinedCallerSurvivesCancel(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		w.Write([]byte(`[{"category_id":"1","category_name":"News"}]`))
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := client.ListCategories(ctxA, ContentLive)
		errA <- err
	}()
	<-arrived

	type result struct {
		categories []Category
		err        error
	}
	resB := make(chan result, 1)
	go func() {
		categories, err := client.ListCategories(context.Background(), ContentLive)
		resB <- result{categories, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	close(release)
	b := <-resB
	if b.err != nil {
		t.Fatalf("joined caller failed: %v", b.err)
	}
	if len(b.categories) != 1 || b.categories[0].Name != "News" {
		t.Errorf("unexpected categories %+v", b.categories)
	}
	if hits.Load() != 1 {
		t.Errorf("expected one shared request, got %d", hits.Load())
	}
}

func TestClient_ListChannels(t *testing.T) {
	t.Run("empty array is not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("action") != "get_live_streams" {
				t.Errorf("unexpected action: %s", r.URL.Query().Get("action"))
			}
			if r.URL.Query().Get("category_id") != "5" {
				t.Errorf("unexpected category: %s", r.URL.Query().Get("category_id"))
			}
			w.Write([]byte(`[]`))
		})

		channels, err := client.ListChannels(context.Background(), "5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if channels == nil || len(channels) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", channels)
		}
	})

	t.Run("null and empty body are empty", func(t *testing.T) {
		for _, body := range []string{"null", ""} {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			channels, err := client.ListChannels(context.Background(), "5")
			if err != nil {
				t.Fatalf("body %q: unexpected error: %v", body, err)
			}
			if len(channels) != 0 {
				t.Errorf("body %q: expected no channels, got %d", body, len(channels))
			}
		}
	})

	t.Run("decodes lenient fields", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"num":1,"name":"BBC One","stream_id":"101","stream_icon":"http://i/1.png","category_id":5,"tv_archive":1,"tv_archive_duration":"7"}]`))
		})

		channels, err := client.ListChannels(context.Background(), "5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(channels) != 1 {
			t.Fatalf("expected 1 channel, got %d", len(channels))
		}
		ch := channels[0]
		if ch.StreamID.Int() != 101 || ch.CategoryID != "5" || !ch.HasArchive() || ch.TVArchiveDuration.Int() != 7 {
			t.Errorf("unexpected channel %+v", ch)
		}
	})

	t.Run("no category lists everything", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("category_id") {
				t.Errorf("unexpected category_id %q", r.URL.Query().Get("category_id"))
			}
			w.Write([]byte(`[]`))
		})
		if _, err := client.ListChannels(context.Background(), ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestClient_ListMoviesAndSeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_vod_streams":
			w.Write([]byte(`[{"stream_id":7,"name":"Heat","rating":"8.3","container_extension":"mkv","category_id":"10"}]`))
		case "get_series":
			w.Write([]byte(`[{"series_id":"9","name":"Dark","cover":"c.jpg","backdrop_path":"b.jpg","category_id":"20"}]`))
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	})

	movies, err := client.ListMovies(context.Background(), "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(movies) != 1 || movies[0].ContainerExtension != "mkv" || movies[0].Rating.Float() != 8.3 {
		t.Errorf("unexpected movies %+v", movies)
	}

	series, err := client.ListSeries(context.Background(), "20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || series[0].SeriesID.Int() != 9 || series[0].BackdropPath.First() != "b.jpg" {
		t.Errorf("unexpected series %+v", series)
	}
}

func TestClient_FetchProgramGuide(t *testing.T) {
	programs := `[{"id":"1","epg_id":"2","title":"News","start":"2024-01-01 10:00:00","end":"2024-01-01 11:00:00","channel_id":"bbc1","start_timestamp":"1704103200","stop_timestamp":1704106800}]`

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", programs, 1},
		{"envelope", `{"epg_listings":` + programs + `}`, 1},
		{"empty array", `[]`, 0},
		{"empty envelope", `{"epg_listings":null}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/xmltv.php" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if r.URL.Query().Get("stream_id") != "42" {
					t.Errorf("unexpected stream_id: %s", r.URL.Query().Get("stream_id"))
				}
				w.Write([]byte(tt.body))
			})

			got, err := client.FetchProgramGuide(context.Background(), 42)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d programs, got %d", tt.want, len(got))
			}
			if tt.want > 0 {
				p := got[0]
				if p.StartTimestamp.Int() != 1704103200 || p.StopTimestamp.Int() != 1704106800 {
					t.Errorf("unexpected timestamps %d/%d", p.StartTimestamp, p.StopTimestamp)
				}
				if !p.EndTime().After(p.StartTime()) {
					t.Error("expected end after start")
				}
			}
		})
	}
}

func TestClient_FetchDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "get_vod_info":
			if q.Get("vod_id") != "7" {
				t.Errorf("unexpected vod_id %s", q.Get("vod_id"))
			}
			w.Write([]byte(`{"info":{"name":"Heat","o_name":"Heat","plot":"LA crime","duration":"02:50:00","mpaa_rating":"R"},"movie_data":{"stream_id":7,"container_extension":"mkv"}}`))
		case "get_series_info":
			if q.Get("series_id") != "9" {
				t.Errorf("unexpected series_id %s", q.Get("series_id"))
			}
			w.Write([]byte(`{"seasons":[],"info":{"name":"Dark"},"episodes":{"2":[{"id":"22","episode_num":2,"title":"b"},{"id":"21","episode_num":1,"title":"a"}],"1":[{"id":"11","episode_num":"1","title":"x","container_extension":"mp4"}]}}`))
		}
	})

	detail, err := client.FetchDetail(context.Background(), ContentMovie, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Movie == nil || detail.Movie.Info.MPAARating != "R" || detail.Movie.Movie.ContainerExtension != "mkv" {
		t.Errorf("unexpected movie detail %+v", detail.Movie)
	}

	detail, err = client.FetchDetail(context.Background(), ContentSeries, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seasons := detail.Series.SeasonNumbers()
	if len(seasons) != 2 || seasons[0] != 1 || seasons[1] != 2 {
		t.Errorf("unexpected seasons %v", seasons)
	}
	eps := detail.Series.EpisodesFor(2)
	if len(eps) != 2 || eps[0].ID != "21" {
		t.Errorf("expected episodes sorted by number, got %+v", eps)
	}

	if _, err := client.FetchDetail(context.Background(), ContentLive, 1); err == nil {
		t.Error("expected error for live detail")
	}
}

func TestClient_WaitsOnLimiterAndRecords(t *testing.T) {
	limiter := &countingLimiter{}
	rec := &memoryRecorder{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, WithLimiter(limiter), WithRecorder(rec))

	for i := 0; i < 3; i++ {
		if _, err := client.ListMovies(context.Background(), "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if limiter.calls.Load() != 3 {
		t.Errorf("expected 3 limiter waits, got %d", limiter.calls.Load())
	}
	if len(rec.calls) != 3 || rec.calls[0] != (recorded{"get_vod_streams", OutcomeOK}) {
		t.Errorf("unexpected recorded calls %+v", rec.calls)
	}
}

func TestClient_LimiterErrorAbortsCall(t *testing.T) {
	var hits atomic.Int32
	limiter := &countingLimiter{err: context.Canceled}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, WithLimiter(limiter))

	_, err := client.ListSeries(context.Background(), "1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
}

func TestClient_ErrorsDoNotLeakPassword(t *testing.T) {
	client := NewClient(Credentials{Host: "127.0.0.1", Port: "1", Username: "user", Password: "s3cret"},
		WithTimeout(time.Second))

	_, err := client.ListChannels(context.Background(), "1")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "s3cret") {
		t.Errorf("password leaked into error: %v", err)
	}
}

func TestDecompressingTransport(t *testing.T) {
	payload := []Category{{ID: "1", Name: "News"}}
	raw, _ := json.Marshal(payload)

	encoders := map[string]func([]byte) []byte{
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(b)
			zw.Close()
			return buf.Bytes()
		},
		"br": func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			bw.Write(b)
			bw.Close()
			return buf.Bytes()
		},
	}

	for encoding, encode := range encoders {
		t.Run(encoding, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
					t.Errorf("expected br in Accept-Encoding, got %q", r.Header.Get("Accept-Encoding"))
				}
				w.Header().Set("Content-Encoding", encoding)
				w.Write(encode(raw))
			})

			categories, err := client.ListCategories(context.Background(), ContentLive)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(categories) != 1 || categories[0].Name != "News" {
				t.Errorf("unexpected categories %+v", categories)
			}
		})
	}
}
