package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Fake panel account.
const (
	PanelUsername = "alice"
	PanelPassword = "secret"
)

// Panel is an httptest server speaking the Xtream Codes API over Catalog.
// Unknown accounts get auth=0; Fail makes an action answer HTTP 500.
type Panel struct {
	Server  *httptest.Server
	Catalog *Catalog

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

// NewPanel starts a panel serving catalog and closes it when t ends.
func NewPanel(t testing.TB, catalog *Catalog) *Panel {
	t.Helper()
	p := &Panel{
		Catalog: catalog,
		calls:   map[string]int{},
		fail:    map[string]bool{},
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

// Credentials returns valid credentials for the panel.
func (p *Panel) Credentials() xtream.Credentials {
	u, _ := url.Parse(p.Server.URL)
	return xtream.Credentials{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Username: PanelUsername,
		Password: PanelPassword,
	}
}

// Calls returns how many requests an action received. The action-less auth
// call is counted as "authenticate", the guide as "xmltv".
func (p *Panel) Calls(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[action]
}

// Fail makes action answer HTTP 500 until reset with Fail(action, false).
func (p *Panel) Fail(action string, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[action] = fail
}

func (p *Panel) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := q.Get("action")
	switch {
	case r.URL.Path == "/xmltv.php":
		action = "xmltv"
	case action == "":
		action = "authenticate"
	}

	p.mu.Lock()
	p.calls[action]++
	failing := p.fail[action]
	p.mu.Unlock()

	if failing {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	authorized := q.Get("username") == PanelUsername && q.Get("password") == PanelPassword
	if action == "authenticate" {
		p.writeAuth(w, authorized)
		return
	}
	if !authorized {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	c := p.Catalog
	category := q.Get("category_id")
	var body any
	switch action {
	case "get_live_categories":
		body = c.Categories[xtream.ContentLive]
	case "get_vod_categories":
		body = c.Categories[xtream.ContentMovie]
	case "get_series_categories":
		body = c.Categories[xtream.ContentSeries]
	case "get_live_streams":
		body = c.Channels[category]
	case "get_vod_streams":
		body = c.Movies[category]
	case "get_series":
		body = c.Series[category]
	case "get_vod_info":
		body = c.MovieDetails[intParam(q, "vod_id")]
	case "get_series_info":
		body = c.SeriesDetails[intParam(q, "series_id")]
	case "xmltv":
		body = map[string]any{"epg_listings": c.Guide[intParam(q, "stream_id")]}
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (p *Panel) writeAuth(w http.ResponseWriter, authorized bool) {
	auth := 0
	if authorized {
		auth = 1
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_info": map[string]any{
			"username":        PanelUsername,
			"auth":            auth,
			"status":          "Active",
			"exp_date":        "1893456000",
			"is_trial":        "0",
			"active_cons":     "0",
			"max_connections": "2",
		},
		"server_info": map[string]any{
			"url":      "panel.example",
			"port":     "8080",
			"timezone": "Europe/London",
		},
	})
}

func intParam(q url.Values, key string) int64 {
	n, _ := strconv.ParseInt(q.Get(key), 10, 64)
	return n
}
