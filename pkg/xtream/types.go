package xtream

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ContentType selects one of the three catalogs a panel exposes.
type ContentType string

const (
	ContentLive   ContentType = "live"
	ContentMovie  ContentType = "movie"
	ContentSeries ContentType = "series"
)

// ContentTypes lists every catalog in display order.
var ContentTypes = []ContentType{ContentLive, ContentMovie, ContentSeries}

// ParseContentType accepts the canonical names plus the panel's "vod" alias.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "tv":
		return ContentLive, nil
	case "movie", "movies", "vod":
		return ContentMovie, nil
	case "series", "show", "shows":
		return ContentSeries, nil
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

func (t ContentType) String() string { return string(t) }

func (t ContentType) categoriesAction() string {
	switch t {
	case ContentMovie:
		return actionGetVODCategories
	case ContentSeries:
		return actionGetSeriesCategories
	default:
		return actionGetLiveCategories
	}
}

// AuthResult is the response to an action-less player_api.php call.
type AuthResult struct {
	UserInfo   UserInfo   `json:"user_info"`
	ServerInfo ServerInfo `json:"server_info"`
}

// UserInfo contains user account information.
type UserInfo struct {
	Username             string   `json:"username"`
	Password             string   `json:"password"`
	Message              string   `json:"message"`
	Auth                 FlexInt  `json:"auth"`
	Status               string   `json:"status"`
	ExpDate              FlexInt  `json:"exp_date"`
	IsTrial              FlexInt  `json:"is_trial"`
	ActiveConnections    FlexInt  `json:"active_cons"`
	CreatedAt            FlexInt  `json:"created_at"`
	MaxConnections       FlexInt  `json:"max_connections"`
	AllowedOutputFormats []string `json:"allowed_output_formats"`
}

// Authenticated reports whether the panel accepted the credentials.
// auth == 1 is the only success signal; status is informational.
func (u *UserInfo) Authenticated() bool {
	return u.Auth.Int() == 1
}

// ExpirationTime returns the account expiration time, zero if unlimited.
func (u *UserInfo) ExpirationTime() time.Time {
	if u.ExpDate.Int() == 0 {
		return time.Time{}
	}
	return time.Unix(u.ExpDate.Int(), 0)
}

// ServerInfo contains server configuration information.
type ServerInfo struct {
	URL            string  `json:"url"`
	Port           FlexInt `json:"port"`
	HTTPSPort      FlexInt `json:"https_port"`
	ServerProtocol string  `json:"server_protocol"`
	RTMPPort       FlexInt `json:"rtmp_port"`
	Timezone       string  `json:"timezone"`
	TimestampNow   FlexInt `json:"timestamp_now"`
	TimeNow        string  `json:"time_now"`
}

// Category groups items of one content type. Its id is opaque.
type Category struct {
	ID       FlexString `json:"category_id"`
	Name     string     `json:"category_name"`
	ParentID FlexInt    `json:"parent_id"`
	Logo     string     `json:"category_logo,omitempty"`
}

// Channel is a live stream.
type Channel struct {
	Num               FlexInt    `json:"num"`
	Name              string     `json:"name"`
	StreamType        string     `json:"stream_type"`
	StreamID          FlexInt    `json:"stream_id"`
	StreamIcon        string     `json:"stream_icon"`
	EPGChannelID      string     `json:"epg_channel_id"`
	Added             FlexInt    `json:"added"`
	CategoryID        FlexString `json:"category_id"`
	CustomSID         string     `json:"custom_sid"`
	TVArchive         FlexInt    `json:"tv_archive"`
	DirectSource      string     `json:"direct_source"`
	TVArchiveDuration FlexInt    `json:"tv_archive_duration"`
}

// HasArchive reports whether catch-up is available for the channel.
func (c *Channel) HasArchive() bool {
	return c.TVArchive.Int() == 1
}

// Movie is a video-on-demand item as listed by get_vod_streams.
type Movie struct {
	Num                FlexInt    `json:"num"`
	Name               string     `json:"name"`
	StreamType         string     `json:"stream_type"`
	StreamID           FlexInt    `json:"stream_id"`
	StreamIcon         string     `json:"stream_icon"`
	Rating             FlexFloat  `json:"rating"`
	Rating5Based       FlexFloat  `json:"rating_5based"`
	Added              FlexInt    `json:"added"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	CustomSID          string     `json:"custom_sid"`
	DirectSource       string     `json:"direct_source"`
}

// MovieDetail is the get_vod_info response.
type MovieDetail struct {
	Info  MovieInfo `json:"info"`
	Movie Movie     `json:"movie_data"`
}

// MovieInfo is the metadata block of a movie detail.
type MovieInfo struct {
	Name           string    `json:"name"`
	OriginalName   string    `json:"o_name"`
	MovieImage     string    `json:"movie_image"`
	CoverBig       string    `json:"cover_big"`
	TMDBID         FlexInt   `json:"tmdb_id"`
	YoutubeTrailer string    `json:"youtube_trailer"`
	Genre          string    `json:"genre"`
	Plot           string    `json:"plot"`
	Cast           string    `json:"cast"`
	Actors         string    `json:"actors"`
	Director       string    `json:"director"`
	Country        string    `json:"country"`
	MPAARating     string    `json:"mpaa_rating"`
	Rating         FlexFloat `json:"rating"`
	ReleaseDate    string    `json:"releasedate"`
	Duration       string    `json:"duration"`
	DurationSecs   FlexInt   `json:"duration_secs"`
	Bitrate        FlexInt   `json:"bitrate"`
}

// Series is a TV series as listed by get_series.
type Series struct {
	Num            FlexInt    `json:"num"`
	Name           string     `json:"name"`
	SeriesID       FlexInt    `json:"series_id"`
	Cover          string     `json:"cover"`
	Plot           string     `json:"plot"`
	Cast           string     `json:"cast"`
	Director       string     `json:"director"`
	Genre          string     `json:"genre"`
	ReleaseDate    string     `json:"releaseDate"`
	LastModified   FlexInt    `json:"last_modified"`
	Rating         FlexFloat  `json:"rating"`
	Rating5Based   FlexFloat  `json:"rating_5based"`
	BackdropPath   FlexList   `json:"backdrop_path"`
	YoutubeTrailer string     `json:"youtube_trailer"`
	EpisodeRunTime string     `json:"episode_run_time"`
	CategoryID     FlexString `json:"category_id"`
}

// SeriesDetail is the get_series_info response. Episodes are keyed by the
// season number encoded as a string.
type SeriesDetail struct {
	Seasons  []Season             `json:"seasons"`
	Info     SeriesInfo           `json:"info"`
	Episodes map[string][]Episode `json:"episodes"`
}

// SeasonNumbers returns the seasons that have episodes, ascending.
// Keys that are not integers are ignored.
func (d *SeriesDetail) SeasonNumbers() []int {
	seasons := make([]int, 0, len(d.Episodes))
	for key, episodes := range d.Episodes {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || len(episodes) == 0 {
			continue
		}
		seasons = append(seasons, n)
	}
	slices.Sort(seasons)
	return seasons
}

// EpisodesFor returns the episodes of a season ordered by episode number.
func (d *SeriesDetail) EpisodesFor(season int) []Episode {
	episodes := slices.Clone(d.Episodes[strconv.Itoa(season)])
	slices.SortStableFunc(episodes, func(a, b Episode) int {
		return int(a.EpisodeNum.Int() - b.EpisodeNum.Int())
	})
	return episodes
}

// Season describes one season of a series.
type Season struct {
	AirDate      string  `json:"air_date"`
	EpisodeCount FlexInt `json:"episode_count"`
	ID           FlexInt `json:"id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	SeasonNumber FlexInt `json:"season_number"`
	Cover        string  `json:"cover"`
	CoverBig     string  `json:"cover_big"`
}

// SeriesInfo is the metadata block of a series detail.
type SeriesInfo struct {
	Name           string     `json:"name"`
	Cover          string     `json:"cover"`
	Plot           string     `json:"plot"`
	Cast           string     `json:"cast"`
	Director       string     `json:"director"`
	Genre          string     `json:"genre"`
	ReleaseDate    string     `json:"releaseDate"`
	Rating         FlexFloat  `json:"rating"`
	BackdropPath   FlexList   `json:"backdrop_path"`
	EpisodeRunTime string     `json:"episode_run_time"`
	CategoryID     FlexString `json:"category_id"`
}

// Episode is a single episode of a series. Its id is unique within the series.
type Episode struct {
	ID                 FlexString  `json:"id"`
	EpisodeNum         FlexInt     `json:"episode_num"`
	Title              string      `json:"title"`
	ContainerExtension string      `json:"container_extension"`
	Info               EpisodeInfo `json:"info"`
	Added              FlexInt     `json:"added"`
	Season             FlexInt     `json:"season"`
}

// EpisodeInfo contains episode metadata.
type EpisodeInfo struct {
	MovieImage   string    `json:"movie_image"`
	Plot         string    `json:"plot"`
	ReleaseDate  string    `json:"releasedate"`
	Rating       FlexFloat `json:"rating"`
	Duration     string    `json:"duration"`
	DurationSecs FlexInt   `json:"duration_secs"`
}

// EPGProgram is one program guide entry.
type EPGProgram struct {
	ID             FlexString `json:"id"`
	EPGID          FlexString `json:"epg_id"`
	Title          string     `json:"title"`
	Lang           string     `json:"lang"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Description    string     `json:"description"`
	ChannelID      string     `json:"channel_id"`
	StartTimestamp FlexInt    `json:"start_timestamp"`
	StopTimestamp  FlexInt    `json:"stop_timestamp"`
}

const epgTimeLayout = "2006-01-02 15:04:05"

// StartTime returns the program start time.
func (e *EPGProgram) StartTime() time.Time {
	return programTime(e.StartTimestamp, e.Start)
}

// EndTime returns the program end time.
func (e *EPGProgram) EndTime() time.Time {
	return programTime(e.StopTimestamp, e.End)
}

func programTime(ts FlexInt, s string) time.Time {
	if ts.Int() > 0 {
		return time.Unix(ts.Int(), 0)
	}
	if t, err := time.Parse(epgTimeLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

// epgEnvelope is the wrapped form some panels use for guide data.
type epgEnvelope struct {
	Listings []EPGProgram `json:"epg_listings"`
}

// FlexInt handles JSON numbers that may be strings or integers.
type FlexInt int64

// Int returns the integer value.
func (f FlexInt) Int() int64 {
	return int64(f)
}

// String formats the value in base 10.
func (f FlexInt) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// UnmarshalJSON handles both string and number JSON values.
// Unparseable input decodes to zero.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = FlexInt(i)
			return nil
		}
		if fl, err := n.Float64(); err == nil {
			*f = FlexInt(int64(fl))
			return nil
		}
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			*f = FlexInt(i)
			return nil
		}
	}

	*f = 0
	return nil
}

// FlexFloat handles JSON numbers that may be strings or floats.
type FlexFloat float64

// Float returns the float value.
func (f FlexFloat) Float() float64 {
	return float64(f)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = FlexFloat(v)
			return nil
		}
	}

	*f = 0
	return nil
}

// FlexString handles JSON values that may be strings or numbers.
type FlexString string

// String returns the string value.
func (f FlexString) String() string {
	return string(f)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	*f = ""
	return nil
}

// FlexList handles fields that panels send either as a list of strings or
// as a single string.
type FlexList []string

// First returns the first element or "".
func (f FlexList) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// UnmarshalJSON accepts ["a","b"], "a" and null.
func (f *FlexList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		*f = FlexList{s}
		return nil
	}

	*f = nil
	return nil
}
