package xtream

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCredentials_BaseURL(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{"plain", Credentials{Host: "panel.example", Port: "8080"}, "http://panel.example:8080"},
		{"trailing slash", Credentials{Host: "panel.example/", Port: "8080"}, "http://panel.example:8080"},
		{"scheme in host", Credentials{Host: "https://panel.example//", Port: "443"}, "https://panel.example:443"},
		{"explicit scheme", Credentials{Scheme: "HTTPS", Host: "panel.example", Port: "8443"}, "https://panel.example:8443"},
		{"whitespace", Credentials{Host: "  panel.example ", Port: " 80 "}, "http://panel.example:80"},
		{"no port", Credentials{Host: "panel.example"}, "http://panel.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.BaseURL())
		})
	}
}

func TestCredentials_Validate(t *testing.T) {
	err := Credentials{Host: "h", Port: " ", Username: "u"}.Validate()
	var cfgErr *ConfigurationError
	if assert.True(t, errors.As(err, &cfgErr)) {
		assert.Equal(t, []string{"port", "password"}, cfgErr.Fields)
	}
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.NoError(t, Credentials{Host: "h", Port: "1", Username: "u", Password: "p"}.Validate())
}

func TestCredentials_Normalized(t *testing.T) {
	c := Credentials{Scheme: " https ", Host: " 127.0.0.1 ", Port: " 80", Username: " alice ", Password: "secret\t"}
	assert.Equal(t, Credentials{Scheme: "https", Host: "127.0.0.1", Port: "80", Username: "alice", Password: "secret"}, c.Normalized())
	assert.Equal(t, "http://127.0.0.1:8080/live/alice/secret/7.m3u8",
		LiveStreamURL(Credentials{Host: "127.0.0.1", Port: "8080", Username: " alice ", Password: "secret "}.Normalized(), "7"))
}

func TestProperty_Credentials(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	blankOr := func(g gopter.Gen) gopter.Gen {
		return gen.OneGenOf(g, gen.OneConstOf("", " ", "\t", "  \n"))
	}

	properties.Property("IsValid is false iff a field is blank after trim", prop.ForAll(
		func(host, port, user, pass string) bool {
			c := Credentials{Host: host, Port: port, Username: user, Password: pass}
			anyBlank := strings.TrimSpace(host) == "" || strings.TrimSpace(port) == "" ||
				strings.TrimSpace(user) == "" || strings.TrimSpace(pass) == ""
			return c.IsValid() == !anyBlank
		},
		blankOr(gen.Identifier()),
		blankOr(gen.NumString()),
		blankOr(gen.AlphaString()),
		blankOr(gen.AnyString()),
	))

	properties.Property("BaseURL is scheme://host:port without doubled slashes", prop.ForAll(
		func(host string, port int, slashes int) bool {
			c := Credentials{Host: host + strings.Repeat("/", slashes), Port: strconv.Itoa(port), Username: "u", Password: "p"}
			base := c.BaseURL()
			return base == "http://"+host+":"+strconv.Itoa(port) &&
				!strings.HasSuffix(base, "/") &&
				!strings.Contains(strings.TrimPrefix(base, "http://"), "//")
		},
		gen.Identifier(),
		gen.IntRange(1, 65535),
		gen.IntRange(0, 3),
	))

	properties.Property("stream URLs are pure", prop.ForAll(
		func(user, pass, id, ext string) bool {
			c := Credentials{Host: "panel", Port: "80", Username: user, Password: pass}
			return LiveStreamURL(c, id) == LiveStreamURL(c, id) &&
				MovieStreamURL(c, id, ext) == MovieStreamURL(c, id, ext) &&
				EpisodeStreamURL(c, id, ext) == EpisodeStreamURL(c, id, ext)
		},
		gen.AlphaString(), gen.AlphaString(), gen.NumString(), gen.OneConstOf("mp4", "mkv", ""),
	))

	properties.TestingRun(t)
}

func TestStreamURLs(t *testing.T) {
	c := Credentials{Host: "panel.example", Port: "8080", Username: "alice", Password: "pw"}

	assert.Equal(t, "http://panel.example:8080/live/alice/pw/101.m3u8", LiveStreamURL(c, "101"))
	assert.Equal(t, "http://panel.example:8080/movie/alice/pw/7.mkv", MovieStreamURL(c, "7", "mkv"))
	assert.Equal(t, "http://panel.example:8080/movie/alice/pw/7.mp4", MovieStreamURL(c, "7", ""))
	assert.Equal(t, "http://panel.example:8080/series/alice/pw/21.avi", EpisodeStreamURL(c, "21", ".avi"))
}
