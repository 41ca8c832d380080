package xtream

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultScheme is used when neither Credentials.Scheme nor the host carries one.
const DefaultScheme = "http"

// Credentials are the login parameters for a panel.
// They are immutable once a session has been created from them.
type Credentials struct {
	Scheme   string `json:"scheme,omitempty" mapstructure:"scheme"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// Normalized returns the credentials with surrounding whitespace removed
// from every field. Clients and URL builders only ever see normalized values.
func (c Credentials) Normalized() Credentials {
	return Credentials{
		Scheme:   strings.TrimSpace(c.Scheme),
		Host:     strings.TrimSpace(c.Host),
		Port:     strings.TrimSpace(c.Port),
		Username: strings.TrimSpace(c.Username),
		Password: strings.TrimSpace(c.Password),
	}
}

// IsValid reports whether host, port, username and password are all
// non-blank after trimming whitespace.
func (c Credentials) IsValid() bool {
	return len(c.blankFields()) == 0
}

// Validate returns a *ConfigurationError naming the blank fields, or nil.
func (c Credentials) Validate() error {
	if blank := c.blankFields(); len(blank) > 0 {
		return &ConfigurationError{Fields: blank}
	}
	return nil
}

func (c Credentials) blankFields() []string {
	var blank []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"host", c.Host},
		{"port", c.Port},
		{"username", c.Username},
		{"password", c.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			blank = append(blank, f.name)
		}
	}
	return blank
}

// BaseURL returns scheme://host:port. A scheme typed into the host field
// ("https://panel.example") is honoured and trailing slashes are dropped so
// that paths can be appended without doubling the separator.
func (c Credentials) BaseURL() string {
	scheme := strings.TrimSpace(c.Scheme)
	host := strings.TrimSpace(c.Host)
	if i := strings.Index(host, "://"); i >= 0 {
		if scheme == "" {
			scheme = host[:i]
		}
		host = host[i+3:]
	}
	if scheme == "" {
		scheme = DefaultScheme
	}
	scheme = strings.ToLower(strings.TrimSuffix(scheme, "://"))
	host = strings.TrimRight(host, "/")

	port := strings.TrimSpace(c.Port)
	if port == "" {
		return scheme + "://" + host
	}
	return fmt.Sprintf("%s://%s:%s", scheme, host, port)
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.BaseURL()),
		slog.String("username", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}
