package backend

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvURL     = "PARTSHOP_URL"
	EnvAnonKey = "PARTSHOP_ANON_KEY"

	// DefaultURL is the local development server. There is no default key.
	DefaultURL = "http://localhost:8080"
)

// ErrMissingConfig is returned when the endpoint URL or the anon key is empty.
var ErrMissingConfig = errors.New("backend: missing PARTSHOP_URL or PARTSHOP_ANON_KEY")

// Config locates the data service.
type Config struct {
	URL     string
	AnonKey string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// LoadConfig reads PARTSHOP_URL and PARTSHOP_ANON_KEY from the environment.
// The URL falls back to DefaultURL; the key has no fallback.
func LoadConfig() Config {
	v := viper.New()
	v.SetDefault(EnvURL, DefaultURL)
	v.SetDefault(EnvAnonKey, "")
	v.AutomaticEnv()
	return Config{
		URL:     v.GetString(EnvURL),
		AnonKey: v.GetString(EnvAnonKey),
	}
}

// Options are the session settings of a handle. Handles built by NewClient
// never refresh, persist or discover sessions: every request carries the
// credential it was built with and nothing more.
type Options struct {
	AutoRefreshToken   bool
	PersistSession     bool
	DetectSessionInURL bool
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
