package config

import (
	"fmt"
	"strings"
	"time"
)

// Source mode selectors for the candidate source.
const (
	SourcePriority = "priority"
	SourceCatalog  = "catalog"
	SourceWordlist = "wordlist"
	SourceRandom   = "random"
	SourceSingle   = "single"
)

// MaxConcurrency is the hard upper bound on worker count.
const MaxConcurrency = 10

// Config holds all the configuration for the Nightshade engine.
// Fields are populated by Viper from flags, env vars and defaults.
type Config struct {
	// Target endpoint
	Target     string // Base URL of the target, scheme optional on input
	ProbePath  string // Path of the redemption-check endpoint
	TokenField string // Form field carrying the candidate token
	AjaxField  string // Optional form field marking the request as async ("" disables)

	// Session credentials (externally supplied, never persisted)
	SessionCookieName  string
	SessionCookieValue string
	CSRFCookieName     string
	CSRFCookieValue    string // Falls back to CSRFToken when empty
	CSRFToken          string // Sent as both cookie and form field
	CSRFField          string // Name of the CSRF form field
	CSRFHeader         string // Optional CSRF header name ("" disables)
	ExtraCookies       []string
	ControlToken       string // Token known to be valid, for the liveness check
	UserAgent          string

	// Engine knobs
	Concurrency      int           // 1..MaxConcurrency
	BaseDelay        time.Duration // Baseline inter-probe delay
	MaxDelay         time.Duration // Ceiling for throttle escalation
	JitterMax        time.Duration // Upper bound for random jitter
	BlockThreshold   int           // Consecutive block signals before escalation
	TimeoutThreshold int           // Consecutive timeouts before escalation
	NoThrottle       bool          // Suppress all adaptive adjustment
	RequestTimeout   time.Duration
	MaxRetries       int // Additional attempts for transient transport errors

	// Candidate source
	SourceMode   string
	WordlistFile string
	SingleCode   string
	RandomCount  int
	RandomLength int
	RandomCharset string
	RandomPrefix string
	RandomSuffix string

	// Output
	OutputFile  string // JSON results file ("" disables)
	SQLiteFile  string // SQLite results sink ("" disables)
	MarkersFile string // YAML marker rules override ("" uses defaults)

	// Logging
	Verbosity string
	NoColor   bool
	Silent    bool
}

// GetDefaultConfig returns a Config struct populated with default values.
// Viper sets these as defaults and overrides them with flags and env vars.
func GetDefaultConfig() *Config {
	return &Config{
		ProbePath:  "/redeem",
		TokenField: "voucher",
		AjaxField:  "ajax",

		SessionCookieName: "sessionid",
		CSRFCookieName:    "csrftoken",
		CSRFField:         "csrfmiddlewaretoken",
		CSRFHeader:        "X-CSRFToken",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",

		Concurrency:      1,
		BaseDelay:        500 * time.Millisecond,
		MaxDelay:         8 * time.Second,
		JitterMax:        500 * time.Millisecond,
		BlockThreshold:   3,
		TimeoutThreshold: 3,
		NoThrottle:       false,
		RequestTimeout:   10 * time.Second,
		MaxRetries:       2,

		SourceMode:    SourcePriority,
		RandomCount:   100,
		RandomLength:  6,
		RandomCharset: "upperdigits",

		Verbosity: "info",
	}
}

// Validate checks the Config struct after being populated by Viper.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target cannot be empty")
	}
	if c.ProbePath == "" || !strings.HasPrefix(c.ProbePath, "/") {
		return fmt.Errorf("probePath must start with '/'")
	}
	if c.TokenField == "" {
		return fmt.Errorf("tokenField cannot be empty")
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", MaxConcurrency, c.Concurrency)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("baseDelay cannot be negative")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("maxDelay (%s) cannot be less than baseDelay (%s)", c.MaxDelay, c.BaseDelay)
	}
	if c.JitterMax < 0 {
		return fmt.Errorf("jitterMax cannot be negative")
	}
	if c.BlockThreshold < 1 {
		return fmt.Errorf("blockThreshold must be at least 1")
	}
	if c.TimeoutThreshold < 1 {
		return fmt.Errorf("timeoutThreshold must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries cannot be negative")
	}
	switch c.SourceMode {
	case SourcePriority, SourceCatalog:
	case SourceWordlist:
		if c.WordlistFile == "" {
			return fmt.Errorf("wordlist mode requires a wordlist file")
		}
	case SourceRandom:
		if c.RandomCount < 1 {
			return fmt.Errorf("random mode requires a positive count")
		}
		if c.RandomLength < 1 {
			return fmt.Errorf("random mode requires a positive length")
		}
	case SourceSingle:
		if c.SingleCode == "" {
			return fmt.Errorf("single mode requires a code")
		}
	default:
		return fmt.Errorf("unknown source mode %q", c.SourceMode)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("userAgent cannot be empty")
	}
	if c.Verbosity == "" {
		return fmt.Errorf("verbosity cannot be empty")
	}
	return nil
}

// String returns a loggable summary without credential values.
func (c *Config) String() string {
	return fmt.Sprintf("Target: %s%s, Mode: %s, Concurrency: %d, BaseDelay: %s, MaxDelay: %s, Timeout: %s, MaxRetries: %d, NoThrottle: %t",
		c.Target, c.ProbePath, c.SourceMode, c.Concurrency, c.BaseDelay, c.MaxDelay, c.RequestTimeout, c.MaxRetries, c.NoThrottle)
}
