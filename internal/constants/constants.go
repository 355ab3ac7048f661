package constants

import "time"

var WaitConfig = struct {
	PollInterval time.Duration
	Budget       time.Duration
}{
	PollInterval: 250 * time.Millisecond, // panel container poll step
	Budget:       10 * time.Second,       // give up waiting after this
}

var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Jitter:      250 * time.Millisecond,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    1 * time.Hour, // dedicated timeout for 429 responses
	HealthCheckInterval: 10 * time.Minute,
}

var InnertubeConfig = struct {
	BaseURL       string
	ClientName    string
	ClientVersion string
	UserAgent     string
	HL            string
	GL            string
	Timeout       time.Duration
	RateInterval  time.Duration
	RateBurst     int
}{
	BaseURL:       "https://www.youtube.com/youtubei/v1",
	ClientName:    "MWEB",
	ClientVersion: "2.20250219.01.00",
	UserAgent:     "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	HL:            "en",
	GL:            "US",
	Timeout:       10 * time.Second,
	RateInterval:  200 * time.Millisecond,
	RateBurst:     5,
}

var OfficialAPIConfig = struct {
	DailyQuotaLimit   int
	QuotaSafetyMargin int
	ListCost          int
}{
	DailyQuotaLimit:   10000,
	QuotaSafetyMargin: 500,
	ListCost:          1, // videos.list and channels.list both cost 1 unit
}

var ScraperConfig = struct {
	BaseURL string
	Timeout time.Duration
}{
	BaseURL: "https://www.youtube.com",
	Timeout: 15 * time.Second,
}

var BridgeConfig = struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
}{
	HandshakeTimeout: 10 * time.Second,
	WriteTimeout:     10 * time.Second,
	PongTimeout:      60 * time.Second,
	PingInterval:     30 * time.Second,
	MaxMessageSize:   4 << 20, // page snapshots can be large
}

var CacheTTL = struct {
	ChannelLookup time.Duration
}{
	ChannelLookup: 20 * time.Minute, // handle resolution via the look-aside cache
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}

var LogLimits = struct {
	TextPreview int
}{
	TextPreview: 80, // longest text fragment to attach to a log line
}
