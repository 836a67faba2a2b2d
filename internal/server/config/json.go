package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pubflow/internal/flagx"
	"github.com/dmitrijs2005/pubflow/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations use timex.Duration so
// both "1s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	MetricsAddr      string `json:"metrics_addr"`
	LogLevel         string `json:"log_level"`
	DatabaseDSN      string `json:"database_dsn"`

	Workers         int            `json:"workers"`
	WorkerQueueSize int            `json:"worker_queue_size"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`

	BaseURL           string `json:"base_url"`
	BlogName          string `json:"blog_name"`
	AutoApprove       bool   `json:"auto_approve"`
	URLTitlePattern   string `json:"url_title_pattern"`
	URLTitleMaxLength int    `json:"url_title_max_length"`
	SlugMaxAttempts   int    `json:"slug_max_attempts"`
	SlugClaimRetries  int    `json:"slug_claim_retries"`
	MaxTitleLength    int    `json:"max_title_length"`

	PingbackEnabled         bool           `json:"pingback_enabled"`
	TrackbackEnabled        bool           `json:"trackback_enabled"`
	PingSearchEngineEnabled bool           `json:"ping_search_engine_enabled"`
	SearchPingURL           string         `json:"search_ping_url"`
	LinkbackTimeout         timex.Duration `json:"linkback_timeout"`
	LinkbackRetries         int            `json:"linkback_retries"`
	LinkbackBackoff         timex.Duration `json:"linkback_backoff"`
	ExcerptLength           int            `json:"excerpt_length"`

	EntryAddedEnabled   bool   `json:"entry_added_enabled"`
	EntryUpdatedEnabled bool   `json:"entry_updated_enabled"`
	EntryAddedSubject   string `json:"entry_added_subject"`
	EntryAddedBody      string `json:"entry_added_body"`
	EntryUpdatedSubject string `json:"entry_updated_subject"`
	EntryUpdatedBody    string `json:"entry_updated_body"`
	EmailFromName       string `json:"email_from_name"`
	EmailFromAddress    string `json:"email_from_address"`

	RedisAddr          string `json:"redis_addr"`
	RedisPassword      string `json:"redis_password"`
	RedisDB            int    `json:"redis_db"`
	NotificationStream string `json:"notification_stream"`
	StreamMaxLen       int64  `json:"stream_max_len"`

	ElasticAddresses  []string `json:"elastic_addresses"`
	ElasticUsername   string   `json:"elastic_username"`
	ElasticPassword   string   `json:"elastic_password"`
	ElasticIndex      string   `json:"elastic_index"`
	ElasticMaxRetries int      `json:"elastic_max_retries"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3Prefix       string `json:"s3_prefix"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC: c.EndpointAddrGRPC,
		MetricsAddr:      c.MetricsAddr,
		LogLevel:         c.LogLevel,
		DatabaseDSN:      c.DatabaseDSN,

		Workers:         c.Workers,
		WorkerQueueSize: c.WorkerQueueSize,
		ShutdownTimeout: timex.Duration{Duration: c.ShutdownTimeout},

		BaseURL:           c.BaseURL,
		BlogName:          c.BlogName,
		AutoApprove:       c.AutoApprove,
		URLTitlePattern:   c.URLTitlePattern,
		URLTitleMaxLength: c.URLTitleMaxLength,
		SlugMaxAttempts:   c.SlugMaxAttempts,
		SlugClaimRetries:  c.SlugClaimRetries,
		MaxTitleLength:    c.MaxTitleLength,

		PingbackEnabled:         c.PingbackEnabled,
		TrackbackEnabled:        c.TrackbackEnabled,
		PingSearchEngineEnabled: c.PingSearchEngineEnabled,
		SearchPingURL:           c.SearchPingURL,
		LinkbackTimeout:         timex.Duration{Duration: c.LinkbackTimeout},
		LinkbackRetries:         c.LinkbackRetries,
		LinkbackBackoff:         timex.Duration{Duration: c.LinkbackBackoff},
		ExcerptLength:           c.ExcerptLength,

		EntryAddedEnabled:   c.EntryAddedEnabled,
		EntryUpdatedEnabled: c.EntryUpdatedEnabled,
		EntryAddedSubject:   c.EntryAddedSubject,
		EntryAddedBody:      c.EntryAddedBody,
		EntryUpdatedSubject: c.EntryUpdatedSubject,
		EntryUpdatedBody:    c.EntryUpdatedBody,
		EmailFromName:       c.EmailFromName,
		EmailFromAddress:    c.EmailFromAddress,

		RedisAddr:          c.RedisAddr,
		RedisPassword:      c.RedisPassword,
		RedisDB:            c.RedisDB,
		NotificationStream: c.NotificationStream,
		StreamMaxLen:       c.StreamMaxLen,

		ElasticAddresses:  c.ElasticAddresses,
		ElasticUsername:   c.ElasticUsername,
		ElasticPassword:   c.ElasticPassword,
		ElasticIndex:      c.ElasticIndex,
		ElasticMaxRetries: c.ElasticMaxRetries,

		S3RootUser:     c.S3RootUser,
		S3RootPassword: c.S3RootPassword,
		S3Bucket:       c.S3Bucket,
		S3Region:       c.S3Region,
		S3BaseEndpoint: c.S3BaseEndpoint,
		S3Prefix:       c.S3Prefix,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.MetricsAddr = j.MetricsAddr
	c.LogLevel = j.LogLevel
	c.DatabaseDSN = j.DatabaseDSN

	c.Workers = j.Workers
	c.WorkerQueueSize = j.WorkerQueueSize
	c.ShutdownTimeout = j.ShutdownTimeout.Duration

	c.BaseURL = j.BaseURL
	c.BlogName = j.BlogName
	c.AutoApprove = j.AutoApprove
	c.URLTitlePattern = j.URLTitlePattern
	c.URLTitleMaxLength = j.URLTitleMaxLength
	c.SlugMaxAttempts = j.SlugMaxAttempts
	c.SlugClaimRetries = j.SlugClaimRetries
	c.MaxTitleLength = j.MaxTitleLength

	c.PingbackEnabled = j.PingbackEnabled
	c.TrackbackEnabled = j.TrackbackEnabled
	c.PingSearchEngineEnabled = j.PingSearchEngineEnabled
	c.SearchPingURL = j.SearchPingURL
	c.LinkbackTimeout = j.LinkbackTimeout.Duration
	c.LinkbackRetries = j.LinkbackRetries
	c.LinkbackBackoff = j.LinkbackBackoff.Duration
	c.ExcerptLength = j.ExcerptLength

	c.EntryAddedEnabled = j.EntryAddedEnabled
	c.EntryUpdatedEnabled = j.EntryUpdatedEnabled
	c.EntryAddedSubject = j.EntryAddedSubject
	c.EntryAddedBody = j.EntryAddedBody
	c.EntryUpdatedSubject = j.EntryUpdatedSubject
	c.EntryUpdatedBody = j.EntryUpdatedBody
	c.EmailFromName = j.EmailFromName
	c.EmailFromAddress = j.EmailFromAddress

	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.NotificationStream = j.NotificationStream
	c.StreamMaxLen = j.StreamMaxLen

	c.ElasticAddresses = j.ElasticAddresses
	c.ElasticUsername = j.ElasticUsername
	c.ElasticPassword = j.ElasticPassword
	c.ElasticIndex = j.ElasticIndex
	c.ElasticMaxRetries = j.ElasticMaxRetries

	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3Prefix = j.S3Prefix
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Keys absent from the file keep their current value. Without a
// config flag nothing is loaded; an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
