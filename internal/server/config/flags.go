package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/pubflow/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Only flags
// declared here are consumed, so -c/-config and foreign flags pass through.
//
// Short forms kept for the common settings:
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics HTTP bind address
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Durations are Go duration strings ("5s").
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to serve /metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")

	fs.IntVar(&config.Workers, "workers", config.Workers, "fan-out worker count")
	fs.IntVar(&config.WorkerQueueSize, "worker-queue", config.WorkerQueueSize, "fan-out queue size")
	fs.DurationVar(&config.ShutdownTimeout, "shutdown-timeout", config.ShutdownTimeout, "graceful shutdown timeout")

	fs.StringVar(&config.BaseURL, "base-url", config.BaseURL, "public base URL of the blog")
	fs.StringVar(&config.BlogName, "blog-name", config.BlogName, "blog name used in link-backs and notifications")
	fs.BoolVar(&config.AutoApprove, "auto-approve", config.AutoApprove, "approve submitted entries without a workflow")
	fs.StringVar(&config.URLTitlePattern, "url-title-pattern", config.URLTitlePattern, "regexp a trusted url title must match")
	fs.IntVar(&config.URLTitleMaxLength, "url-title-max-length", config.URLTitleMaxLength, "maximum url title length")
	fs.IntVar(&config.SlugMaxAttempts, "slug-max-attempts", config.SlugMaxAttempts, "maximum numeric suffix tried")
	fs.IntVar(&config.SlugClaimRetries, "slug-claim-retries", config.SlugClaimRetries, "retries after a lost url title race")
	fs.IntVar(&config.MaxTitleLength, "max-title-length", config.MaxTitleLength, "maximum entry title length")

	fs.BoolVar(&config.PingbackEnabled, "pingback", config.PingbackEnabled, "send pingbacks")
	fs.BoolVar(&config.TrackbackEnabled, "trackback", config.TrackbackEnabled, "send trackbacks")
	fs.BoolVar(&config.PingSearchEngineEnabled, "search-ping", config.PingSearchEngineEnabled, "ping the blog search service")
	fs.StringVar(&config.SearchPingURL, "search-ping-url", config.SearchPingURL, "blog search ping URL")
	fs.DurationVar(&config.LinkbackTimeout, "linkback-timeout", config.LinkbackTimeout, "per-attempt link-back timeout")
	fs.IntVar(&config.LinkbackRetries, "linkback-retries", config.LinkbackRetries, "link-back retries on transient failure")
	fs.DurationVar(&config.LinkbackBackoff, "linkback-backoff", config.LinkbackBackoff, "initial link-back retry backoff")
	fs.IntVar(&config.ExcerptLength, "excerpt-length", config.ExcerptLength, "excerpt length in characters")

	fs.BoolVar(&config.EntryAddedEnabled, "notify-added", config.EntryAddedEnabled, "notify subscribers of new entries")
	fs.BoolVar(&config.EntryUpdatedEnabled, "notify-updated", config.EntryUpdatedEnabled, "notify subscribers of updated entries")
	fs.StringVar(&config.EmailFromName, "from-name", config.EmailFromName, "notification sender name")
	fs.StringVar(&config.EmailFromAddress, "from-address", config.EmailFromAddress, "notification sender address")

	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database")
	fs.StringVar(&config.NotificationStream, "stream", config.NotificationStream, "notification stream name")
	fs.Int64Var(&config.StreamMaxLen, "stream-max-len", config.StreamMaxLen, "approximate notification stream length cap")

	elastic := fs.String("es-addresses", strings.Join(config.ElasticAddresses, ","), "comma separated Elasticsearch addresses")
	fs.StringVar(&config.ElasticUsername, "es-username", config.ElasticUsername, "Elasticsearch username")
	fs.StringVar(&config.ElasticPassword, "es-password", config.ElasticPassword, "Elasticsearch password")
	fs.StringVar(&config.ElasticIndex, "es-index", config.ElasticIndex, "Elasticsearch index")
	fs.IntVar(&config.ElasticMaxRetries, "es-max-retries", config.ElasticMaxRetries, "Elasticsearch client retries")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Prefix, "s3-prefix", config.S3Prefix, "S3 key prefix for asset records")

	if err := flagx.ParseFiltered(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	config.ElasticAddresses = splitList(*elastic)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
