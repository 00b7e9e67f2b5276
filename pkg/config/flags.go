package config

import "github.com/spf13/pflag"

// RegisterIndexFlags registers the flags used by the indexer tool.
func RegisterIndexFlags(flags *pflag.FlagSet) {
	registerCommonFlags(flags)
	flags.StringP("corpus", "c", "", "Corpus directory (<corpus>/<subdomain>/<page>.json)")
	flags.String("scratch-dir", "", "Directory for partial segments")
	flags.Int64("flush-bytes", 0, "Approximate in-memory index size that triggers a segment flush")
	flags.Int("batch", 0, "Pages parsed per batch")
	flags.IntP("workers", "w", 0, "Parser goroutines")
	flags.String("stemmer", "", "Stemmer: porter, porter2, snowball or none")
	flags.Bool("near-duplicates", false, "Also reject simhash near-duplicates")
}

// RegisterQueryFlags registers the flags used by the query tools.
func RegisterQueryFlags(flags *pflag.FlagSet) {
	registerCommonFlags(flags)
	flags.IntP("top-k", "k", 0, "Number of results to show")
	flags.Int("cache-size", 0, "Posting lists kept in the LRU cache")
	flags.Int("query-workers", 0, "Concurrent posting list readers")
	flags.Float64("idf-floor", 0, "Stop scoring once a term's idf drops below this value")
	flags.Int("scan-limit", 0, "Postings examined per term before low-tf postings are skipped")
	flags.Float64("min-raw-tf", 0, "Raw tf below which postings past the scan limit are skipped")
	flags.Duration("timeout", 0, "Per-query scoring deadline (0 disables)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func registerCommonFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Optional config file (yaml, json or toml)")
	flags.StringP("index-dir", "i", "", "Index directory")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
}
