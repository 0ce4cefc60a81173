package collector

import (
	"fmt"
	"log/slog"
	"time"

	"news-digest/pkg/config"
	"news-digest/pkg/httpclient"
	"news-digest/pkg/sources"
)

// FromConfig builds one Source per configured entry. Each source gets its own
// HTTP client so header presets and timeouts stay per source.
func FromConfig(cfgs []config.Source, timeout time.Duration, logger *slog.Logger) ([]Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]Source, 0, len(cfgs))
	for _, sc := range cfgs {
		client := httpclient.NewClient(httpclient.ParseType(sc.Client), timeout)
		adapter, err := sources.New(sources.Kind(sc.Kind), client, sources.Options{
			MaxArticles: sc.MaxArticles,
			Logger:      logger.With("source", sc.Name),
		})
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		out = append(out, Source{Name: sc.Name, Seed: sc.URL, Adapter: adapter})
	}
	return out, nil
}
