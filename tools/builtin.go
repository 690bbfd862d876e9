package tools

import (
	"log/slog"
	"net/http"

	"toolchat/config"
)

// RegisterBuiltins registers the built-in tool families. Families whose
// credentials are not configured are skipped with a log line rather than
// failing startup; products is nil when no catalogue is available.
func RegisterBuiltins(reg *Registry, cfg *config.Config, products ProductSearcher, client *http.Client, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "tools")

	if products != nil {
		if err := registerProducts(reg, products); err != nil {
			return err
		}
	}

	if key := cfg.Secret(cfg.OpsGenie.Credential); key != "" {
		if err := registerOpsGenie(reg, NewOpsGenie(cfg.OpsGenie.BaseURL, key, client)); err != nil {
			return err
		}
	} else {
		logger.Info("opsgenie tools disabled: no API key", "credential", cfg.OpsGenie.Credential)
	}

	token := cfg.Secret(cfg.Confluence.Credential)
	if cfg.Confluence.BaseURL != "" && cfg.Confluence.Email != "" && token != "" {
		if err := registerConfluence(reg, NewConfluence(cfg.Confluence.BaseURL, cfg.Confluence.Email, token, client)); err != nil {
			return err
		}
	} else {
		logger.Info("confluence tools disabled: base_url, email or API token missing")
	}

	if cfg.Wikipedia.Enabled {
		if err := registerWikipedia(reg, NewWikipedia(cfg.Wikipedia.BaseURL, client)); err != nil {
			return err
		}
	}

	logger.Debug("built-in tools registered", "count", reg.Len())
	return nil
}
