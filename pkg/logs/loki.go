package logs

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	promcfg "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/Alijeyrad/franchise_backend/config"
)

// newLokiHandler ships records to Loki's push API in batches.
func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, func(), error) {
	lc := cfg.Logging.Output.Loki
	lokiCfg, err := loki.NewDefaultConfig(strings.TrimRight(lc.Endpoint, "/") + "/loki/api/v1/push")
	if err != nil {
		return nil, nil, fmt.Errorf("loki config: %w", err)
	}
	lokiCfg.TenantID = lc.TenantID
	if lc.Username != "" {
		lokiCfg.Client.BasicAuth = &promcfg.BasicAuth{
			Username: lc.Username,
			Password: promcfg.Secret(lc.Password),
		}
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loki client: %w", err)
	}
	h := slogloki.Option{Level: level, Client: client}.NewLokiHandler()
	return h, client.Stop, nil
}
