package app

import (
	"context"
	"fmt"
	"time"

	"github.com/terrabridge/feature-bridge/internal/config"
	"github.com/terrabridge/feature-bridge/internal/logger"
	"github.com/terrabridge/feature-bridge/internal/mirror"
	"github.com/terrabridge/feature-bridge/internal/storage"
	"github.com/terrabridge/feature-bridge/pkg/featureservice"
	"github.com/terrabridge/feature-bridge/pkg/httpclient"
	"github.com/terrabridge/feature-bridge/pkg/layers"
	"github.com/terrabridge/feature-bridge/pkg/publishers"
)

// Mirror represents the layer-mirroring runtime. It manages the sync loop,
// coordinating between layer clients, the mirror service, and publishers. It
// also handles storage initialization and cleanup.
type Mirror struct {
	cfg          *config.Config
	layerReg     *layers.Registry
	fanout       *publishers.Fanout
	syncService  *mirror.Service
	syncInterval time.Duration
	log          logger.Logger
	store        storage.Store
}

// NewMirror builds a mirror runtime from config files.
func NewMirror(ctx context.Context, cfg *config.Config, log logger.Logger) (*Mirror, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	layerReg, err := layers.LoadRegistry(cfg.LayersFile)
	if err != nil {
		return nil, fmt.Errorf("load layers registry: %w", err)
	}
	layerList := layerReg.Enabled()
	layerIDs := make([]string, 0, len(layerList))
	for _, l := range layerList {
		layerIDs = append(layerIDs, l.ID)
	}
	log.InfoObj("layers registry loaded", "layers_meta", map[string]any{
		"count": len(layerIDs),
		"ids":   layerIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubRegistry := publishers.DefaultRegistry()
	pubClients, err := publishers.BuildAll(ctx, pubRegistry, enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	transport := httpclient.NewFormTransport(cfg.HTTPTimeout)
	factory := layerClientFactory(cfg, transport, log)
	syncService := mirror.NewService(factory, fanout, log, store)

	return &Mirror{
		cfg:          cfg,
		layerReg:     layerReg,
		fanout:       fanout,
		syncService:  syncService,
		syncInterval: cfg.SyncInterval,
		log:          log,
		store:        store,
	}, nil
}

// layerClientFactory builds a feature service client per layer, filling in
// application-level defaults where a layer config is silent.
func layerClientFactory(cfg *config.Config, transport featureservice.Transport, log logger.Logger) mirror.SourceFactory {
	return func(layer layers.LayerConfig) mirror.FeatureSource {
		idField := layer.IDField
		if idField == "" {
			idField = cfg.IDField
		}
		token := layer.Token
		if token == "" {
			token = cfg.ServiceToken
		}
		return featureservice.NewClient(featureservice.Config{
			URL:     layer.URL,
			IDField: idField,
			Token:   token,
		}, transport, nil, log)
	}
}

// Run starts the sync loop until the context is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	if m == nil || m.syncService == nil {
		return fmt.Errorf("mirror is not initialized")
	}
	defer m.closeStore()
	enabled := m.layerReg.Enabled()
	if len(enabled) == 0 {
		m.log.WarnObj("no layers configured; mirror idle", "layers_file", m.cfg.LayersFile)
		<-ctx.Done()
		return ctx.Err()
	}

	m.log.InfoObj("mirror loop starting", "mirror_state", map[string]any{
		"layers_count":     len(enabled),
		"publishers_count": m.fanout.Size(),
		"sync_interval":    m.syncInterval.String(),
	})

	if err := m.runOnce(ctx, enabled); err != nil {
		m.log.ErrorObj("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(m.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.InfoObj("mirror loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := m.runOnce(ctx, enabled); err != nil {
				m.log.ErrorObj("scheduled sync failed", "error", err)
			}
		}
	}
}

// runOnce performs a single sync pass across all enabled layers.
func (m *Mirror) runOnce(ctx context.Context, cfgs []layers.LayerConfig) error {
	start := time.Now()
	m.log.InfoObj("sync started", "sync_meta", map[string]any{
		"layers_count": len(cfgs),
		"started_at":   start.UTC(),
	})
	if err := m.syncService.Run(ctx, cfgs); err != nil {
		return err
	}
	m.log.InfoObj("sync completed", "sync_meta", map[string]any{
		"layers_count": len(cfgs),
		"elapsed_ms":   time.Since(start).Milliseconds(),
	})
	return nil
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (m *Mirror) closeStore() {
	if m == nil || m.store == nil {
		return
	}
	if err := m.store.Close(); err != nil {
		m.log.ErrorObj("storage close failed", "error", err)
	}
}
