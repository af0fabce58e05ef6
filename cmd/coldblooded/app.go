package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/broker/kafka"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/cache/rediscache"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/config"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/integrations/github"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/integrations/openweather"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

// app holds the configuration and builds collaborators on demand, so each
// command only touches what it uses.
type app struct {
	cfg *config.Config
	out io.Writer
	now func() time.Time

	closers []func() error
}

func newApp(configPath string, out io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, out: out, now: time.Now}, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) inventory() (*store.Inventory, error) {
	inv, err := store.OpenInventory(a.cfg.Data.InventoryPath())
	if err != nil {
		return nil, err
	}
	inv.Now = a.now
	return inv, nil
}

func (a *app) subscriptions() (*store.Subscriptions, error) {
	return store.OpenSubscriptions(a.cfg.Data.SubscriptionsPath(), a.now)
}

func (a *app) leads() (*store.Leads, error) {
	return store.OpenLeads(a.cfg.Data.LeadsPath(), a.now)
}

// redis returns the shared cache client, or nil when no address is set.
func (a *app) redis() *rediscache.RedisCache {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	rc := rediscache.New(a.cfg.Redis.Addr)
	a.closers = append(a.closers, rc.Close)
	return rc
}

// weather builds the configured temperature provider, cached in redis when
// available.
func (a *app) weather(cache *rediscache.RedisCache) shipping.Provider {
	var p shipping.Provider = shipping.PlaceholderProvider{}
	if a.cfg.Weather.Provider == config.ProviderOpenWeather {
		p = openweather.New(a.cfg.Weather.BaseURL, a.cfg.Weather.APIKey)
	}
	if cache != nil {
		p = shipping.NewCachedProvider(p, cache, a.cfg.Weather.CacheTTL)
	}
	return p
}

// events returns the sale event producer, or nil when no brokers are set.
func (a *app) events() fulfillment.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return nil
	}
	p := kafka.NewProducer(a.cfg.Kafka.Brokers)
	a.closers = append(a.closers, p.Close)
	return p
}

func (a *app) publisher() *github.Publisher {
	gh := a.cfg.GitHub
	return github.New(gh.BaseURL, gh.Token, gh.Owner, gh.Repo, gh.Branch)
}

func (a *app) layout() storefront.Layout {
	return storefront.Layout{
		AssetsDir:       a.cfg.Site.AssetsDir,
		RepoCatalogPath: a.cfg.Site.RepoCatalogPath,
		RepoAssetsDir:   a.cfg.Site.RepoAssetsDir,
	}
}
