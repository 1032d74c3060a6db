package main

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shiftbook/rosterscan/internal/auth"
	"github.com/shiftbook/rosterscan/internal/jobs"
	"github.com/shiftbook/rosterscan/internal/model"
	"github.com/shiftbook/rosterscan/internal/quota"
	"github.com/shiftbook/rosterscan/internal/store"
	"github.com/shiftbook/rosterscan/pkg/extractor"
)

// scanEnv bundles the collaborators a scan needs: the profile store, the
// token manager, the extraction client, and the job registry.
type scanEnv struct {
	store    store.Store
	tokens   *auth.Manager
	client   extractor.Client
	registry *jobs.Registry
	userID   string
}

func initEnv(ctx context.Context) (*scanEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := jobs.Load(cfg.Jobs.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	provider := auth.NewHTTPProvider(cfg.Auth.URL, cfg.Extractor.AnonKey, cfg.Auth.RefreshToken)
	tokens := auth.NewManager(provider,
		auth.WithRefreshThreshold(time.Duration(cfg.Auth.RefreshThresholdSecs)*time.Second),
		auth.WithReleaseGrace(time.Duration(cfg.Auth.MutexGraceMs)*time.Millisecond),
	)

	opts := []extractor.Option{
		extractor.WithRetryDelay(time.Duration(cfg.Extractor.RetryDelayMs) * time.Millisecond),
		extractor.WithMaxAuthRetries(cfg.Extractor.MaxAuthRetries),
	}
	if cfg.Extractor.RateLimitPerSec > 0 {
		opts = append(opts, extractor.WithRateLimit(cfg.Extractor.RateLimitPerSec))
	}
	client := extractor.NewClient(cfg.Extractor.FunctionURL, cfg.Extractor.AnonKey, tokens, opts...)

	userID := cfg.Pipeline.UserID
	if userID == "" {
		userID = "local"
	}

	return &scanEnv{
		store:    st,
		tokens:   tokens,
		client:   client,
		registry: registry,
		userID:   userID,
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// quotaGate builds the usage gate from the persisted profile counters.
func (e *scanEnv) quotaGate(ctx context.Context) *quota.Gate {
	var usage model.ScanUsage
	if profile, err := e.store.GetProfile(ctx, e.userID); err == nil && profile != nil {
		usage = model.ScanUsage{Used: profile.ScansUsed, Limit: profile.ScanLimit}
	}
	return quota.NewGate(e.userID, usage, cfg.Quota)
}

func (e *scanEnv) Close() {
	_ = e.store.Close()
}

// readImageBase64 reads an image file and encodes it for the wire.
func readImageBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read image %s", path)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
