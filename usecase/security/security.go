// Package security hosts the side operations layered on the security settings: one-time passwords,
// field masking, tenant encryption, time synchronisation and the compliance report. None of them
// write settings.
package security

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/ratelimit"
	"github.com/fastygo/schoolerp/internal/timesync"
	"github.com/fastygo/schoolerp/internal/validation"
	"github.com/fastygo/schoolerp/repository"
)

// SettingsReader is the read side of the settings use case.
type SettingsReader interface {
	Get(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error)
}

// TimeSyncer resolves the time from an ordered server list.
type TimeSyncer interface {
	Sync(ctx context.Context, servers []string) (timesync.Result, error)
}

type Config struct {
	MasterKey      []byte
	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPPerHour     int
	NTPServers     []string
}

type UseCase struct {
	settings  SettingsReader
	otps      repository.OTPRepository
	limiter   *ratelimit.Limiter
	senders   map[string]Sender
	syncer    TimeSyncer
	validator *validation.Validator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

func New(
	settings SettingsReader,
	otps repository.OTPRepository,
	limiter *ratelimit.Limiter,
	senders []Sender,
	syncer TimeSyncer,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 5
	}
	if cfg.OTPPerHour <= 0 {
		cfg.OTPPerHour = 3
	}
	byChannel := make(map[string]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &UseCase{
		settings:  settings,
		otps:      otps,
		limiter:   limiter,
		senders:   byChannel,
		syncer:    syncer,
		validator: validation.New(),
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// securityConfig loads the tenant's security framework. found is false when none is configured.
func (uc *UseCase) securityConfig(ctx context.Context, tenantID string) (cfg domain.SecurityFrameworkConfig, found bool, err error) {
	s, err := uc.settings.Get(ctx, domain.ModuleSecurityFramework, tenantID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return cfg, false, nil
		}
		return cfg, false, err
	}
	if err := s.Decode(&cfg); err != nil {
		return cfg, false, domain.WrapError(domain.ErrCodeInternal, "decode security framework", err)
	}
	return cfg, true, nil
}

// flagEnabled reports whether the tenant has the named feature flag live and switched on.
func (uc *UseCase) flagEnabled(ctx context.Context, tenantID, name string) (bool, error) {
	flags, err := uc.settings.Get(ctx, domain.ModuleFeatureFlags, tenantID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	e, ok := flags.LiveEntry(name)
	return ok && e.Enabled, nil
}
