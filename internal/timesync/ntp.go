// Package timesync queries NTP servers in order and reports the first usable answer.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// ErrNoServers is returned when Sync is called with an empty server list.
var ErrNoServers = errors.New("timesync: no servers configured")

// Result is the answer of one server.
type Result struct {
	Server  string        `json:"server"`
	Time    time.Time     `json:"time"`
	Offset  time.Duration `json:"offset"`
	RTT     time.Duration `json:"rtt"`
	Stratum uint8         `json:"stratum"`
}

// Querier asks a single server for the time.
type Querier interface {
	Query(ctx context.Context, server string) (Result, error)
}

// NTPQuerier talks SNTP to real servers.
type NTPQuerier struct {
	Timeout time.Duration
}

func (q NTPQuerier) Query(ctx context.Context, server string) (Result, error) {
	opts := ntp.QueryOptions{Timeout: q.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); opts.Timeout == 0 || left < opts.Timeout {
			opts.Timeout = left
		}
	}
	if opts.Timeout <= 0 {
		return Result{}, context.DeadlineExceeded
	}

	resp, err := ntp.QueryWithOptions(server, opts)
	if err != nil {
		return Result{}, err
	}
	if err := resp.Validate(); err != nil {
		return Result{}, err
	}
	return Result{
		Server:  server,
		Time:    resp.Time.UTC(),
		Offset:  resp.ClockOffset,
		RTT:     resp.RTT,
		Stratum: resp.Stratum,
	}, nil
}

type Syncer struct {
	querier Querier
	logger  *zap.Logger
}

func NewSyncer(querier Querier, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{querier: querier, logger: logger.With(zap.String("component", "timesync"))}
}

// Sync tries servers in order and returns the first success. The error lists every failed server.
func (s *Syncer) Sync(ctx context.Context, servers []string) (Result, error) {
	if len(servers) == 0 {
		return Result{}, ErrNoServers
	}

	var errs *multierror.Error
	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		res, err := s.querier.Query(ctx, server)
		if err == nil {
			return res, nil
		}
		s.logger.Warn("ntp server failed", zap.String("server", server), zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", server, err))
	}
	return Result{}, errs.ErrorOrNil()
}
