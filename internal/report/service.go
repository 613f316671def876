package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flor3z/faction-bot/internal/torn"
)

// Source provides the remote data a report is built from
type Source interface {
	FactionID() int64
	RankedWar(ctx context.Context, factionID, warID int64) (*torn.RankedWar, error)
	Attacks(ctx context.Context, from, to time.Time) ([]torn.Attack, error)
}

// Store persists reports
type Store interface {
	GetWarReport(ctx context.Context, warID int64) (*Report, error)
	SaveWarReport(ctx context.Context, r *Report) error
}

// Service generates and loads war reports
type Service struct {
	source Source
	store  Store
	now    func() time.Time
}

// NewService creates a report service
func NewService(source Source, store Store) *Service {
	return &Service{source: source, store: store, now: time.Now}
}

// Generate builds and stores the report for a war. An existing report is
// only replaced when force is set.
func (s *Service) Generate(ctx context.Context, warID int64, threshold float64, force bool, by string) (*Report, error) {
	if !force {
		existing, err := s.store.GetWarReport(ctx, warID)
		switch {
		case err == nil && existing != nil:
			return existing, ErrReportExists
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("load existing report: %w", err)
		}
	}

	war, err := s.source.RankedWar(ctx, s.source.FactionID(), warID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	to := war.EndTime()
	if to.IsZero() {
		to = now
	}

	attacks, err := s.source.Attacks(ctx, war.StartTime(), to)
	if err != nil {
		return nil, err
	}

	r, err := Build(war, attacks, s.source.FactionID(), threshold, now)
	if err != nil {
		return nil, err
	}
	r.GeneratedBy = by

	if err := s.store.SaveWarReport(ctx, r); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	slog.Info("Generated war report",
		"war", warID,
		"attacks", len(attacks),
		"members", len(r.Contributions),
		"respect", r.TotalRespect,
	)
	return r, nil
}

// Get loads a stored report
func (s *Service) Get(ctx context.Context, warID int64) (*Report, error) {
	return s.store.GetWarReport(ctx, warID)
}
