// Package opd implements the outpatient visit closure gate. A visit may end
// only when its billing ledger shows zero due; the check and the status
// transition run under the same per-episode lock the billing engine uses, so
// a charge raised mid-closure cannot slip past the gate.
package opd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hims/internal/domain/billing"
	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/auth"
	"github.com/medcore/hims/internal/platform/events"
	"github.com/medcore/hims/internal/platform/keymutex"
)

// ErrDuesOutstanding rejects closure while the ledger still shows a due.
var ErrDuesOutstanding = errors.New("visit has outstanding dues")

// LedgerReader recomputes the episode's financial summary. Satisfied by
// *billing.Service; the implementation must not acquire the episode lock,
// the gate already holds it.
type LedgerReader interface {
	Summary(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (billing.Summary, error)
}

// EpisodeStore is the slice of *episode.Service the gate needs.
type EpisodeStore interface {
	Validate(ctx context.Context, kind episode.Kind, id uuid.UUID, patientID *uuid.UUID) (*episode.Episode, error)
	SetStatus(ctx context.Context, kind episode.Kind, id uuid.UUID, status string) (*episode.Episode, error)
}

type Service struct {
	episodes EpisodeStore
	ledger   LedgerReader
	bus      *events.Bus
	locks    *keymutex.KeyMutex
	log      zerolog.Logger
}

func NewService(episodes EpisodeStore, ledger LedgerReader, bus *events.Bus,
	locks *keymutex.KeyMutex, log zerolog.Logger) *Service {
	return &Service{
		episodes: episodes,
		ledger:   ledger,
		bus:      bus,
		locks:    locks,
		log:      log.With().Str("component", "opd").Logger(),
	}
}

// CloseVisit completes an OPD visit once the ledger is settled. A visit
// with no charges at all closes freely; due is zero either way.
func (s *Service) CloseVisit(ctx context.Context, visitID uuid.UUID) (*episode.Episode, error) {
	unlock := s.locks.Lock(billing.LockKey(episode.KindOPDVisit, visitID))
	defer unlock()

	e, err := s.episodes.Validate(ctx, episode.KindOPDVisit, visitID, nil)
	if err != nil {
		return nil, err
	}
	if e.Closed() {
		return nil, episode.ErrEpisodeClosed
	}

	summary, err := s.ledger.Summary(ctx, episode.KindOPDVisit, visitID)
	if err != nil {
		return nil, err
	}
	if summary.Due > 0 {
		return nil, fmt.Errorf("%w: %s due", ErrDuesOutstanding, summary.Due)
	}

	closed, err := s.episodes.SetStatus(ctx, episode.KindOPDVisit, visitID, episode.StatusCompleted)
	if err != nil {
		return nil, err
	}

	actor := auth.ActorFromContext(ctx)
	s.bus.Publish(ctx, events.VisitClosed{
		VisitID:    visitID,
		PatientID:  closed.PatientID,
		ClosedBy:   actor.ID,
		OccurredAt: time.Now().UTC(),
	})

	s.log.Info().
		Str("visit_id", visitID.String()).
		Str("closed_by", actor.ID).
		Msg("opd visit closed")

	return closed, nil
}
