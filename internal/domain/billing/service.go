package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medcore/hims/internal/domain/episode"
	"github.com/medcore/hims/internal/platform/auth"
	"github.com/medcore/hims/internal/platform/events"
	"github.com/medcore/hims/internal/platform/keymutex"
	"github.com/medcore/hims/internal/platform/money"
)

// EpisodeValidator resolves episode references before a ledger write is
// accepted. Satisfied by *episode.Service.
type EpisodeValidator interface {
	Validate(ctx context.Context, kind episode.Kind, id uuid.UUID, patientID *uuid.UUID) (*episode.Episode, error)
	ValidateOpen(ctx context.Context, kind episode.Kind, id uuid.UUID, patientID *uuid.UUID) (*episode.Episode, error)
}

// Service owns the append-only billing ledger. All mutations serialize on a
// per-episode lock; reads recompute from the logs without locking.
type Service struct {
	items    ItemRepository
	payments PaymentRepository
	episodes EpisodeValidator
	bus      *events.Bus
	locks    *keymutex.KeyMutex
	log      zerolog.Logger
}

func NewService(items ItemRepository, payments PaymentRepository, episodes EpisodeValidator,
	bus *events.Bus, locks *keymutex.KeyMutex, log zerolog.Logger) *Service {
	return &Service{
		items:    items,
		payments: payments,
		episodes: episodes,
		bus:      bus,
		locks:    locks,
		log:      log.With().Str("component", "billing").Logger(),
	}
}

// LockKey is the serialization key for one episode's ledger. The workflow
// gates lock the same key so a closure decision and a concurrent charge
// cannot interleave.
func LockKey(kind episode.Kind, episodeID uuid.UUID) string {
	return string(kind) + "/" + episodeID.String()
}

// AddItemInput carries one charge. Amount, when set, overrides the
// quantity*unit_price computation (package rates, negotiated discounts).
type AddItemInput struct {
	PatientID   uuid.UUID
	Department  Department
	ItemType    ItemType
	Description string
	Quantity    int
	UnitPrice   money.Amount
	Amount      *money.Amount
}

func (in *AddItemInput) validate() error {
	if in.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if !validDepartments[in.Department] {
		return fmt.Errorf("%w: unknown department %q", ErrValidation, in.Department)
	}
	if !validItemTypes[in.ItemType] {
		return fmt.Errorf("%w: unknown item type %q", ErrValidation, in.ItemType)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	return nil
}

// AddItem appends a charge to the episode's ledger and refreshes derived
// item statuses under the episode lock.
func (s *Service) AddItem(ctx context.Context, kind episode.Kind, episodeID uuid.UUID, in AddItemInput) (*Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	amount := in.UnitPrice.MulQty(in.Quantity)
	if in.Amount != nil {
		amount = *in.Amount
	}

	unlock := s.locks.Lock(LockKey(kind, episodeID))
	defer unlock()

	if _, err := s.episodes.ValidateOpen(ctx, kind, episodeID, &in.PatientID); err != nil {
		return nil, err
	}

	actor := auth.ActorFromContext(ctx)
	item := &Item{
		PatientID:   in.PatientID,
		EpisodeKind: kind,
		EpisodeID:   episodeID,
		Department:  in.Department,
		ItemType:    in.ItemType,
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Amount:      amount,
		Status:      ItemUnpaid,
		CreatedBy:   actor.ID,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if _, err := s.refreshLocked(ctx, kind, episodeID); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.ItemAdded{
		ItemID:      item.ID,
		EpisodeKind: string(kind),
		EpisodeID:   episodeID,
		PatientID:   in.PatientID,
		Department:  string(in.Department),
		ItemType:    string(in.ItemType),
		Amount:      amount,
		CreatedBy:   actor.ID,
		OccurredAt:  time.Now().UTC(),
	})

	s.log.Info().
		Str("episode_id", episodeID.String()).
		Str("item_type", string(in.ItemType)).
		Str("amount", amount.String()).
		Msg("billing item added")

	return item, nil
}

// CancelItem voids a charge. The row stays in the ledger with status
// cancelled; the next recompute excludes it. Cancelling twice is a no-op.
func (s *Service) CancelItem(ctx context.Context, kind episode.Kind, episodeID, itemID uuid.UUID) (*Item, error) {
	unlock := s.locks.Lock(LockKey(kind, episodeID))
	defer unlock()

	if _, err := s.episodes.ValidateOpen(ctx, kind, episodeID, nil); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.EpisodeKind != kind || item.EpisodeID != episodeID {
		return nil, ErrNotFound
	}
	if item.Status == ItemCancelled {
		return item, nil
	}
	if err := s.items.UpdateStatus(ctx, itemID, ItemCancelled); err != nil {
		return nil, err
	}
	item.Status = ItemCancelled

	if _, err := s.refreshLocked(ctx, kind, episodeID); err != nil {
		return nil, err
	}
	return item, nil
}

// CollectPaymentInput carries one payment against an episode.
type CollectPaymentInput struct {
	PatientID      uuid.UUID
	Amount         money.Amount
	Mode           PaymentMode
	Status         PaymentStatus
	TransactionRef *string
}

func (in *CollectPaymentInput) validate() error {
	if in.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !validModes[in.Mode] {
		return fmt.Errorf("%w: unknown payment mode %q", ErrValidation, in.Mode)
	}
	switch in.Status {
	case "", PaymentSuccess, PaymentFailed, PaymentPending:
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, in.Status)
	}
	return nil
}

// CollectPayment appends a payment and refreshes item statuses under the
// episode lock. Overpayment is accepted; due floors at zero.
func (s *Service) CollectPayment(ctx context.Context, kind episode.Kind, episodeID uuid.UUID, in CollectPaymentInput) (*Payment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = PaymentSuccess
	}

	unlock := s.locks.Lock(LockKey(kind, episodeID))
	defer unlock()

	if _, err := s.episodes.ValidateOpen(ctx, kind, episodeID, &in.PatientID); err != nil {
		return nil, err
	}

	actor := auth.ActorFromContext(ctx)
	p := &Payment{
		PatientID:      in.PatientID,
		EpisodeKind:    kind,
		EpisodeID:      episodeID,
		Amount:         in.Amount,
		Mode:           in.Mode,
		Status:         in.Status,
		TransactionRef: in.TransactionRef,
		ReceivedBy:     actor.ID,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	summary, err := s.refreshLocked(ctx, kind, episodeID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.PaymentCollected{
		PaymentID:   p.ID,
		EpisodeKind: string(kind),
		EpisodeID:   episodeID,
		PatientID:   in.PatientID,
		Amount:      in.Amount,
		Mode:        string(in.Mode),
		ReceivedBy:  actor.ID,
		Summary:     snapshot(summary),
		OccurredAt:  time.Now().UTC(),
	})

	s.log.Info().
		Str("episode_id", episodeID.String()).
		Str("mode", string(in.Mode)).
		Str("amount", in.Amount.String()).
		Str("ledger_status", string(summary.Status)).
		Msg("payment collected")

	return p, nil
}

// GetLedger returns the full ledger view. It acquires no lock; the logs are
// append-only, so a concurrent write at worst yields a slightly stale but
// internally consistent snapshot.
func (s *Service) GetLedger(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (*Ledger, error) {
	if _, err := s.episodes.Validate(ctx, kind, episodeID, nil); err != nil {
		return nil, err
	}
	items, err := s.items.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Items:    items,
		Payments: payments,
		Summary:  Summarize(items, payments),
		Buckets:  bucketTotals(items),
	}, nil
}

// Summary recomputes the financial summary without the item/payment detail.
func (s *Service) Summary(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (Summary, error) {
	if _, err := s.episodes.Validate(ctx, kind, episodeID, nil); err != nil {
		return Summary{}, err
	}
	items, err := s.items.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return Summary{}, err
	}
	payments, err := s.payments.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(items, payments), nil
}

// RefreshStatuses forces a recompute-and-flip of item statuses. Idempotent;
// running it twice in a row changes nothing the second time.
func (s *Service) RefreshStatuses(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (Summary, error) {
	unlock := s.locks.Lock(LockKey(kind, episodeID))
	defer unlock()

	if _, err := s.episodes.Validate(ctx, kind, episodeID, nil); err != nil {
		return Summary{}, err
	}
	return s.refreshLocked(ctx, kind, episodeID)
}

// refreshLocked recomputes the summary and rewrites item statuses to match.
// Items flip to paid only when the whole ledger is settled; partial payment
// leaves every live item unpaid. Caller must hold the episode lock.
func (s *Service) refreshLocked(ctx context.Context, kind episode.Kind, episodeID uuid.UUID) (Summary, error) {
	items, err := s.items.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return Summary{}, err
	}
	payments, err := s.payments.ListByEpisode(ctx, kind, episodeID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summarize(items, payments)

	desired := ItemUnpaid
	if summary.Status == LedgerPaid {
		desired = ItemPaid
	}
	changed := false
	for _, it := range items {
		if it.Status != ItemCancelled && it.Status != desired {
			changed = true
			break
		}
	}
	if !changed {
		return summary, nil
	}
	if err := s.items.SetEpisodeItemStatuses(ctx, kind, episodeID, desired); err != nil {
		return Summary{}, err
	}

	s.bus.Publish(ctx, events.LedgerUpdated{
		EpisodeKind: string(kind),
		EpisodeID:   episodeID,
		Summary:     snapshot(summary),
		OccurredAt:  time.Now().UTC(),
	})
	return summary, nil
}

func snapshot(s Summary) events.LedgerSnapshot {
	return events.LedgerSnapshot{Total: s.Total, Paid: s.Paid, Due: s.Due, Status: string(s.Status)}
}
