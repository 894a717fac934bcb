package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lexiconlabs/ankibridge/internal/domain"
	"github.com/lexiconlabs/ankibridge/internal/platform/logger"
	"github.com/lexiconlabs/ankibridge/internal/store"
)

// PostgreSQL error codes
const pgUniqueViolationCode = "23505"

// cardColumns is the column list shared by every card SELECT.
const cardColumns = `id, owner_id, card_type, front, back, context,
	context_translation, tags, metadata, notes, delivery_state,
	created_at, updated_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the
// CardStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// Create implements store.CardStore.Create.
// The write is a single row insert, so a caller that disappears mid-request
// either left a complete row or none at all.
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	tags, err := json.Marshal(card.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode card tags: %w", err)
	}

	query := `
		INSERT INTO cards (id, owner_id, card_type, front, back, context,
			context_translation, tags, metadata, notes, delivery_state,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		card.ID,
		card.OwnerID,
		card.Type,
		card.Front,
		card.Back,
		card.Context,
		card.ContextTranslation,
		tags,
		metadataParam(card.Metadata),
		card.Notes,
		card.DeliveryState,
		card.CreatedAt,
		card.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Warn("duplicate card ID during creation",
				slog.String("card_id", card.ID.String()))
			return fmt.Errorf("%w: card with ID %s", store.ErrDuplicate, card.ID)
		}

		log.Error("failed to create card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()),
			slog.String("owner_id", card.OwnerID.String()))
		return err
	}

	log.Info("card created successfully",
		slog.String("card_id", card.ID.String()),
		slog.String("owner_id", card.OwnerID.String()),
		slog.String("delivery_state", string(card.DeliveryState)))
	return nil
}

// GetByID implements store.CardStore.GetByID.
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found", slog.String("card_id", id.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card by ID",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, err
	}

	return card, nil
}

// ListByOwner implements store.CardStore.ListByOwner.
// Results are newest first for display; the optional delivered filter
// selects terminal-state (true) or still-pending (false) cards.
func (s *PostgresCardStore) ListByOwner(
	ctx context.Context,
	ownerID uuid.UUID,
	limit int,
	delivered *bool,
) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards WHERE owner_id = $1`
	args := []any{ownerID}

	if delivered != nil {
		if *delivered {
			query += ` AND delivery_state <> $2`
		} else {
			query += ` AND delivery_state = $2`
		}
		args = append(args, domain.DeliveryStatePending)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list cards by owner",
			slog.String("error", err.Error()),
			slog.String("owner_id", ownerID.String()))
		return nil, err
	}
	defer rows.Close()

	return collectCards(rows)
}

// ListPending implements store.CardStore.ListPending.
// Oldest first so no pending card can starve behind newer ones.
func (s *PostgresCardStore) ListPending(ctx context.Context, limit int) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE delivery_state = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, domain.DeliveryStatePending, limit)
	if err != nil {
		log.Error("failed to list pending cards", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	return collectCards(rows)
}

// ListAll implements store.CardStore.ListAll.
func (s *PostgresCardStore) ListAll(ctx context.Context, limit, offset int) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list all cards", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	return collectCards(rows)
}

// Delete implements store.CardStore.Delete.
// RETURNING gives the caller the removed row in the same statement.
func (s *PostgresCardStore) Delete(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM cards WHERE id = $1 RETURNING ` + cardColumns

	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found for delete", slog.String("card_id", id.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, err
	}

	log.Info("card deleted", slog.String("card_id", id.String()))
	return card, nil
}

// MarkDelivered implements store.CardStore.MarkDelivered.
func (s *PostgresCardStore) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return s.updateDeliveryState(ctx, id, domain.DeliveryStatePending, domain.DeliveryStateDelivered)
}

// MarkFailed implements store.CardStore.MarkFailed.
func (s *PostgresCardStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return s.updateDeliveryState(ctx, id, domain.DeliveryStatePending, domain.DeliveryStateFailed)
}

// ResetForRetry implements store.CardStore.ResetForRetry.
func (s *PostgresCardStore) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	return s.updateDeliveryState(ctx, id, domain.DeliveryStateFailed, domain.DeliveryStatePending)
}

// updateDeliveryState performs a conditional state transition. The WHERE
// clause on the current state is the claim gate: when two workers race on
// the same card, only one update matches a row.
func (s *PostgresCardStore) updateDeliveryState(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.DeliveryState,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE cards
		SET delivery_state = $1, updated_at = now()
		WHERE id = $2 AND delivery_state = $3
	`
	result, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		log.Error("failed to update delivery state",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()),
			slog.String("to_state", string(to)))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("delivery state update matched no row",
			slog.String("card_id", id.String()),
			slog.String("from_state", string(from)),
			slog.String("to_state", string(to)))
		return fmt.Errorf("%w: card %s not in state %s", store.ErrUpdateFailed, id, from)
	}

	log.Info("delivery state updated",
		slog.String("card_id", id.String()),
		slog.String("from_state", string(from)),
		slog.String("to_state", string(to)))
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCard reads one card row in cardColumns order.
func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var tags []byte
	var metadata sql.Null[[]byte]

	err := row.Scan(
		&card.ID,
		&card.OwnerID,
		&card.Type,
		&card.Front,
		&card.Back,
		&card.Context,
		&card.ContextTranslation,
		&tags,
		&metadata,
		&card.Notes,
		&card.DeliveryState,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tags, &card.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode card tags: %w", err)
	}
	if metadata.Valid {
		card.Metadata = domain.Metadata(metadata.V)
	}

	return &card, nil
}

// collectCards drains rows into a slice, surfacing any iteration error.
func collectCards(rows *sql.Rows) ([]*domain.Card, error) {
	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// metadataParam converts metadata to a driver value, mapping absent
// metadata to SQL NULL instead of invalid empty JSON.
func metadataParam(m domain.Metadata) any {
	if m.IsEmpty() {
		return nil
	}
	return []byte(m)
}
