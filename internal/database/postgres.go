// internal/database/postgres.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const roomColumns = `id, room_code, game_type, host_id, status, game_data, settings,
	current_turn, created_at, updated_at, started_at, finished_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var (
		r      models.Room
		status string
	)
	err := row.Scan(&r.ID, &r.Code, &r.GameType, &r.HostID, &status, &r.GameData, &r.Settings,
		&r.CurrentTurn, &r.CreatedAt, &r.UpdatedAt, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = models.RoomStatus(status)
	if r.GameData == nil {
		r.GameData = map[string]any{}
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT INTO rooms (id, room_code, game_type, host_id, status, game_data, settings,
		current_turn, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if room.GameData == nil {
		room.GameData = map[string]any{}
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, room.ID, strings.ToUpper(room.Code), room.GameType, room.HostID,
			string(room.Status), room.GameData, room.Settings, room.CurrentTurn, room.CreatedAt, room.UpdatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("room code %s: %w", room.Code, ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	return scanRoom(s.pool.QueryRow(ctx, q, id))
}

func (s *PostgresStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE room_code = $1`
	return scanRoom(s.pool.QueryRow(ctx, q, strings.ToUpper(code)))
}

func (s *PostgresStore) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	var tmp int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM rooms WHERE room_code = $1 LIMIT 1`, strings.ToUpper(code)).Scan(&tmp)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	q := `
	UPDATE rooms SET
		host_id = $2, status = $3, game_data = $4, settings = $5, current_turn = $6,
		updated_at = $7, started_at = $8, finished_at = $9
	WHERE id = $1
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, room.ID, room.HostID, string(room.Status), room.GameData, room.Settings,
			room.CurrentTurn, room.UpdatedAt, room.StartedAt, room.FinishedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) UpsertPlayer(ctx context.Context, p *models.Player) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := `
	INSERT INTO room_players (id, room_id, player_id, player_name, is_ready, score, turn_order,
		is_host, is_connected, last_seen, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (room_id, player_id) DO UPDATE SET
		player_name = EXCLUDED.player_name, is_ready = EXCLUDED.is_ready, score = EXCLUDED.score,
		turn_order = EXCLUDED.turn_order, is_host = EXCLUDED.is_host,
		is_connected = EXCLUDED.is_connected, last_seen = EXCLUDED.last_seen
	RETURNING id
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, p.ID, p.RoomID, p.PlayerID, p.Name, p.IsReady, p.Score, p.TurnOrder,
			p.IsHost, p.IsConnected, p.LastSeen, p.JoinedAt).Scan(&p.ID)
	})
}

const playerColumns = `id, room_id, player_id, player_name, is_ready, score, turn_order,
	is_host, is_connected, last_seen, joined_at`

func scanPlayer(row pgx.Row) (models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.RoomID, &p.PlayerID, &p.Name, &p.IsReady, &p.Score, &p.TurnOrder,
		&p.IsHost, &p.IsConnected, &p.LastSeen, &p.JoinedAt)
	return p, err
}

func (s *PostgresStore) GetPlayer(ctx context.Context, roomID uuid.UUID, playerID string) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM room_players WHERE room_id = $1 AND player_id = $2`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, roomID, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) RemovePlayer(ctx context.Context, roomID uuid.UUID, playerID string) error {
	return s.deleteMember(ctx, `DELETE FROM room_players WHERE room_id = $1 AND player_id = $2`, roomID, playerID)
}

func (s *PostgresStore) deleteMember(ctx context.Context, q string, roomID uuid.UUID, playerID string) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, roomID, playerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) ListPlayers(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM room_players WHERE room_id = $1 ORDER BY turn_order, joined_at`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertSpectator(ctx context.Context, sp *models.Spectator) error {
	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	q := `
	INSERT INTO room_spectators (id, room_id, player_id, player_name, is_connected, last_seen, joined_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (room_id, player_id) DO UPDATE SET
		player_name = EXCLUDED.player_name, is_connected = EXCLUDED.is_connected, last_seen = EXCLUDED.last_seen
	RETURNING id
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, sp.ID, sp.RoomID, sp.PlayerID, sp.Name, sp.IsConnected, sp.LastSeen, sp.JoinedAt).Scan(&sp.ID)
	})
}

func (s *PostgresStore) RemoveSpectator(ctx context.Context, roomID uuid.UUID, playerID string) error {
	return s.deleteMember(ctx, `DELETE FROM room_spectators WHERE room_id = $1 AND player_id = $2`, roomID, playerID)
}

func (s *PostgresStore) ListSpectators(ctx context.Context, roomID uuid.UUID) ([]models.Spectator, error) {
	q := `
	SELECT id, room_id, player_id, player_name, is_connected, last_seen, joined_at
	FROM room_spectators WHERE room_id = $1 ORDER BY joined_at
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Spectator{}
	for rows.Next() {
		var sp models.Spectator
		if err := rows.Scan(&sp.ID, &sp.RoomID, &sp.PlayerID, &sp.Name, &sp.IsConnected, &sp.LastSeen, &sp.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	q := `
	INSERT INTO chat_messages (id, room_id, player_id, player_name, message, message_type, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, m.ID, m.RoomID, m.PlayerID, m.PlayerName, m.Message, string(m.Type), m.CreatedAt)
		return err
	})
}

func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := `
	SELECT id, room_id, player_id, player_name, message, message_type, created_at FROM (
		SELECT * FROM chat_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2
	) recent ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, q, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m  models.ChatMessage
			mt string
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.PlayerID, &m.PlayerName, &m.Message, &mt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(mt)
		out = append(out, m)
	}
	return out, rows.Err()
}

const cardColumns = `id, game_id, card_type, category, name, effect, ordinal`

func scanCard(row pgx.Row) (models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.GameID, &c.CardType, &c.Category, &c.Name, &c.Effect, &c.Ordinal)
	return c, err
}

func (s *PostgresStore) ListCards(ctx context.Context, gameID, cardType string) ([]models.Card, error) {
	q := `SELECT ` + cardColumns + ` FROM cards WHERE game_id = $1 AND ($2 = '' OR card_type = $2) ORDER BY ordinal, id`
	rows, err := s.pool.Query(ctx, q, gameID, cardType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RandomCard(ctx context.Context, gameID, cardType string) (*models.Card, error) {
	q := `SELECT ` + cardColumns + ` FROM cards WHERE game_id = $1 AND ($2 = '' OR card_type = $2) ORDER BY random() LIMIT 1`
	c, err := scanCard(s.pool.QueryRow(ctx, q, gameID, cardType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) UpsertCards(ctx context.Context, cards []models.Card) error {
	q := `
	INSERT INTO cards (id, game_id, card_type, category, name, effect, ordinal)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		game_id = EXCLUDED.game_id, card_type = EXCLUDED.card_type, category = EXCLUDED.category,
		name = EXCLUDED.name, effect = EXCLUDED.effect, ordinal = EXCLUDED.ordinal
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range cards {
			batch.Queue(q, c.ID, c.GameID, c.CardType, c.Category, c.Name, c.Effect, c.Ordinal)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *PostgresStore) CreateInvite(ctx context.Context, inv *models.InviteCode) error {
	q := `
	INSERT INTO invite_codes (code, room_code, created_by, uses, max_uses, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, inv.Code, inv.RoomCode, inv.CreatedBy, inv.Uses, inv.MaxUses, inv.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("invite %s: %w", inv.Code, ErrConflict)
	}
	return err
}

func (s *PostgresStore) RedeemInvite(ctx context.Context, code string) (*models.InviteCode, error) {
	var inv models.InviteCode
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT code, room_code, created_by, uses, max_uses, created_at
			FROM invite_codes WHERE code = $1 FOR UPDATE`, code,
		).Scan(&inv.Code, &inv.RoomCode, &inv.CreatedBy, &inv.Uses, &inv.MaxUses, &inv.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if inv.Exhausted() {
			return ErrInviteExhausted
		}
		inv.Uses++
		_, err = tx.Exec(ctx, `UPDATE invite_codes SET uses = $2 WHERE code = $1`, code, inv.Uses)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InsertSessionStats writes a batch of historian records in one transaction.
func (s *PostgresStore) InsertSessionStats(ctx context.Context, stats []models.SessionStats) error {
	if len(stats) == 0 {
		return nil
	}
	q := `
	INSERT INTO session_stats (user_id, room_id, room_code, game_type, winner_id, won, scores,
		player_count, drink_count, duration_ms, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, st := range stats {
			scores := st.Scores
			if scores == nil {
				scores = map[string]int{}
			}
			if _, err := tx.Exec(ctx, q, st.UserID, st.RoomID, st.RoomCode, st.GameType, st.WinnerID, st.Won,
				scores, st.PlayerCount, st.DrinkCount, st.DurationMs, st.FinishedAt); err != nil {
				return fmt.Errorf("insert stats for %s: %w", st.UserID, err)
			}
		}
		return nil
	})
}
