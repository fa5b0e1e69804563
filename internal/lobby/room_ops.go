// internal/lobby/room_ops.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// Drinking intensities accepted by SetDrinkingIntensity.
var drinkingIntensities = map[string]bool{"light": true, "medium": true, "heavy": true}

// DrinkEvent is the broadcast payload shown to every member at once.
type DrinkEvent struct {
	Target     string    `json:"target"`
	TargetName string    `json:"target_name,omitempty"`
	Reason     string    `json:"reason"`
	Count      int       `json:"count"`
	From       string    `json:"from"`
	At         time.Time `json:"at"`
}

// view returns the current room and role. The room is never mutated in
// place, so the pointer is safe to read after unlock.
func (s *Session) view() (*models.Room, Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.role
}

func (s *Session) isHost(room *models.Room, role Role) bool {
	return role == RolePlayer && room.HostID == s.id.PlayerID
}

// applyRoom installs a room this session just wrote.
func (s *Session) applyRoom(room *models.Room) {
	s.mu.Lock()
	if !s.installRoomUnsafe(room) {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotUnsafe()
	s.mu.Unlock()
	s.write(Update{Type: UpdateRoomState, Payload: snap})
}

// StartGame moves a waiting room to playing. Host only.
func (s *Session) StartGame(ctx context.Context) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if !s.isHost(room, role) {
		return nil
	}
	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		if !r.Status.CanTransition(models.RoomPlaying) {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		r.Status = models.RoomPlaying
		r.StartedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	s.logger.WithField("room", updated.Code).Info("game started")
	return nil
}

// UpdateGameState merges patch into the freshly stored game_data. Keys not in
// patch are kept.
func (s *Session) UpdateGameState(ctx context.Context, patch map[string]any) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if role != RolePlayer || len(patch) == 0 {
		return nil
	}
	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		for k, v := range patch {
			r.GameData[k] = v
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	return nil
}

// AdvanceTurn moves current_turn to the next seat.
func (s *Session) AdvanceTurn(ctx context.Context) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if role != RolePlayer {
		return nil
	}
	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		players, err := s.m.store.ListPlayers(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("list players: %w", err)
		}
		r.CurrentTurn++
		if len(players) > 0 {
			r.CurrentTurn %= len(players)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	return nil
}

// EndGame finishes a playing room with the final scores and queues stats for
// authenticated users.
func (s *Session) EndGame(ctx context.Context, winnerID string, scores map[string]int) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if role != RolePlayer {
		return nil
	}
	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		if !r.Status.CanTransition(models.RoomFinished) {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		r.Status = models.RoomFinished
		r.FinishedAt = &now
		final := make(map[string]any, len(scores))
		for k, v := range scores {
			final[k] = v
		}
		r.GameData["finalScores"] = final
		r.GameData["winner"] = winnerID
		return nil
	})
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	s.recordStats(updated, winnerID, scores)
	s.logger.WithFields(logrus.Fields{"room": updated.Code, "winner": winnerID}).Info("game finished")
	return nil
}

func (s *Session) recordStats(room *models.Room, winnerID string, scores map[string]int) {
	if s.m.stats == nil || !s.id.Authenticated() {
		return
	}
	s.mu.Lock()
	players := len(s.players)
	drinks := 0
	for _, n := range s.drinkCounts {
		drinks += n
	}
	s.mu.Unlock()

	st := models.SessionStats{
		UserID:      s.id.UserID,
		RoomID:      room.ID.String(),
		RoomCode:    room.Code,
		GameType:    room.GameType,
		WinnerID:    winnerID,
		Won:         winnerID != "" && winnerID == s.id.PlayerID,
		Scores:      scores,
		PlayerCount: players,
		DrinkCount:  drinks,
	}
	if room.FinishedAt != nil {
		st.FinishedAt = *room.FinishedAt
		if room.StartedAt != nil {
			st.DurationMs = room.FinishedAt.Sub(*room.StartedAt).Milliseconds()
		}
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.m.stats.RecordSession(ctx, st); err != nil {
			s.logger.WithError(err).Warn("failed to record session stats")
		}
	}()
}

// ToggleDrinkingMode flips drinking mode. Child games always stay off.
func (s *Session) ToggleDrinkingMode(ctx context.Context) error {
	return s.changeSettings(ctx, func(r *models.Room) error {
		r.Settings.DrinkingMode = !r.Settings.DrinkingMode && !s.m.IsChildGame(r.GameType)
		return nil
	})
}

// SetDrinkingIntensity sets light, medium or heavy.
func (s *Session) SetDrinkingIntensity(ctx context.Context, level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	return s.changeSettings(ctx, func(r *models.Room) error {
		if !drinkingIntensities[level] {
			return ErrInvalidIntensity
		}
		r.Settings.DrinkingIntensity = level
		return nil
	})
}

// SetAllowSpectators opens or closes the spectator roster.
func (s *Session) SetAllowSpectators(ctx context.Context, allow bool) error {
	return s.changeSettings(ctx, func(r *models.Room) error {
		r.Settings.AllowSpectators = allow
		return nil
	})
}

// changeSettings is the host-gated settings write, followed by a
// settings_changed broadcast.
func (s *Session) changeSettings(ctx context.Context, fn func(*models.Room) error) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if !s.isHost(room, role) {
		return nil
	}
	updated, err := s.m.mutateRoom(ctx, room.ID, fn)
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	s.broadcast(ctx, updated.ID, EventSettings, updated.Settings)
	return nil
}

// TriggerDrinkEvent prompts target to drink. Ignored unless drinking mode is
// on.
func (s *Session) TriggerDrinkEvent(ctx context.Context, target, reason string, count int) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if role != RolePlayer || !room.Settings.DrinkingMode {
		return nil
	}
	if count <= 0 {
		count = 1
	}
	ev := DrinkEvent{
		Target:     target,
		TargetName: s.memberName(target),
		Reason:     reason,
		Count:      count,
		From:       s.id.PlayerID,
		At:         time.Now().UTC(),
	}
	s.broadcast(ctx, room.ID, EventDrink, ev)

	s.mu.Lock()
	s.drinkCounts[target] += count
	name := s.name
	s.mu.Unlock()
	s.write(Update{Type: UpdateDrinkEvent, Payload: ev})

	who := ev.TargetName
	if who == "" {
		who = target
	}
	text := fmt.Sprintf("%s drinks %d", who, count)
	if reason != "" {
		text += " (" + reason + ")"
	}
	msg := &models.ChatMessage{
		RoomID:     room.ID,
		PlayerID:   s.id.PlayerID,
		PlayerName: name,
		Message:    text,
		Type:       models.MessageDrink,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.m.store.AppendMessage(ctx, msg); err != nil {
		s.logger.WithError(err).Warn("failed to mirror drink event to chat")
	}
	return nil
}

func (s *Session) memberName(playerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.PlayerID == playerID {
			return p.Name
		}
	}
	return ""
}

// SendChat appends a message to the room feed. Unknown types become chat.
func (s *Session) SendChat(ctx context.Context, text string, typ models.MessageType) error {
	room, _ := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !typ.Valid() || typ == models.MessageSystem {
		typ = models.MessageChat
	}
	s.mu.Lock()
	name := s.name
	s.mu.Unlock()
	msg := &models.ChatMessage{
		RoomID:     room.ID,
		PlayerID:   s.id.PlayerID,
		PlayerName: name,
		Message:    text,
		Type:       typ,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.m.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

// SetReady toggles the caller's ready flag.
func (s *Session) SetReady(ctx context.Context, ready bool) error {
	return s.updateSelf(ctx, func(p *models.Player) { p.IsReady = ready })
}

// UpdateScore sets the caller's score.
func (s *Session) UpdateScore(ctx context.Context, score int) error {
	return s.updateSelf(ctx, func(p *models.Player) { p.Score = score })
}

func (s *Session) updateSelf(ctx context.Context, fn func(*models.Player)) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if role != RolePlayer {
		return nil
	}
	err := s.m.mutatePlayer(ctx, room.ID, s.id.PlayerID, fn)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotInRoom
	}
	return err
}

// KickPlayer removes another member's row. Host only.
func (s *Session) KickPlayer(ctx context.Context, playerID string) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if !s.isHost(room, role) || playerID == s.id.PlayerID {
		return nil
	}
	name := s.memberName(playerID)

	l := s.m.roomLock(room.ID)
	l.Lock()
	err := s.m.store.RemovePlayer(ctx, room.ID, playerID)
	if errors.Is(err, database.ErrNotFound) {
		err = s.m.store.RemoveSpectator(ctx, room.ID, playerID)
	}
	l.Unlock()
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("kick player: %w", err)
	}
	if name == "" {
		name = playerID
	}
	s.appendSystem(ctx, room.ID, name+" was removed by the host")
	return nil
}

// CreateInvite issues an invite for the current room. maxUses <= 0 is
// unlimited. Host only; other callers get an empty code.
func (s *Session) CreateInvite(ctx context.Context, maxUses int) (string, error) {
	room, role := s.view()
	if room == nil {
		return "", ErrNotInRoom
	}
	if !s.isHost(room, role) {
		return "", nil
	}
	if maxUses < 0 {
		maxUses = 0
	}
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode(InviteCodeLength)
		if err != nil {
			return "", err
		}
		inv := &models.InviteCode{
			Code:      code,
			RoomCode:  room.Code,
			CreatedBy: s.id.PlayerID,
			MaxUses:   maxUses,
			CreatedAt: time.Now().UTC(),
		}
		err = s.m.store.CreateInvite(ctx, inv)
		if errors.Is(err, database.ErrConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create invite: %w", err)
		}
		return code, nil
	}
	return "", ErrCodeSpace
}

// RedeemInvite consumes one use of code and joins its room as a player.
func (s *Session) RedeemInvite(ctx context.Context, code, name string) error {
	inv, err := s.m.store.RedeemInvite(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrInviteExhausted) {
		return ErrInviteInvalid
	}
	if err != nil {
		return fmt.Errorf("redeem invite: %w", err)
	}
	return s.JoinRoom(ctx, inv.RoomCode, name)
}
