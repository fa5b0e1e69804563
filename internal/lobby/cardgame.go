// internal/lobby/cardgame.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/cardstate"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// UpdateCardGameState publishes state to the room right away and persists it
// under game_data in the background, replacing the stored document. Only
// players may call it; anyone else is ignored.
func (s *Session) UpdateCardGameState(ctx context.Context, state cardstate.State, action *cardstate.Action) error {
	if action != nil {
		state.LastAction = action
	}
	value, err := state.Clone().GameDataValue()
	if err != nil {
		return err
	}
	return s.publishCards(ctx, state, func(r *models.Room) error {
		r.GameData[cardstate.GameDataKey] = value
		return nil
	})
}

// publishCards installs local as the optimistic card state, broadcasts it and
// queues persist behind this session's earlier card writes.
func (s *Session) publishCards(ctx context.Context, local cardstate.State, persist func(*models.Room) error) error {
	local = local.Clone()

	s.mu.Lock()
	if s.room == nil || s.role != RolePlayer {
		s.mu.Unlock()
		return nil
	}
	roomID := s.room.ID
	s.cardState = &local
	s.pending++
	prev := s.persistTail
	done := make(chan struct{})
	s.persistTail = done
	s.mu.Unlock()

	payload := cardGamePayload{State: local.Clone(), Action: local.LastAction}
	s.broadcast(ctx, roomID, EventCardGameState, payload)
	s.write(Update{Type: UpdateCardGameState, Payload: payload})

	s.bg.Add(1)
	go s.persistCardState(roomID, persist, prev, done)
	return nil
}

// persistCardState waits for the previous persist, then runs apply as a
// fetch-merge-write of the room. Once nothing of this session's is in
// flight, the card state is resynced from the newest room seen.
func (s *Session) persistCardState(roomID uuid.UUID, apply func(*models.Room) error, prev <-chan struct{}, done chan struct{}) {
	defer s.bg.Done()
	defer close(done)
	if prev != nil {
		<-prev
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	updated, err := s.m.mutateRoom(ctx, roomID, apply)

	s.mu.Lock()
	s.pending--
	if err == nil {
		s.installRoomUnsafe(updated)
	}
	var synced *cardstate.State
	if s.pending == 0 && err == nil && s.room != nil && s.room.ID == roomID {
		if cs, ok, decodeErr := cardstate.FromGameData(s.room.GameData); decodeErr == nil && ok {
			s.cardState = &cs
			c := cs.Clone()
			synced = &c
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithField("room_id", roomID).Warn("failed to persist card game state")
	}
	if synced != nil {
		s.write(Update{Type: UpdateCardGameState, Payload: cardGamePayload{State: *synced, Action: synced.LastAction}})
	}
}

// InitCardGame deals a fresh deck of cardIDs shuffled with seed.
func (s *Session) InitCardGame(ctx context.Context, cardIDs []string, seed int64) error {
	if !s.canMutateCards() {
		return nil
	}
	st := cardstate.New(cardIDs, seed, time.Now())
	s.logger.WithFields(logrus.Fields{"cards": len(cardIDs), "seed": seed}).Debug("card game initialized")
	return s.UpdateCardGameState(ctx, st, nil)
}

// DrawCards moves n cards from the deck into the caller's hand.
func (s *Session) DrawCards(ctx context.Context, n int) error {
	return s.mutateCards(ctx, func(st cardstate.State, at time.Time) (cardstate.State, error) {
		return st.Draw(s.id.PlayerID, n, at)
	})
}

// DiscardCard moves a card from the caller's hand to the discard pile.
func (s *Session) DiscardCard(ctx context.Context, cardID string) error {
	return s.mutateCards(ctx, func(st cardstate.State, at time.Time) (cardstate.State, error) {
		return st.Discard(s.id.PlayerID, cardID, at)
	})
}

// PlayCardToTable moves a card from the caller's hand face-up to the table.
func (s *Session) PlayCardToTable(ctx context.Context, cardID string) error {
	return s.mutateCards(ctx, func(st cardstate.State, at time.Time) (cardstate.State, error) {
		return st.PlayToTable(s.id.PlayerID, cardID, at)
	})
}

// TakeFromTable moves a table card into the caller's hand.
func (s *Session) TakeFromTable(ctx context.Context, cardID string) error {
	return s.mutateCards(ctx, func(st cardstate.State, at time.Time) (cardstate.State, error) {
		return st.TakeFromTable(s.id.PlayerID, cardID, at)
	})
}

// ReshuffleDiscard folds the discard pile back into the deck.
func (s *Session) ReshuffleDiscard(ctx context.Context, seed int64) error {
	return s.mutateCards(ctx, func(st cardstate.State, at time.Time) (cardstate.State, error) {
		return st.ReshuffleDiscard(seed, at), nil
	})
}

func (s *Session) canMutateCards() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room != nil && s.role == RolePlayer
}

// mutateCards applies fn to the local card state for an immediate broadcast,
// then applies it again to the stored document when persisting, so moves by
// other players that landed in between are kept. A move the stored document
// no longer allows is dropped.
func (s *Session) mutateCards(ctx context.Context, fn func(cardstate.State, time.Time) (cardstate.State, error)) error {
	s.mu.Lock()
	if s.room == nil || s.role != RolePlayer {
		s.mu.Unlock()
		return nil
	}
	if s.cardState == nil {
		s.mu.Unlock()
		return ErrNoCardGame
	}
	cur := s.cardState.Clone()
	s.mu.Unlock()

	at := time.Now().UTC()
	next, err := fn(cur, at)
	if err != nil {
		return err
	}
	optimistic := next.Clone()
	return s.publishCards(ctx, next, func(r *models.Room) error {
		stored, ok, err := cardstate.FromGameData(r.GameData)
		if err != nil {
			return err
		}
		// The deal itself may still be in a peer's persist queue.
		result := optimistic
		if ok {
			if result, err = fn(stored, at); err != nil {
				// Still write the room so every member resyncs from the
				// change notification.
				s.logger.WithError(err).Warn("card move no longer applies; keeping stored state")
				return nil
			}
		}
		value, err := result.GameDataValue()
		if err != nil {
			return err
		}
		r.GameData[cardstate.GameDataKey] = value
		return nil
	})
}
