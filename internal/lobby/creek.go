// internal/lobby/creek.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/creek"
	"github.com/jason-s-yu/partyroom/internal/models"
)

var errNotYourTurn = errors.New("not this session's turn")

// StartCreekGame seats every player plus bots on the river and deals the
// event deck from the catalog. A waiting room is started as well. Host only.
func (s *Session) StartCreekGame(ctx context.Context, bots int) error {
	room, role := s.view()
	if room == nil {
		return ErrNotInRoom
	}
	if !s.isHost(room, role) {
		return nil
	}
	cards, err := s.m.catalog(ctx, s.m.opts.CreekGameID)
	if err != nil {
		return err
	}
	players, err := s.m.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	seats := make([]creek.PlayerState, 0, len(players)+bots)
	for _, p := range players {
		seats = append(seats, creek.PlayerState{ID: p.PlayerID, Name: p.Name})
	}
	for i := 1; i <= bots; i++ {
		seats = append(seats, creek.PlayerState{ID: fmt.Sprintf("bot-%d", i), Name: fmt.Sprintf("Bot %d", i), IsBot: true})
	}

	engine := creek.NewEngine(creek.DefaultBoard(), cards, nil, s.logger)
	gs := creek.NewGame(seats)
	gs.Deck = engine.DeckFromCatalog()
	value, err := gs.GameDataValue()
	if err != nil {
		return err
	}

	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		switch r.Status {
		case models.RoomFinished:
			return ErrInvalidTransition
		case models.RoomWaiting:
			now := time.Now().UTC()
			r.Status = models.RoomPlaying
			r.StartedAt = &now
		}
		r.GameData[creek.GameDataKey] = value
		r.CurrentTurn = 0
		return nil
	})
	if err != nil {
		return err
	}
	s.applyRoom(updated)
	s.logger.WithFields(logrus.Fields{"room": updated.Code, "seats": len(seats), "cards": len(cards)}).Info("board race started")
	return nil
}

// PlayCreekTurn resolves the current seat's turn. A player plays their own
// turn; the host also drives bot turns. Anyone else is ignored and gets a
// nil report.
func (s *Session) PlayCreekTurn(ctx context.Context) (*creek.TurnReport, error) {
	room, role := s.view()
	if room == nil {
		return nil, ErrNotInRoom
	}
	if role != RolePlayer {
		return nil, nil
	}
	cards, err := s.m.catalog(ctx, s.m.opts.CreekGameID)
	if err != nil {
		return nil, err
	}
	engine := creek.NewEngine(creek.DefaultBoard(), cards, nil, s.logger)

	var (
		report creek.TurnReport
		final  creek.GameState
	)
	updated, err := s.m.mutateRoom(ctx, room.ID, func(r *models.Room) error {
		gs, ok, err := creek.FromGameData(r.GameData)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoCreekGame
		}
		if r.Status != models.RoomPlaying || gs.Finished() {
			return ErrInvalidTransition
		}
		cur, ok := gs.Current()
		if !ok {
			return ErrNoCreekGame
		}
		if cur.ID != s.id.PlayerID && !(cur.IsBot && r.HostID == s.id.PlayerID) {
			return errNotYourTurn
		}
		next, rep := engine.ResolveTurn(gs)
		value, err := next.GameDataValue()
		if err != nil {
			return err
		}
		r.GameData[creek.GameDataKey] = value
		r.CurrentTurn = next.CurrentTurn
		report, final = rep, next
		return nil
	})
	if errors.Is(err, errNotYourTurn) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.applyRoom(updated)
	s.broadcast(ctx, updated.ID, EventCreekTurn, report)
	s.write(Update{Type: UpdateCreekTurn, Payload: report})

	if report.Winner != "" {
		scores := make(map[string]int, len(final.Players))
		for _, p := range final.Players {
			scores[p.ID] = p.Position
		}
		if err := s.EndGame(ctx, report.Winner, scores); err != nil {
			s.logger.WithError(err).Warn("failed to finish board race")
		}
	}
	return &report, nil
}
