// internal/database/seed.go
package database

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// CreekGameID is the catalog game id of the board-race event deck.
const CreekGameID = "up-shitz-creek"

var creekEvents = []struct{ name, effect string }{
	{"Backwash", "Move back 2 spaces"},
	{"Upstream", "Paddle upstream"},
	{"Strong Current", "Move forward three spaces"},
	{"Pickpocket", "Steal a paddle from any player"},
	{"Generosity", "Give one of your paddles to another player"},
	{"Driftwood", "You find 2 paddles floating by"},
	{"Snap", "Your paddle snaps. Lose a paddle"},
	{"Sabotage", "Send another player to the Shit Pile"},
	{"Undertow", "Send a player back 4 spaces"},
	{"Wake", "Send any player back"},
	{"Tow Rope", "Bring a player to your space"},
	{"Capsized", "Go back to the start"},
	{"Whitewater", "Advance to the nearest rapids"},
	{"Breakaway", "Take the lead!"},
	{"Slipstream", "Move ahead of any player"},
	{"Beached", "Skip your next turn"},
	{"Second Wind", "Roll again"},
	{"Flotsam", "Draw again"},
	{"Nose Plug", "Skip the next Shit Pile you land on"},
	{"Switcheroo", "Swap places with a random player"},
	{"Spare Paddle", "Gain a paddle"},
	{"Calm Water", "Enjoy the view"},
}

// CreekCards is the built-in event deck for stores without a catalog.
func CreekCards() []models.Card {
	cards := make([]models.Card, len(creekEvents))
	for i, ev := range creekEvents {
		cards[i] = models.Card{
			ID:       fmt.Sprintf("creek-%02d", i+1),
			GameID:   CreekGameID,
			CardType: "event",
			Name:     ev.name,
			Effect:   ev.effect,
			Ordinal:  i + 1,
		}
	}
	return cards
}

// SeedCatalog loads the built-in decks into s.
func SeedCatalog(ctx context.Context, s Store) error {
	if err := s.UpsertCards(ctx, CreekCards()); err != nil {
		return fmt.Errorf("seed %s cards: %w", CreekGameID, err)
	}
	return nil
}
