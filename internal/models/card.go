package models

// Card is a catalog row. Effect is free text such as "Move back 2 spaces".
type Card struct {
	ID       string `json:"id"`
	GameID   string `json:"game_id"`
	CardType string `json:"card_type"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
	Effect   string `json:"effect"`
	Ordinal  int    `json:"ordinal"`
}
