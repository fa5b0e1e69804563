package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	PlayerCookie = "player_token"
	UserCookie   = "auth_token"
)

// Identity is who a connection acts as. PlayerID is stable per browser and
// not tied to an account. UserID is set only for signed-in users.
type Identity struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	UserID   string `json:"-"`
}

// Authenticated reports whether the identity carries an account.
func (i Identity) Authenticated() bool { return i.UserID != "" }

// EnsurePlayerIdentity resolves the caller's player identity from the
// player_token cookie, minting a new player id and cookie when it is absent or
// invalid. A ?name= query parameter replaces the display name. An auth_token
// cookie, when valid, attaches the account user id.
func EnsurePlayerIdentity(w http.ResponseWriter, r *http.Request) (Identity, error) {
	var (
		id    Identity
		fresh bool
	)
	if c, err := r.Cookie(PlayerCookie); err == nil {
		if parsed, err := ParsePlayerToken(c.Value); err == nil {
			id = parsed
		}
	}
	if id.PlayerID == "" {
		id.PlayerID = uuid.NewString()
		fresh = true
	}
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" && name != id.Name {
		id.Name = name
		fresh = true
	}
	if c, err := r.Cookie(UserCookie); err == nil {
		if userID, err := AuthenticateJWT(c.Value); err == nil {
			id.UserID = userID
		}
	}

	if fresh {
		token, err := CreatePlayerToken(id.PlayerID, id.Name)
		if err != nil {
			return Identity{}, err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     PlayerCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return id, nil
}
