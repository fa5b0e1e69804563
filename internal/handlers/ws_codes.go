// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room gateway.
const (
	BadSubprotocolError  = 3000 // Client connected without the room subprotocol.
	RoomUnavailableError = 3001 // Auto-join target does not exist, is full or has finished.
)
