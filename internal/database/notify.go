package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

// NotifyingStore publishes a change event on the room topic after every
// successful room-scoped write. Reads pass straight through.
type NotifyingStore struct {
	Store
	transport realtime.Transport
	logger    logrus.FieldLogger
}

func NewNotifyingStore(inner Store, transport realtime.Transport, logger logrus.FieldLogger) *NotifyingStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotifyingStore{Store: inner, transport: transport, logger: logger}
}

func (n *NotifyingStore) notify(ctx context.Context, roomID uuid.UUID, table string, op realtime.Op, row any) {
	ev, err := realtime.NewChange(table, op, row)
	if err != nil {
		n.logger.WithError(err).WithField("table", table).Warn("failed to build change event")
		return
	}
	if err := n.transport.Publish(ctx, realtime.RoomTopic(roomID.String()), ev); err != nil {
		n.logger.WithError(err).WithField("table", table).Warn("failed to publish change event")
	}
}

type memberRow struct {
	RoomID   uuid.UUID `json:"room_id"`
	PlayerID string    `json:"player_id"`
}

func (n *NotifyingStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := n.Store.CreateRoom(ctx, room); err != nil {
		return err
	}
	n.notify(ctx, room.ID, TableRooms, realtime.OpInsert, room)
	return nil
}

func (n *NotifyingStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	if err := n.Store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	n.notify(ctx, room.ID, TableRooms, realtime.OpUpdate, room)
	return nil
}

func (n *NotifyingStore) UpsertPlayer(ctx context.Context, p *models.Player) error {
	if err := n.Store.UpsertPlayer(ctx, p); err != nil {
		return err
	}
	n.notify(ctx, p.RoomID, TablePlayers, realtime.OpUpdate, p)
	return nil
}

func (n *NotifyingStore) RemovePlayer(ctx context.Context, roomID uuid.UUID, playerID string) error {
	if err := n.Store.RemovePlayer(ctx, roomID, playerID); err != nil {
		return err
	}
	n.notify(ctx, roomID, TablePlayers, realtime.OpDelete, memberRow{roomID, playerID})
	return nil
}

func (n *NotifyingStore) UpsertSpectator(ctx context.Context, s *models.Spectator) error {
	if err := n.Store.UpsertSpectator(ctx, s); err != nil {
		return err
	}
	n.notify(ctx, s.RoomID, TableSpectators, realtime.OpUpdate, s)
	return nil
}

func (n *NotifyingStore) RemoveSpectator(ctx context.Context, roomID uuid.UUID, playerID string) error {
	if err := n.Store.RemoveSpectator(ctx, roomID, playerID); err != nil {
		return err
	}
	n.notify(ctx, roomID, TableSpectators, realtime.OpDelete, memberRow{roomID, playerID})
	return nil
}

func (n *NotifyingStore) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	if err := n.Store.AppendMessage(ctx, m); err != nil {
		return err
	}
	n.notify(ctx, m.RoomID, TableMessages, realtime.OpInsert, m)
	return nil
}
