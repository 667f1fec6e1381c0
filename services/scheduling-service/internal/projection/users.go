// Package projection keeps the local users table in step with auth-service.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/slotmeet/libs/events"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

// UserStore writes projected users within the consumer's transaction.
type UserStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, u model.User) error
}

type Users struct {
	store UserStore
}

func NewUsers(store UserStore) *Users {
	return &Users{store: store}
}

// Handle applies a user created or updated event. Other topics are ignored.
func (p *Users) Handle(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
	if msg.Topic != events.UserCreated && msg.Topic != events.UserUpdated {
		return nil
	}
	u, err := decodeUser(msg.Value)
	if err != nil {
		return err
	}
	return p.store.Upsert(ctx, tx, u)
}

func decodeUser(raw []byte) (model.User, error) {
	var evt events.User
	if err := json.Unmarshal(raw, &evt); err != nil {
		return model.User{}, fmt.Errorf("decode user event: %w", err)
	}
	if strings.TrimSpace(evt.UserID) == "" || strings.TrimSpace(evt.Username) == "" {
		return model.User{}, fmt.Errorf("decode user event: missing user_id or username")
	}
	return model.User{
		ID:        evt.UserID,
		Name:      evt.Name,
		Username:  evt.Username,
		Email:     evt.Email,
		Timezone:  evt.Timezone,
		UpdatedAt: evt.UpdatedAt,
	}, nil
}
