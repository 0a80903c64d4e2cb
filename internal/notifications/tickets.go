package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TicketTTL is how long a WebSocket ticket stays redeemable.
const TicketTTL = 30 * time.Second

var (
	ErrTicketStoreUnavailable = errors.New("ticket store unavailable")
	ErrTicketInvalid          = errors.New("invalid or expired ticket")
)

// TicketStore issues single-use WebSocket tickets backed by Redis.
type TicketStore struct {
	rdb *redis.Client
}

// NewTicketStore returns a TicketStore using rdb.
func NewTicketStore(rdb *redis.Client) *TicketStore {
	return &TicketStore{rdb: rdb}
}

func ticketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// Issue stores a new ticket for userID and returns it.
func (s *TicketStore) Issue(ctx context.Context, userID uint) (string, error) {
	if s == nil || s.rdb == nil {
		return "", ErrTicketStoreUnavailable
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, ticketKey(ticket), userID, TicketTTL).Err(); err != nil {
		return "", fmt.Errorf("store ticket: %w", err)
	}
	return ticket, nil
}

// Redeem consumes a ticket and returns its user. A ticket works once.
func (s *TicketStore) Redeem(ctx context.Context, ticket string) (uint, error) {
	if s == nil || s.rdb == nil {
		return 0, ErrTicketStoreUnavailable
	}
	if ticket == "" {
		return 0, ErrTicketInvalid
	}
	val, err := s.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTicketInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("redeem ticket: %w", err)
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrTicketInvalid
	}
	return uint(id), nil
}
