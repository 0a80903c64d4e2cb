package repository

import (
	"context"
	"errors"

	"quad/internal/models"

	"gorm.io/gorm"
)

// ConnectionRepository defines persistence operations for the user network.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.Connection) error
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	Between(ctx context.Context, userA, userB uint) (*models.Connection, error)
	ConnectedUsers(ctx context.Context, userID uint) ([]models.User, error)
	ConnectedIDs(ctx context.Context, userID uint) ([]uint, error)
	ConnectedIDsFor(ctx context.Context, userIDs []uint) (map[uint][]uint, error)
	RelatedIDs(ctx context.Context, userID uint) ([]uint, error)
	SecondDegreeIDs(ctx context.Context, userID uint, limit int) ([]uint, error)
	Pending(ctx context.Context, userID uint) ([]models.Connection, error)
	Sent(ctx context.Context, userID uint) ([]models.Connection, error)
	UpdateStatus(ctx context.Context, id uint, status models.ConnectionStatus) error
	Delete(ctx context.Context, id uint) error
}

type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	return translateError(r.db.WithContext(ctx).Create(conn).Error, "Connection", conn.AddresseeID)
}

func (r *connectionRepository) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).Preload("Requester").Preload("Addressee").First(&conn, id).Error; err != nil {
		return nil, translateError(err, "Connection request", id)
	}
	return &conn, nil
}

// Between returns the edge joining two users in either direction, or nil.
func (r *connectionRepository) Between(ctx context.Context, userA, userB uint) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userA, userB, userB, userA).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &conn, nil
}

func (r *connectionRepository) ConnectedUsers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN connections c ON (users.id = c.requester_id OR users.id = c.addressee_id)").
		Where("c.status = ? AND (c.requester_id = ? OR c.addressee_id = ?) AND users.id <> ? AND users.deleted_at IS NULL",
			models.ConnectionStatusAccepted, userID, userID, userID).
		Order("users.username asc").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *connectionRepository) ConnectedIDs(ctx context.Context, userID uint) ([]uint, error) {
	byUser, err := r.ConnectedIDsFor(ctx, []uint{userID})
	if err != nil {
		return nil, err
	}
	ids := byUser[userID]
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

type edge struct {
	RequesterID uint
	AddresseeID uint
}

// ConnectedIDsFor loads the accepted network of every given user in one query.
func (r *connectionRepository) ConnectedIDsFor(ctx context.Context, userIDs []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var edges []edge
	if err := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Select("requester_id, addressee_id").
		Where("status = ? AND (requester_id IN ? OR addressee_id IN ?)", models.ConnectionStatusAccepted, userIDs, userIDs).
		Order("id asc").
		Scan(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	wanted := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	for _, e := range edges {
		if _, ok := wanted[e.RequesterID]; ok {
			out[e.RequesterID] = append(out[e.RequesterID], e.AddresseeID)
		}
		if _, ok := wanted[e.AddresseeID]; ok {
			out[e.AddresseeID] = append(out[e.AddresseeID], e.RequesterID)
		}
	}
	return out, nil
}

// RelatedIDs lists every user sharing an edge with userID, whatever its status.
func (r *connectionRepository) RelatedIDs(ctx context.Context, userID uint) ([]uint, error) {
	var edges []edge
	if err := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Select("requester_id, addressee_id").
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Scan(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		if e.RequesterID == userID {
			ids = append(ids, e.AddresseeID)
		} else {
			ids = append(ids, e.RequesterID)
		}
	}
	return ids, nil
}

// SecondDegreeIDs lists connections of connections, excluding userID.
func (r *connectionRepository) SecondDegreeIDs(ctx context.Context, userID uint, limit int) ([]uint, error) {
	direct, err := r.ConnectedIDs(ctx, userID)
	if err != nil || len(direct) == 0 {
		return []uint{}, err
	}
	byUser, err := r.ConnectedIDsFor(ctx, direct)
	if err != nil {
		return nil, err
	}

	seen := map[uint]struct{}{userID: {}}
	for _, id := range direct {
		seen[id] = struct{}{}
	}
	var out []uint
	for _, id := range direct {
		for _, other := range byUser[id] {
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			out = append(out, other)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *connectionRepository) Pending(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("addressee_id = ? AND status = ?", userID, models.ConnectionStatusPending).
		Preload("Requester").
		Order("created_at desc").
		Find(&conns).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return conns, nil
}

func (r *connectionRepository) Sent(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, models.ConnectionStatusPending).
		Preload("Addressee").
		Order("created_at desc").
		Find(&conns).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return conns, nil
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, id uint, status models.ConnectionStatus) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Connection{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
