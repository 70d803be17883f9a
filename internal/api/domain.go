package api

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contracts for the collaborators surrounding the authentication core. The
// board/pin/follow/notification/search verticals live behind these interfaces;
// the auth core never depends on their implementations.

// Board is a user-owned collection of pins.
type Board struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pin is a bookmarked resource saved onto a board.
type Pin struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	ImageURL  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is an event delivered to a user's feed.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Kind      string     `json:"kind"`
	Payload   string     `json:"payload"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Page is the common cursor-less pagination envelope.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// BoardRepository defines persistence for boards.
type BoardRepository interface {
	GetBoardByID(ctx context.Context, boardID uuid.UUID) (*Board, error)
	ListBoardsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Board, *Page, error)
	CreateBoard(ctx context.Context, board Board) (*Board, error)
	UpdateBoard(ctx context.Context, board Board) error
	DeleteBoard(ctx context.Context, boardID uuid.UUID) error
}

// PinRepository defines persistence for pins.
type PinRepository interface {
	GetPinByID(ctx context.Context, pinID uuid.UUID) (*Pin, error)
	ListPinsByBoard(ctx context.Context, boardID uuid.UUID, limit, offset int) ([]Pin, *Page, error)
	CreatePin(ctx context.Context, pin Pin) (*Pin, error)
	DeletePin(ctx context.Context, pinID uuid.UUID) error
}

// FollowRepository stores the follower/blocked relationship graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) error
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]uuid.UUID, *Page, error)
	IsBlocked(ctx context.Context, blockerID, blockedID uuid.UUID) (bool, error)
}

// NotificationRepository stores per-user notification feeds.
type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, *Page, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID) error
}

// SearchService queries users, boards and pins by free text.
type SearchService interface {
	SearchPins(ctx context.Context, query string, limit, offset int) ([]Pin, *Page, error)
	SearchBoards(ctx context.Context, query string, limit, offset int) ([]Board, *Page, error)
}
