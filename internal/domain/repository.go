package domain

import (
	"context"
	"time"
)

type ListingRepository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, id string) (*Listing, error)
	// MarkSold flips is_sold false->true and reports whether this call did it.
	MarkSold(ctx context.Context, id string) (bool, error)
}

type PurchaseRequestRepository interface {
	// Create returns ErrConflict when a pending request already exists for the pair.
	Create(ctx context.Context, pr *PurchaseRequest) error
	GetByID(ctx context.Context, id string) (*PurchaseRequest, error)
	// FindPending returns nil, nil when there is none.
	FindPending(ctx context.Context, listingID, requesterID string) (*PurchaseRequest, error)
	// Transition moves a request from one status to another only if it is still in from.
	Transition(ctx context.Context, id string, from, to RequestStatus, active bool, at time.Time) (bool, error)
	// DeclinePending declines every pending request on the listing except exceptID
	// and returns the rows it changed.
	DeclinePending(ctx context.Context, listingID, exceptID string, at time.Time) ([]*PurchaseRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*PurchaseRequestView, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*PurchaseRequestView, error)
	ActiveRequesters(ctx context.Context, listingID string) ([]string, error)
}

type RoomRepository interface {
	// Find expects canonical ordering and returns nil, nil when absent.
	Find(ctx context.Context, userA, userB string, itemID *string) (*ChatRoom, error)
	// Create returns ErrConflict when the (user_a, user_b, item) triple exists.
	Create(ctx context.Context, r *ChatRoom) error
	GetByID(ctx context.Context, id string) (*ChatRoom, error)
	ListForUser(ctx context.Context, userID string) ([]*RoomSummary, error)
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForRoom(ctx context.Context, roomID string) ([]*Message, error)
	// MarkRoomRead marks unread messages addressed to receiverID as read.
	// read_at never precedes the message timestamp.
	MarkRoomRead(ctx context.Context, roomID, receiverID string, at time.Time) (int, error)
	CountUnread(ctx context.Context, receiverID string) (int, error)
	CountUnreadInRoom(ctx context.Context, roomID, receiverID string) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	// List returns newest first; an empty type means all types.
	List(ctx context.Context, recipientID string, typ NotificationType) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type ReportRepository interface {
	// FindOpen returns nil, nil when the reporter has no unresolved report on the listing.
	FindOpen(ctx context.Context, listingID, reporterID string) (*ItemReport, error)
	Create(ctx context.Context, r *ItemReport) error
	Delete(ctx context.Context, id string) error
	ListByReporter(ctx context.Context, reporterID string) ([]*ItemReport, error)
	ListOpen(ctx context.Context) ([]*ItemReport, error)
	Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (bool, error)
}

type AdminRepository interface {
	Stats(ctx context.Context) (*Stats, error)
	// Wipe deletes all marketplace data and returns rows removed per table.
	Wipe(ctx context.Context) (map[string]int64, error)
}

// Repositories is the set of repositories bound to one transaction.
type Repositories struct {
	Listings         ListingRepository
	PurchaseRequests PurchaseRequestRepository
	Rooms            RoomRepository
	Messages         MessageRepository
	Notifications    NotificationRepository
	Reports          ReportRepository
	Admin            AdminRepository
}

// Store runs fn inside a single transaction. fn may be invoked more than once
// when the transaction is retried after a serialization failure, so it must
// not leak side effects outside the transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(r *Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}
