package domain

import "time"

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusDeclined  RequestStatus = "declined"
	StatusCancelled RequestStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s != StatusPending
}

// Listing is the slice of an externally owned listing the marketplace core reads and writes.
type Listing struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Title     string    `json:"title"`
	IsSold    bool      `json:"is_sold"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingDetail adds negotiation state to a listing. Requesters is only
// populated when the viewer is the seller.
type ListingDetail struct {
	Listing
	PurchaseRequestCount int      `json:"purchase_request_count"`
	PurchaseRequesters   []string `json:"purchase_requesters,omitempty"`
}

type PurchaseRequest struct {
	ID          string        `json:"id"`
	ListingID   string        `json:"listing_id"`
	RequesterID string        `json:"requester_id"`
	Status      RequestStatus `json:"status"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PurchaseRequestView joins a request with the listing fields shown in sent/received lists.
type PurchaseRequestView struct {
	PurchaseRequest
	ListingTitle string `json:"listing_title"`
	SellerID     string `json:"seller_id"`
	ListingSold  bool   `json:"listing_sold"`
}

type ChatRoom struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	ItemID    *string   `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *ChatRoom) HasParticipant(userID string) bool {
	return userID == r.UserAID || userID == r.UserBID
}

// Other returns the participant that is not userID.
func (r *ChatRoom) Other(userID string) string {
	if userID == r.UserAID {
		return r.UserBID
	}
	return r.UserAID
}

type RoomSummary struct {
	ChatRoom
	UnreadCount     int        `json:"unread_count"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

// CanonicalPair orders two user ids so the lexically smaller one comes first.
func CanonicalPair(x, y string) (string, string) {
	if y < x {
		return y, x
	}
	return x, y
}

type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at"`
}

type NotificationType string

const (
	NotificationPurchase NotificationType = "purchase"
	NotificationChat     NotificationType = "chat"
)

func (t NotificationType) Valid() bool {
	return t == NotificationPurchase || t == NotificationChat
}

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	RelatedItem *string          `json:"related_item"`
	CreatedAt   time.Time        `json:"created_at"`
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
}

type ItemReport struct {
	ID         string     `json:"id"`
	ListingID  string     `json:"listing_id"`
	ReporterID string     `json:"reporter_id"`
	Reason     string     `json:"reason"`
	Details    *string    `json:"details,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
}

// Stats is the admin overview.
type Stats struct {
	Listings         int `json:"listings"`
	SoldListings     int `json:"sold_listings"`
	PendingRequests  int `json:"pending_requests"`
	AcceptedRequests int `json:"accepted_requests"`
	Rooms            int `json:"rooms"`
	Messages         int `json:"messages"`
	Notifications    int `json:"notifications"`
	OpenReports      int `json:"open_reports"`
}
