package payloads

import "github.com/google/uuid"

// ConnectionRequestedEvent is emitted when SenderID invites ReceiverID.
type ConnectionRequestedEvent struct {
	RequestID  uuid.UUID `json:"requestId"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
}

// ConnectionAcceptedEvent keeps the direction of the original request:
// SenderID is the requester, ReceiverID is the user who accepted.
type ConnectionAcceptedEvent struct {
	RequestID  uuid.UUID `json:"requestId"`
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
}

// PostCreatedEvent announces a new post to the creator's network.
type PostCreatedEvent struct {
	PostID    uuid.UUID `json:"postId"`
	CreatorID uuid.UUID `json:"creatorId"`
	Content   string    `json:"content"`
}

// PostLikedEvent tells the post creator who liked it.
type PostLikedEvent struct {
	PostID        uuid.UUID `json:"postId"`
	CreatorID     uuid.UUID `json:"creatorId"`
	LikedByUserID uuid.UUID `json:"likedByUserId"`
}

// UserCreatedEvent seeds the people projection.
type UserCreatedEvent struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
}
