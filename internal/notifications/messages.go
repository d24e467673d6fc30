package notifications

import (
	"fmt"

	"github.com/google/uuid"
)

func connectionRequestedMessage(senderID uuid.UUID) string {
	return fmt.Sprintf("You have received a connection request from %s", senderID)
}

func connectionAcceptedMessage(receiverID uuid.UUID) string {
	return fmt.Sprintf("Your connection request to %s has been accepted", receiverID)
}

func postCreatedMessage(creatorID uuid.UUID) string {
	return fmt.Sprintf("Your connection: %s has created a post, Check it out!", creatorID)
}

func postLikedMessage(postID, likedByUserID uuid.UUID) string {
	return fmt.Sprintf("Your Post, %s has been liked by %s", postID, likedByUserID)
}
