package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

type ContextType string

const (
	ContextListing ContextType = "listing"
	ContextShop    ContextType = "shop"
	ContextUser    ContextType = "user"
)

func (t ContextType) Valid() bool {
	switch t {
	case ContextListing, ContextShop, ContextUser:
		return true
	}
	return false
}

// ConversationContext records what prompted the first contact. It is set once at creation.
type ConversationContext struct {
	Type  ContextType `json:"type" firestore:"type"`
	ID    string      `json:"id" firestore:"id"`
	Title string      `json:"title" firestore:"title"`
}

type Conversation struct {
	ID               string               `json:"id" firestore:"id"`
	Participants     []string             `json:"participants" firestore:"participants"`
	ParticipantNames map[string]string    `json:"participant_names" firestore:"participantNames"`
	LastMessage      string               `json:"last_message,omitempty" firestore:"lastMessage"`
	LastMessageTime  time.Time            `json:"last_message_time" firestore:"lastMessageTime"`
	LastSenderID     string               `json:"last_sender_id,omitempty" firestore:"lastSenderId"`
	UnreadCount      map[string]int       `json:"unread_count" firestore:"unreadCount"` // participant ID -> unread messages
	Context          *ConversationContext `json:"context,omitempty" firestore:"context,omitempty"`
	CreatedAt        time.Time            `json:"created_at" firestore:"createdAt"`
	UpdatedAt        time.Time            `json:"updated_at" firestore:"updatedAt"`
}

// PairKey derives the deterministic conversation ID for an unordered participant pair.
// The first ID is length-prefixed before hashing, so no two distinct pairs share a key
// whatever characters the IDs contain.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(strconv.Itoa(len(a)) + ":" + a + b))
	return "pair_" + hex.EncodeToString(sum[:])
}

// IsBetween reports whether the conversation is exactly the pair a, b.
func (c *Conversation) IsBetween(a, b string) bool {
	return len(c.Participants) == 2 && a != b && c.HasParticipant(a) && c.HasParticipant(b)
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or "" if userID is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c *Conversation) UnreadFor(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}
