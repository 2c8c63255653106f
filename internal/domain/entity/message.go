package entity

import "time"

// Message is immutable once written except for Read.
type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	Text           string    `json:"text" firestore:"text"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	SenderName     string    `json:"sender_name" firestore:"senderName"`
	Timestamp      time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	Read           bool      `json:"read" firestore:"read"`
}

// MessagePage is one page of history in chronological order. Cursor points at the oldest
// message of the page and is passed back to fetch the next older page.
type MessagePage struct {
	Messages []*Message `json:"messages"`
	Cursor   string     `json:"cursor,omitempty"`
	HasMore  bool       `json:"has_more"`
}

// CountUnread returns, for each participant, how many messages from someone else are still unread.
func CountUnread(participants []string, messages []*Message) map[string]int {
	counts := make(map[string]int, len(participants))
	for _, p := range participants {
		counts[p] = 0
	}
	for _, m := range messages {
		if m.Read {
			continue
		}
		for _, p := range participants {
			if m.SenderID != p {
				counts[p]++
			}
		}
	}
	return counts
}
