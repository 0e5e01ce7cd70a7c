package models

import "time"

type SessionKind string

const (
	SessionKindRandom SessionKind = "random"
	SessionKindCode   SessionKind = "code"
)

// ChatSession pairs two users. The row is owned by the durable store; the
// matching coordinator only ever reads the pair and kind.
type ChatSession struct {
	ID        string      `json:"id" db:"id"`
	User1ID   string      `json:"user1Id" db:"user1_id"`
	User2ID   string      `json:"user2Id" db:"user2_id"`
	Kind      SessionKind `json:"kind" db:"kind"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	EndedAt   *time.Time  `json:"endedAt,omitempty" db:"ended_at"`
}

// PartnerOf returns the other member of the pair, or "" if userID is not a
// member.
func (s *ChatSession) PartnerOf(userID string) string {
	switch userID {
	case s.User1ID:
		return s.User2ID
	case s.User2ID:
		return s.User1ID
	default:
		return ""
	}
}
