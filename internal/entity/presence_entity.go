package entity

import "time"

// PresenceEvent is broadcast to a user's friends when their liveness
// changes. At most once per transition, no retry.
type PresenceEvent struct {
	UserId    int64      `json:"userId,string"`
	Status    UserStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}
