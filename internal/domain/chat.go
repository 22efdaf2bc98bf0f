package domain

import "time"

// ChatMessage is an append-only message in a workspace chat
type ChatMessage struct {
	ID        int64     `json:"id" bson:"_id"`
	Workspace string    `json:"workspace" bson:"workspace"`
	Time      time.Time `json:"time" bson:"time"`
	Content   string    `json:"content" bson:"content"`
}
