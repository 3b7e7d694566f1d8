package models

import "time"

type Collection struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
}

// Document holds already-extracted text. Raw file decoding happens upstream;
// by the time a document reaches this service its content is plain text.
type Document struct {
	ID           int64
	CollectionID int64
	FileName     string
	FileType     string
	Content      string
	UploadedAt   time.Time
}

// IndexedCollection maps a collection to its backing vector namespace.
// At most one row exists per collection id.
type IndexedCollection struct {
	CollectionID int64
	Namespace    string
	CreatedAt    time.Time
}

// ChatTurn is one past query/response pair, scoped to (collection, user).
type ChatTurn struct {
	ID           int64
	UserID       int64
	CollectionID int64
	Query        string
	Response     string
	CreatedAt    time.Time
}

type AdminSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
