package model

import (
	"errors"
	"time"
)

// Stamp is a catalog entry in the `stamps` collection: one collectible
// landmark stamp.
type Stamp struct {
	ID           string    `firestore:"-" json:"id"`
	Name         string    `firestore:"name" json:"name"`
	LocationText string    `firestore:"locationText" json:"location_text"`
	Latitude     float64   `firestore:"latitude" json:"latitude"`
	Longitude    float64   `firestore:"longitude" json:"longitude"`
	ImageKey     string    `firestore:"imageKey" json:"-"`
	ImageURL     string    `firestore:"-" json:"image_url"`
	CreatedAt    time.Time `firestore:"createdAt" json:"created_at"`
}

// CollectedStamp is the denormalized per-user record under
// `users/{id}/collected/{stampId}`: the source a feed post is built from.
// LikeCount and CommentCount are believed-global counters bumped by the
// like/comment writers.
type CollectedStamp struct {
	StampID      string    `firestore:"stampId" json:"stamp_id"`
	OwnerID      string    `firestore:"ownerId" json:"owner_id"`
	CollectedAt  time.Time `firestore:"collectedAt" json:"collected_at"`
	PhotoKeys    []string  `firestore:"photoKeys" json:"-"`
	LikeCount    int64     `firestore:"likeCount" json:"like_count"`
	CommentCount int64     `firestore:"commentCount" json:"comment_count"`
}

var (
	ErrStampNotFound    = errors.New("stamp not found")
	ErrAlreadyCollected = errors.New("stamp already collected")
	ErrNotCollected     = errors.New("stamp not collected")
	ErrTooManyPhotos    = errors.New("too many photos")
)

// MaxCollectPhotos caps the photo references attached to one collected stamp.
const MaxCollectPhotos = 4
