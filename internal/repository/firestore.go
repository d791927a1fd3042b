package repository

import (
	"cloud.google.com/go/firestore"
)

// Collection and field names are the external schema contract shared with the
// existing backend. The reconcile job in particular must match them exactly.
const (
	ColUsers     = "users"
	ColFollowing = "following"
	ColFollowers = "followers"
	ColCollected = "collected"
	ColLikes     = "likes"
	ColComments  = "comments"
	ColStamps    = "stamps"

	FieldFollowerCount  = "followerCount"
	FieldFollowingCount = "followingCount"
	FieldCollectedCount = "collectedCount"
	FieldLikeCount      = "likeCount"
	FieldCommentCount   = "commentCount"
	FieldFolloweeID     = "followeeId"
	FieldCollectedAt    = "collectedAt"
	FieldCreatedAt      = "createdAt"
)

func userDoc(fs *firestore.Client, userID string) *firestore.DocumentRef {
	return fs.Collection(ColUsers).Doc(userID)
}

func collectedDoc(fs *firestore.Client, ownerID, stampID string) *firestore.DocumentRef {
	return userDoc(fs, ownerID).Collection(ColCollected).Doc(stampID)
}
