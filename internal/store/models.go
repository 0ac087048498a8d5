package store

import "time"

// User is an identity record.
type User struct {
	ID          int64
	Username    string
	Email       string
	IsStaff     bool
	IsSuperuser bool
	IsActive    bool
	DateJoined  time.Time
	LastLogin   *time.Time
}

// Profile is the one-to-one public profile of a User.
type Profile struct {
	ID               int64
	UserID           int64
	ProfileName      string
	ProfileImage     *string // media storage key
	GoogleImageURL   string
	SelfIntroduction string
	GitHubUsername   string
	TwitterUsername  string
	WebsiteURL       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Task is a to-do item owned by its creator.
type Task struct {
	ID        int64
	CreatorID int64
	Title     string
	Content   string
	IsDone    bool
	TaskImage *string // media storage key
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SocialAccount links a User to an identity at a third-party provider.
type SocialAccount struct {
	ID        int64
	UserID    int64
	Provider  string
	UID       string
	ExtraData string // raw JSON from the provider
	CreatedAt time.Time
	UpdatedAt time.Time
}
