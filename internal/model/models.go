package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// IdentityState describes how much is known about the signed-in user.
type IdentityState int

const (
	// IdentityUnknown means the identity provider has not answered yet.
	IdentityUnknown IdentityState = iota
	// IdentityAbsent means nobody is signed in.
	IdentityAbsent
	// IdentityPresent means a user is signed in.
	IdentityPresent
)

func (s IdentityState) String() string {
	switch s {
	case IdentityAbsent:
		return "absent"
	case IdentityPresent:
		return "present"
	default:
		return "unknown"
	}
}

// User is the identity provider's view of a signed-in account.
type User struct {
	ID    string
	Email string // email address or display name, whichever the provider has
}

// Identity is the current session identity as seen by the client.
type Identity struct {
	State IdentityState
	User  User // only meaningful when State == IdentityPresent
}

// UnknownIdentity returns the initial, unresolved identity.
func UnknownIdentity() Identity { return Identity{State: IdentityUnknown} }

// AbsentIdentity returns the signed-out identity.
func AbsentIdentity() Identity { return Identity{State: IdentityAbsent} }

// PresentIdentity returns a signed-in identity for the given user.
func PresentIdentity(id, emailOrName string) Identity {
	return Identity{State: IdentityPresent, User: User{ID: id, Email: emailOrName}}
}

// IsPresent reports whether a user is signed in.
func (i Identity) IsPresent() bool { return i.State == IdentityPresent }

// Equal reports whether two identities describe the same session state.
func (i Identity) Equal(o Identity) bool {
	if i.State != o.State {
		return false
	}
	return i.State != IdentityPresent || i.User == o.User
}

func (i Identity) String() string {
	if i.IsPresent() {
		return fmt.Sprintf("present(%s, %s)", i.User.ID, i.User.Email)
	}
	return i.State.String()
}

// Text is a nullable string. The backend sends it either as a plain string,
// as a {"String": ..., "Valid": ...} wrapper, or as null / not at all.
type Text struct {
	String string
	Valid  bool
}

// NewText returns a valid Text holding s.
func NewText(s string) Text { return Text{String: s, Valid: true} }

// Or returns the content when it is valid and non-empty, otherwise def.
func (t Text) Or(def string) string {
	if t.Valid && t.String != "" {
		return t.String
	}
	return def
}

// UnmarshalJSON accepts a string, a wrapper object or null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text{String: s, Valid: true}
		return nil
	}

	var w struct {
		String string `json:"String"`
		Valid  bool   `json:"Valid"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding nullable string: %w", err)
	}
	*t = Text{String: w.String, Valid: w.Valid}
	return nil
}

// MarshalJSON writes the content as a plain string, or null when absent.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

// Patch carries the fields a mutation changes. Nil fields are left alone.
type Patch struct {
	Liked           *bool
	LikeCount       *int
	Read            *bool
	Username        *string
	ProfileImageURL *Text
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Liked == nil && p.LikeCount == nil && p.Read == nil && p.Username == nil && p.ProfileImageURL == nil
}

// Entity is anything identified by a stable id that can appear in more than
// one collection. WithPatch returns a patched copy and leaves the receiver
// untouched.
type Entity interface {
	EntityID() string
	WithPatch(p Patch) Entity
}

// Post is a feed entry. Replies are posts with ParentID set.
type Post struct {
	ID              string    `json:"id"`
	AuthorName      string    `json:"username"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	LikeCount       int       `json:"likes_count"`
	LikedByMe       bool      `json:"is_liked_by_me"`
	ReplyCount      int       `json:"reply_count"`
	ProfileImageURL Text      `json:"profile_image_url"`
	ImageURL        Text      `json:"image_url"`
	ParentID        string    `json:"reply_id,omitempty"`
}

func (p Post) EntityID() string { return p.ID }

// WithPatch applies the like fields of the patch. The count never drops below zero.
func (p Post) WithPatch(patch Patch) Entity {
	if patch.Liked != nil {
		p.LikedByMe = *patch.Liked
	}
	if patch.LikeCount != nil {
		p.LikeCount = max(*patch.LikeCount, 0)
	}
	return p
}

// NotificationKind is the wire value of a notification's type.
type NotificationKind string

const (
	KindLike              NotificationKind = "like"
	KindReply             NotificationKind = "reply"
	KindFollow            NotificationKind = "follow"
	KindModerationWarning NotificationKind = "warn"
	KindContentRemoved    NotificationKind = "delete"
	KindAccountSuspended  NotificationKind = "ban"
)

// Notification is an event addressed to the signed-in user.
type Notification struct {
	ID           string           `json:"id"`
	Kind         NotificationKind `json:"notificationType"`
	PostID       string           `json:"postId"`
	PostContent  Text             `json:"postContent"`
	SourceUserID string           `json:"sourceUserId"`
	SourceName   string           `json:"sourceUsername"`
	Read         bool             `json:"isRead"`
	CreatedAt    time.Time        `json:"createdAt"`
}

func (n Notification) EntityID() string { return n.ID }

// WithPatch applies the read flag of the patch.
func (n Notification) WithPatch(patch Patch) Entity {
	if patch.Read != nil {
		n.Read = *patch.Read
	}
	return n
}

// IsBlank reports whether every identifying field is empty. The backend uses
// such an object to mean "no notifications".
func (n Notification) IsBlank() bool {
	return n.ID == "" && n.Kind == "" && n.SourceUserID == "" && n.PostID == ""
}

// Profile is the signed-in user's public profile.
type Profile struct {
	UserID          string `json:"id,omitempty"`
	Username        string `json:"username"`
	ProfileImageURL Text   `json:"profile_image_url"`
}

func (p Profile) EntityID() string { return p.UserID }

// WithPatch applies the username and image fields of the patch.
func (p Profile) WithPatch(patch Patch) Entity {
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.ProfileImageURL != nil {
		p.ProfileImageURL = *patch.ProfileImageURL
	}
	return p
}

// MutationRecord is the journal entry written when a mutation settles.
type MutationRecord struct {
	ID         string
	Kind       string
	EntityID   string
	Outcome    string // "committed", "rolled_back" or "failed"
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
