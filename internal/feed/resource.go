package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"feedsync/internal/model"
)

// Resource describes one authenticated read and how to decode its body.
type Resource[T any] struct {
	Name   string
	Path   string
	Query  url.Values
	decode func(body []byte) (T, error)
}

// Request builds the transport request for the resource.
func (r Resource[T]) Request(token string) *Request {
	return &Request{
		Method: http.MethodGet,
		Path:   r.Path,
		Query:  r.Query,
		Token:  token,
	}
}

// Decode converts a response body into T.
func (r Resource[T]) Decode(body []byte) (T, error) {
	return r.decode(body)
}

// FeedResource lists posts, filtered by query when it is non-empty.
func FeedResource(query string) Resource[[]model.Post] {
	var q url.Values
	if query != "" {
		q = url.Values{"q": []string{query}}
	}
	return Resource[[]model.Post]{
		Name:   "timeline",
		Path:   "/post",
		Query:  q,
		decode: decodeList[model.Post],
	}
}

// PostResource reads a single post.
func PostResource(id string) Resource[model.Post] {
	return Resource[model.Post]{
		Name:   "post detail",
		Path:   "/post_detail/" + url.PathEscape(id),
		decode: decodeJSON[model.Post],
	}
}

// RepliesResource lists the replies to a post.
func RepliesResource(id string) Resource[[]model.Post] {
	return Resource[[]model.Post]{
		Name:   "replies",
		Path:   "/replies/" + url.PathEscape(id),
		decode: decodeList[model.Post],
	}
}

// NotificationsResource lists the signed-in user's notifications.
func NotificationsResource() Resource[[]model.Notification] {
	return Resource[[]model.Notification]{
		Name:   "notifications",
		Path:   "/notifications",
		decode: NormalizeNotifications,
	}
}

// UnreadCountResource reads the number of unread notifications.
func UnreadCountResource() Resource[int] {
	return Resource[int]{
		Name: "unread count",
		Path: "/notification/unread",
		decode: func(body []byte) (int, error) {
			var res struct {
				Count *int `json:"count"`
			}
			if err := json.Unmarshal(body, &res); err != nil {
				return 0, err
			}
			if res.Count == nil {
				return 0, fmt.Errorf("missing count")
			}
			return *res.Count, nil
		},
	}
}

// ProfileResource reads the signed-in user's profile.
func ProfileResource() Resource[model.Profile] {
	return Resource[model.Profile]{
		Name:   "profile",
		Path:   "/user",
		decode: decodeJSON[model.Profile],
	}
}

func decodeJSON[T any](body []byte) (T, error) {
	var v T
	err := json.Unmarshal(body, &v)
	return v, err
}

// decodeList treats a null body as an empty list.
func decodeList[T any](body []byte) ([]T, error) {
	if b := bytes.TrimSpace(body); len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return []T{}, nil
	}
	var v []T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// NormalizeNotifications accepts the three shapes the backend uses for the
// notification list: an array, a single object, or a single object with every
// identifying field blank (meaning "none"). Anything else is an error.
func NormalizeNotifications(body []byte) ([]model.Notification, error) {
	b := bytes.TrimSpace(body)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty notification payload")
	}

	switch b[0] {
	case '[':
		var list []model.Notification
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, fmt.Errorf("decoding notification array: %w", err)
		}
		if list == nil {
			list = []model.Notification{}
		}
		return list, nil

	case '{':
		var n model.Notification
		if err := json.Unmarshal(b, &n); err != nil {
			return nil, fmt.Errorf("decoding notification object: %w", err)
		}
		if n.IsBlank() {
			return []model.Notification{}, nil
		}
		return []model.Notification{n}, nil

	default:
		return nil, fmt.Errorf("unexpected notification payload starting with %q", b[0])
	}
}
