package feed

import (
	"fmt"

	"feedsync/internal/model"
)

// FormatNotification renders the one-line message shown for a notification.
func FormatNotification(n model.Notification) string {
	switch n.Kind {
	case model.KindLike:
		return fmt.Sprintf("%s liked your post.", n.SourceName)
	case model.KindReply:
		return fmt.Sprintf("%s replied to your post.", n.SourceName)
	case model.KindFollow:
		return fmt.Sprintf("%s started following you.", n.SourceName)
	case model.KindModerationWarning:
		return fmt.Sprintf("Your post %q contains inappropriate language. Please avoid posts that violate public order and morals.", n.PostContent.Or(""))
	case model.KindContentRemoved:
		return "Your post was removed for violating the guidelines. Please check the details."
	case model.KindAccountSuspended:
		return "Your account was suspended for a serious violation of the terms. Please check the details."
	default:
		return fmt.Sprintf("You have a new notification: %s", n.Kind)
	}
}
