package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feedsync/internal/api"
	"feedsync/internal/blob"
	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/feed"
	"feedsync/internal/identity"
	"feedsync/internal/model"
	"feedsync/internal/store"
)

// FeedApp is the application layer between the CLI and the feed core.
// It constructs all dependencies from config, exposes one method per CLI
// command, and releases resources on Close.
type FeedApp struct {
	cfg      *config.Config
	provider *identity.Provider
	session  *feed.Session
	store    *store.Store
	journal  feed.Journal
	service  *feed.Service
	clock    feed.Clock
	logger   feed.Logger
	op       *Operation
	logFile  *os.File
}

// Options tweak how the app is built.
type Options struct {
	Verbose bool // also log to stderr
}

// NewFeedApp creates a fully wired FeedApp from the given config.
// operation identifies the CLI command being run (e.g. "feed", "like").
// The caller must call Close when done.
func NewFeedApp(ctx context.Context, cfg *config.Config, operation string, args []string, opts Options) (*FeedApp, error) {
	clock := feed.RealClock{}
	op := NewOperation(operation, args, clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	provider, err := identity.NewProviderFromConfig(cfg.Session, clock, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating identity provider: %w", err)
	}

	blobs, err := blob.NewBlobStoreFromConfig(ctx, cfg.Blob)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	journal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	baseURL := cfg.HTTP.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultAPIURL
	}
	client := api.NewClient(baseURL, cfg.HTTP.Timeout(), logger)

	st := store.New()
	session := feed.NewSession(logger)
	svc := feed.NewService(feed.Deps{
		Session:   session,
		Store:     st,
		Transport: client,
		Blobs:     blobs,
		Journal:   journal,
		Clock:     clock,
		IDs:       feed.UUIDGenerator{},
		Logger:    logger,
	})
	svc.Start(ctx)
	session.Init(provider)

	logger.Info("command started", "command", op.Command, "args", op.Args)

	return &FeedApp{
		cfg:      cfg,
		provider: provider,
		session:  session,
		store:    st,
		journal:  journal,
		service:  svc,
		clock:    clock,
		logger:   logger,
		op:       op,
		logFile:  logFile,
	}, nil
}

// Now returns the current time, for rendering relative timestamps.
func (a *FeedApp) Now() time.Time { return a.clock.Now() }

// Identity returns the current session identity.
func (a *FeedApp) Identity() model.Identity { return a.session.Current() }

// SignIn stores a bearer token issued by the identity service.
func (a *FeedApp) SignIn(ctx context.Context, token string) (*model.User, error) {
	user, err := a.provider.SignIn(ctx, token)
	return user, a.op.Fail(err)
}

// SignOut forgets the stored token.
func (a *FeedApp) SignOut(ctx context.Context) error {
	return a.op.Fail(a.session.SignOut(ctx))
}

// Timeline loads the feed, filtered by query when it is non-empty.
func (a *FeedApp) Timeline(ctx context.Context, query string) ([]model.Post, error) {
	v := a.service.OpenTimeline()
	defer v.Close()

	search := a.service.Search()
	search.Type(query)
	changed, err := search.Submit(ctx)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	if !changed {
		if err := v.Reload(ctx); err != nil {
			return nil, a.op.Fail(err)
		}
	}
	if err := a.viewError(v); err != nil {
		return nil, a.op.Fail(err)
	}
	return feed.Items[model.Post](a.store, v.Collection()), nil
}

// Thread loads a post followed by its replies.
func (a *FeedApp) Thread(ctx context.Context, postID string) ([]model.Post, error) {
	v := a.service.OpenThread(postID)
	defer v.Close()

	if err := v.Reload(ctx); err != nil {
		return nil, a.op.Fail(err)
	}
	if err := a.viewError(v); err != nil {
		return nil, a.op.Fail(err)
	}
	return feed.Items[model.Post](a.store, v.Collection()), nil
}

// ToggleLike likes or unlikes a post, starting from its current server state.
func (a *FeedApp) ToggleLike(ctx context.Context, postID string) (model.Post, error) {
	v := a.service.OpenThread(postID)
	defer v.Close()

	if err := v.Reload(ctx); err != nil {
		return model.Post{}, a.op.Fail(err)
	}
	p, err := a.service.Engine().ToggleLike(ctx, postID)
	return p, a.op.Fail(err)
}

// Post publishes a post with an optional image file.
func (a *FeedApp) Post(ctx context.Context, content, imagePath string) (model.Post, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return model.Post{}, a.op.Fail(err)
	}
	p, err := a.service.Post(ctx, content, img)
	return p, a.op.Fail(err)
}

// Reply publishes a reply to postID with an optional image file.
func (a *FeedApp) Reply(ctx context.Context, postID, content, imagePath string) (model.Post, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return model.Post{}, a.op.Fail(err)
	}
	p, err := a.service.Reply(ctx, postID, content, img)
	return p, a.op.Fail(err)
}

// Notifications loads the notification list, optionally only unread ones.
func (a *FeedApp) Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	v := a.service.OpenNotifications()
	defer v.Close()

	if err := v.Reload(ctx); err != nil {
		return nil, a.op.Fail(err)
	}
	if err := a.viewError(v); err != nil {
		return nil, a.op.Fail(err)
	}

	all := feed.Items[model.Notification](a.store, v.Collection())
	if !unreadOnly {
		return all, nil
	}
	unread := make([]model.Notification, 0, len(all))
	for _, n := range all {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// UnreadCount returns the number of unread notifications.
func (a *FeedApp) UnreadCount(ctx context.Context) (int, error) {
	n, err := a.service.UnreadCount(ctx)
	return n, a.op.Fail(err)
}

// MarkRead marks a notification read. Already-read notifications are left
// alone.
func (a *FeedApp) MarkRead(ctx context.Context, id string) error {
	v := a.service.OpenNotifications()
	defer v.Close()

	if err := v.Reload(ctx); err != nil {
		a.logger.Warn("loading notifications before mark read", "error", err)
	}
	return a.op.Fail(a.service.Engine().MarkNotificationRead(ctx, id))
}

// Profile loads the signed-in user's profile.
func (a *FeedApp) Profile(ctx context.Context) (model.Profile, error) {
	v := a.service.OpenProfile()
	defer v.Close()

	if err := v.Reload(ctx); err != nil {
		return model.Profile{}, a.op.Fail(err)
	}
	if err := a.viewError(v); err != nil {
		return model.Profile{}, a.op.Fail(err)
	}
	profiles := feed.Items[model.Profile](a.store, v.Collection())
	if len(profiles) == 0 {
		return model.Profile{}, a.op.Fail(fmt.Errorf("no profile returned"))
	}
	return profiles[0], nil
}

// UpdateProfile saves a new username and optional profile image file.
func (a *FeedApp) UpdateProfile(ctx context.Context, username, imagePath string) (model.Profile, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return model.Profile{}, a.op.Fail(err)
	}

	v := a.service.OpenProfile()
	defer v.Close()
	if err := v.Reload(ctx); err != nil {
		a.logger.Warn("loading profile before update", "error", err)
	}

	p, err := a.service.Engine().UpdateProfile(ctx, username, img)
	return p, a.op.Fail(err)
}

// RegisterProfile creates the backend profile of a newly signed-up user.
func (a *FeedApp) RegisterProfile(ctx context.Context, username, imagePath string) (model.Profile, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return model.Profile{}, a.op.Fail(err)
	}
	p, err := a.service.Engine().RegisterProfile(ctx, username, img)
	return p, a.op.Fail(err)
}

// History returns the most recent settled mutations.
func (a *FeedApp) History(ctx context.Context, limit int) ([]*model.MutationRecord, error) {
	recs, err := a.journal.Recent(ctx, limit)
	return recs, a.op.Fail(err)
}

// viewError reports why a view did not load. A view left idle means the
// identity never resolved to a signed-in user.
func (a *FeedApp) viewError(v *feed.View) error {
	state, err := v.State()
	switch state {
	case feed.LoadFailed:
		return err
	case feed.LoadIdle:
		return feed.NotAuthenticated("load " + v.Collection())
	default:
		return nil
	}
}

// Close stops the service and closes all resources.
func (a *FeedApp) Close() error {
	var firstErr error

	a.service.Stop()
	a.session.Teardown()

	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}

	a.logger.Info("command finished", "command", a.op.Command, "status", a.op.Status,
		"duration", a.clock.Now().Sub(a.op.StartedAt))

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

func loadImage(path string) (*feed.Image, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return &feed.Image{Name: filepath.Base(path), Data: data}, nil
}
