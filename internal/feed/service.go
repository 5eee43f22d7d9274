package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"feedsync/internal/model"
)

// LoadState is the fetch status of a view.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ViewKind identifies what a view shows.
type ViewKind int

const (
	ViewTimeline ViewKind = iota
	ViewThread
	ViewNotifications
	ViewProfile
)

// Service ties the session, fetcher, engine, store and search together and
// decides when open views re-fetch.
type Service struct {
	session   *Session
	store     StateStore
	transport Transport
	logger    Logger
	engine    *Engine
	search    *Search

	mu      sync.Mutex
	views   map[*View]struct{}
	unsub   func()
	stopped bool
	wg      sync.WaitGroup
}

// NewService creates a Service. Call Start to begin reacting to identity
// changes.
func NewService(deps Deps) *Service {
	deps = deps.withDefaults()
	s := &Service{
		session:   deps.Session,
		store:     deps.Store,
		transport: deps.Transport,
		logger:    deps.Logger,
		engine:    NewEngine(deps),
		search:    NewSearch(),
		views:     make(map[*View]struct{}),
	}
	s.search.OnCommit(s.reloadTimelines)
	return s
}

// Engine returns the mutation engine.
func (s *Service) Engine() *Engine { return s.engine }

// Search returns the search coordinator.
func (s *Service) Search() *Search { return s.search }

// Store returns the state store.
func (s *Service) Store() StateStore { return s.store }

// Session returns the session.
func (s *Service) Session() *Session { return s.session }

// Start subscribes to identity changes. Every transition into a signed-in
// identity reloads, in the background, the views open at that moment.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()

	unsub := s.session.Subscribe(func(prev, next model.Identity) {
		s.onIdentity(ctx, next)
	})

	s.mu.Lock()
	old := s.unsub
	s.unsub = unsub
	s.mu.Unlock()
	if old != nil {
		old()
	}
}

// onIdentity starts a background reload of the open views when next is a
// signed-in identity. After Stop it does nothing, even for a transition
// that was already being delivered.
func (s *Service) onIdentity(ctx context.Context, next model.Identity) {
	if !next.IsPresent() {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	views := make([]*View, 0, len(s.views))
	for v := range s.views {
		views = append(views, v)
	}
	if len(views) == 0 {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.reload(ctx, views); err != nil {
			s.logger.Warn("refresh after sign-in failed", "error", err)
		}
	}()
}

// Stop removes the identity subscription and waits for background reloads.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	s.Wait()
}

// Wait blocks until background reloads started by identity changes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// OpenTimeline opens the feed view, filtered by the committed search query.
func (s *Service) OpenTimeline() *View {
	return s.open(ViewTimeline, "", CollectionTimeline)
}

// OpenThread opens a post together with its replies.
func (s *Service) OpenThread(postID string) *View {
	return s.open(ViewThread, postID, ThreadCollection(postID))
}

// OpenNotifications opens the notification list.
func (s *Service) OpenNotifications() *View {
	return s.open(ViewNotifications, "", CollectionNotifications)
}

// OpenProfile opens the signed-in user's profile.
func (s *Service) OpenProfile() *View {
	return s.open(ViewProfile, "", CollectionProfile)
}

func (s *Service) open(kind ViewKind, postID, collection string) *View {
	v := &View{svc: s, kind: kind, postID: postID, collection: collection}
	s.mu.Lock()
	s.views[v] = struct{}{}
	s.mu.Unlock()
	return v
}

func (s *Service) openViews() []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*View, 0, len(s.views))
	for v := range s.views {
		out = append(out, v)
	}
	return out
}

// RefreshAll reloads every open view. Failures are joined.
func (s *Service) RefreshAll(ctx context.Context) error {
	return s.reload(ctx, s.openViews())
}

func (s *Service) reload(ctx context.Context, views []*View) error {
	errs := make([]error, len(views))

	var wg sync.WaitGroup
	for i, v := range views {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = v.Reload(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Service) reloadTimelines(ctx context.Context, query string) error {
	s.logger.Debug("search committed", "query", query)
	var errs []error
	for _, v := range s.openViews() {
		if v.kind == ViewTimeline {
			errs = append(errs, v.Reload(ctx))
		}
	}
	return errors.Join(errs...)
}

// UnreadCount reads the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return Fetch(ctx, s.fetcher(), s.session.Current(), UnreadCountResource())
}

// Post publishes a post and reloads open timelines so it shows up.
func (s *Service) Post(ctx context.Context, content string, image *Image) (model.Post, error) {
	p, err := s.engine.CreatePost(ctx, content, image)
	if err != nil {
		return p, err
	}
	if err := s.reloadTimelines(ctx, s.search.Committed()); err != nil {
		s.logger.Warn("reload after post failed", "error", err)
	}
	return p, nil
}

// Reply publishes a reply and reloads open views of the parent thread.
func (s *Service) Reply(ctx context.Context, parentID, content string, image *Image) (model.Post, error) {
	p, err := s.engine.CreateReply(ctx, parentID, content, image)
	if err != nil {
		return p, err
	}
	for _, v := range s.openViews() {
		if v.kind == ViewThread && v.postID == parentID {
			if err := v.Reload(ctx); err != nil {
				s.logger.Warn("reload after reply failed", "post", parentID, "error", err)
			}
		}
	}
	return p, nil
}

func (s *Service) fetcher() *Fetcher {
	return NewFetcher(s.session.Provider(), s.transport, s.logger)
}

// View is one open screen backed by a store collection.
type View struct {
	svc        *Service
	kind       ViewKind
	postID     string
	collection string

	mu     sync.Mutex
	state  LoadState
	err    error
	gen    uint64
	closed bool

	commitMu sync.Mutex
}

// Kind returns what the view shows.
func (v *View) Kind() ViewKind { return v.kind }

// Collection returns the name of the store collection the view renders.
func (v *View) Collection() string { return v.collection }

// State returns the load state and the error of the last failed load.
func (v *View) State() (LoadState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.err
}

// Close drops interest in the view. Loads that settle afterwards are
// discarded; requests already sent are not cancelled.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.gen++
	v.mu.Unlock()

	v.svc.mu.Lock()
	delete(v.svc.views, v)
	v.svc.mu.Unlock()
}

// Reload fetches the view's data. While the identity is still unknown it does
// nothing; the sign-in transition will load it. A failed load keeps the data
// already in the store.
func (v *View) Reload(ctx context.Context) error {
	identity := v.svc.session.Current()
	if identity.State == model.IdentityUnknown {
		return nil
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.gen++
	gen := v.gen
	v.state = LoadLoading
	v.err = nil
	v.mu.Unlock()

	items, err := v.fetch(ctx, identity)

	// commitMu keeps store writes in generation order while v.mu stays free
	// for store subscribers that read the view.
	v.commitMu.Lock()
	defer v.commitMu.Unlock()

	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		v.svc.logger.Debug("discarding stale load", "collection", v.collection)
		return err
	}
	if err != nil {
		v.state = LoadFailed
		v.err = err
		v.mu.Unlock()
		return err
	}
	v.state = LoadLoaded
	v.mu.Unlock()

	v.svc.store.ReplaceCollection(v.collection, items)
	return nil
}

func (v *View) fetch(ctx context.Context, identity model.Identity) ([]model.Entity, error) {
	f := v.svc.fetcher()

	switch v.kind {
	case ViewTimeline:
		posts, err := Fetch(ctx, f, identity, FeedResource(v.svc.search.Committed()))
		if err != nil {
			return nil, err
		}
		return entities(posts), nil

	case ViewThread:
		root, err := Fetch(ctx, f, identity, PostResource(v.postID))
		if err != nil {
			return nil, err
		}
		replies, err := Fetch(ctx, f, identity, RepliesResource(v.postID))
		if err != nil {
			return nil, err
		}
		return append([]model.Entity{root}, entities(replies)...), nil

	case ViewNotifications:
		list, err := Fetch(ctx, f, identity, NotificationsResource())
		if err != nil {
			return nil, err
		}
		return entities(list), nil

	case ViewProfile:
		p, err := Fetch(ctx, f, identity, ProfileResource())
		if err != nil {
			return nil, err
		}
		if p.UserID == "" {
			p.UserID = identity.User.ID
		}
		return []model.Entity{p}, nil

	default:
		return nil, fmt.Errorf("unknown view kind %d", v.kind)
	}
}
