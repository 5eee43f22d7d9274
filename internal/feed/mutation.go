package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"feedsync/internal/model"
)

// Mutation kinds, as written to the journal.
const (
	MutationToggleLike      = "toggle_like"
	MutationCreatePost      = "create_post"
	MutationCreateReply     = "create_reply"
	MutationMarkRead        = "mark_read"
	MutationUpdateProfile   = "update_profile"
	MutationRegisterProfile = "register_profile"
)

// Journal outcomes.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
)

// Image is an image attached to a post or a profile.
type Image struct {
	Name string
	Data []byte
}

// PendingMutation pairs the optimistic delta of one write with the patch that
// undoes it. Rollback is nil for mutations that are never undone.
type PendingMutation struct {
	ID        string
	Kind      string
	EntityID  string
	Apply     model.Patch
	Rollback  *model.Patch
	StartedAt time.Time
}

// Deps are the collaborators shared by the Engine and the Service.
type Deps struct {
	Session   *Session
	Store     StateStore
	Transport Transport
	Blobs     BlobStore
	Journal   Journal
	Clock     Clock
	IDs       IDGenerator
	Logger    Logger
}

func (d Deps) withDefaults() Deps {
	if d.Journal == nil {
		d.Journal = NopJournal{}
	}
	if d.Clock == nil {
		d.Clock = RealClock{}
	}
	if d.IDs == nil {
		d.IDs = UUIDGenerator{}
	}
	if d.Logger == nil {
		d.Logger = NewNopLogger()
	}
	return d
}

// Engine applies user writes optimistically: the delta lands in the store
// before the request, and is kept or undone when the request settles.
type Engine struct {
	session   *Session
	store     StateStore
	transport Transport
	blobs     BlobStore
	journal   Journal
	clock     Clock
	ids       IDGenerator
	logger    Logger
	locks     *keyedLocks
}

// NewEngine creates an Engine.
func NewEngine(deps Deps) *Engine {
	deps = deps.withDefaults()
	return &Engine{
		session:   deps.Session,
		store:     deps.Store,
		transport: deps.Transport,
		blobs:     deps.Blobs,
		journal:   deps.Journal,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
		locks:     newKeyedLocks(),
	}
}

// ToggleLike flips the like state of a post in every collection that holds it
// and sends the matching like or unlike. Mutations of the same post run one
// after another, each starting from what the previous one left displayed.
func (e *Engine) ToggleLike(ctx context.Context, postID string) (model.Post, error) {
	const op = "toggle like"

	postID = strings.TrimSpace(postID)
	if postID == "" {
		return model.Post{}, Validation(op, "post id is required")
	}
	_, token, err := e.authorize(ctx, op)
	if err != nil {
		return model.Post{}, err
	}

	unlock, err := e.locks.lock(ctx, postID)
	if err != nil {
		return model.Post{}, fmt.Errorf("waiting for pending like on %s: %w", postID, err)
	}
	defer unlock()

	post, ok := FindAs[model.Post](e.store, postID)
	if !ok {
		return model.Post{}, Validation(op, fmt.Sprintf("unknown post %q", postID))
	}

	m := e.begin(MutationToggleLike, postID)
	m.Apply, m.Rollback = toggleDelta(post)

	method := http.MethodPost
	if post.LikedByMe {
		method = http.MethodDelete
	}

	e.store.PatchByIDAcrossAll(postID, m.Apply)

	body, err := e.send(ctx, &Request{
		Method: method,
		Path:   "/likes",
		Token:  token,
		Body:   map[string]string{"post_id": postID},
	})
	if err != nil {
		return post, e.fail(ctx, m, op, err)
	}

	if p, ok := reconcileLike(body); ok {
		e.store.PatchByIDAcrossAll(postID, p)
	}
	e.commit(ctx, m)

	if p, ok := FindAs[model.Post](e.store, postID); ok {
		return p, nil
	}
	return post.WithPatch(m.Apply).(model.Post), nil
}

// toggleDelta returns the optimistic patch for a like toggle and its exact
// inverse.
func toggleDelta(p model.Post) (apply model.Patch, rollback *model.Patch) {
	liked := !p.LikedByMe
	count := p.LikeCount + 1
	if p.LikedByMe {
		count = max(p.LikeCount-1, 0)
	}

	prevLiked, prevCount := p.LikedByMe, p.LikeCount
	return model.Patch{Liked: &liked, LikeCount: &count},
		&model.Patch{Liked: &prevLiked, LikeCount: &prevCount}
}

// reconcileLike reads canonical like values from a response body, if any.
func reconcileLike(body []byte) (model.Patch, bool) {
	var res struct {
		LikeCount *int  `json:"likes_count"`
		Liked     *bool `json:"is_liked_by_me"`
	}
	if len(body) == 0 || json.Unmarshal(body, &res) != nil {
		return model.Patch{}, false
	}
	p := model.Patch{Liked: res.Liked, LikeCount: res.LikeCount}
	return p, !p.IsEmpty()
}

// CreatePost publishes a new top-level post. Nothing is inserted locally; the
// post shows up on the next timeline load.
func (e *Engine) CreatePost(ctx context.Context, content string, image *Image) (model.Post, error) {
	return e.create(ctx, "create post", MutationCreatePost, "", content, image)
}

// CreateReply publishes a reply to parentID.
func (e *Engine) CreateReply(ctx context.Context, parentID, content string, image *Image) (model.Post, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return model.Post{}, Validation("create reply", "parent post id is required")
	}
	return e.create(ctx, "create reply", MutationCreateReply, parentID, content, image)
}

func (e *Engine) create(ctx context.Context, op, kind, parentID, content string, image *Image) (model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Post{}, Validation(op, "content is required")
	}
	if err := validateImage(op, image); err != nil {
		return model.Post{}, err
	}
	identity, token, err := e.authorize(ctx, op)
	if err != nil {
		return model.Post{}, err
	}

	m := e.begin(kind, parentID)

	body := map[string]any{"content": content}
	if parentID != "" {
		body["reply_id"] = parentID
	}
	if image != nil {
		path := fmt.Sprintf("posts/%s/%s%s", identity.User.ID, e.ids.New(), imageExt(image))
		imageURL, err := e.upload(ctx, op, path, image)
		if err != nil {
			return model.Post{}, e.fail(ctx, m, op, err)
		}
		body["imageUrl"] = imageURL
	}

	res, err := e.send(ctx, &Request{Method: http.MethodPost, Path: "/post", Token: token, Body: body})
	if err != nil {
		return model.Post{}, e.fail(ctx, m, op, err)
	}
	e.commit(ctx, m)

	var created model.Post
	if len(res) > 0 && json.Unmarshal(res, &created) == nil && created.ID != "" {
		return created, nil
	}
	return model.Post{Content: content, ParentID: parentID, AuthorName: identity.User.Email}, nil
}

// MarkNotificationRead marks a notification read locally and on the backend.
// The local flag is not restored when the request fails.
func (e *Engine) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "mark notification read"

	id = strings.TrimSpace(id)
	if id == "" {
		return Validation(op, "notification id is required")
	}
	_, token, err := e.authorize(ctx, op)
	if err != nil {
		return err
	}

	unlock, err := e.locks.lock(ctx, id)
	if err != nil {
		return fmt.Errorf("waiting for pending update of %s: %w", id, err)
	}
	defer unlock()

	if n, ok := FindAs[model.Notification](e.store, id); ok && n.Read {
		return nil
	}

	read := true
	m := e.begin(MutationMarkRead, id)
	m.Apply = model.Patch{Read: &read}

	e.store.PatchByIDAcrossAll(id, m.Apply)

	if _, err := e.send(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/notifications/" + id,
		Token:  token,
	}); err != nil {
		return e.fail(ctx, m, op, err)
	}
	e.commit(ctx, m)
	return nil
}

// UpdateProfile saves a new username and, optionally, a new profile image.
// Without a new image the current http(s) image URL is kept.
func (e *Engine) UpdateProfile(ctx context.Context, username string, image *Image) (model.Profile, error) {
	const op = "update profile"

	username = strings.TrimSpace(username)
	if username == "" {
		return model.Profile{}, Validation(op, "username is required")
	}
	if err := validateImage(op, image); err != nil {
		return model.Profile{}, err
	}
	identity, token, err := e.authorize(ctx, op)
	if err != nil {
		return model.Profile{}, err
	}
	uid := identity.User.ID

	unlock, err := e.locks.lock(ctx, uid)
	if err != nil {
		return model.Profile{}, fmt.Errorf("waiting for pending profile update: %w", err)
	}
	defer unlock()

	current := e.currentProfile(uid)
	m := e.begin(MutationUpdateProfile, uid)

	imageURL := model.Text{}
	if image != nil {
		url, err := e.upload(ctx, op, profileImagePath(uid, image), image)
		if err != nil {
			return current, e.fail(ctx, m, op, err)
		}
		imageURL = model.NewText(url)
	} else if isHTTPURL(current.ProfileImageURL) {
		imageURL = current.ProfileImageURL
	}

	prevName, prevImage := current.Username, current.ProfileImageURL
	m.Apply = model.Patch{Username: &username, ProfileImageURL: &imageURL}
	m.Rollback = &model.Patch{Username: &prevName, ProfileImageURL: &prevImage}

	e.store.PatchByIDAcrossAll(uid, m.Apply)

	res, err := e.send(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/user",
		Token:  token,
		Body:   map[string]any{"username": username, "profileImageUrl": imageURL},
	})
	if err != nil {
		return current, e.fail(ctx, m, op, err)
	}

	var saved model.Profile
	if len(res) > 0 && json.Unmarshal(res, &saved) == nil && saved.Username != "" {
		saved.UserID = uid
		e.store.ReplaceCollection(CollectionProfile, []model.Entity{saved})
	}
	e.commit(ctx, m)
	return e.currentProfile(uid), nil
}

// RegisterProfile creates the backend profile for a newly signed-up user.
func (e *Engine) RegisterProfile(ctx context.Context, username string, image *Image) (model.Profile, error) {
	const op = "register profile"

	username = strings.TrimSpace(username)
	if username == "" {
		return model.Profile{}, Validation(op, "username is required")
	}
	if err := validateImage(op, image); err != nil {
		return model.Profile{}, err
	}
	identity, token, err := e.authorize(ctx, op)
	if err != nil {
		return model.Profile{}, err
	}
	uid := identity.User.ID
	m := e.begin(MutationRegisterProfile, uid)

	profile := model.Profile{UserID: uid, Username: username}
	body := map[string]any{"username": username, "profileImageUrl": nil}
	if image != nil {
		url, err := e.upload(ctx, op, profileImagePath(uid, image), image)
		if err != nil {
			return model.Profile{}, e.fail(ctx, m, op, err)
		}
		profile.ProfileImageURL = model.NewText(url)
		body["profileImageUrl"] = url
	}

	res, err := e.send(ctx, &Request{Method: http.MethodPost, Path: "/user", Token: token, Body: body})
	if err != nil {
		return model.Profile{}, e.fail(ctx, m, op, err)
	}

	var saved model.Profile
	if len(res) > 0 && json.Unmarshal(res, &saved) == nil && saved.Username != "" {
		saved.UserID = uid
		profile = saved
	}
	e.store.ReplaceCollection(CollectionProfile, []model.Entity{profile})
	e.commit(ctx, m)
	return profile, nil
}

// authorize checks the identity and obtains a token before any state changes.
func (e *Engine) authorize(ctx context.Context, op string) (model.Identity, string, error) {
	identity := e.session.Current()
	if !identity.IsPresent() {
		return identity, "", NotAuthenticated(op)
	}
	provider := e.session.Provider()
	if provider == nil {
		return identity, "", NotAuthenticated(op)
	}
	token, err := provider.Token(ctx, identity.User)
	if err != nil {
		return identity, "", &Error{Kind: KindNotAuthenticated, Op: op, Message: "token unavailable", Err: err}
	}
	return identity, token, nil
}

// send performs the single network call of a mutation. It is detached from
// the caller's cancellation so an applied delta always settles.
func (e *Engine) send(ctx context.Context, req *Request) ([]byte, error) {
	return e.transport.Do(context.WithoutCancel(ctx), req)
}

func (e *Engine) upload(ctx context.Context, op, path string, image *Image) (string, error) {
	if e.blobs == nil {
		return "", StorageUpload(op, fmt.Errorf("no blob store configured"))
	}
	ctx = context.WithoutCancel(ctx)
	ref, err := e.blobs.Upload(ctx, path, image.Data)
	if err != nil {
		return "", StorageUpload(op, err)
	}
	url, err := e.blobs.DownloadURL(ctx, ref)
	if err != nil {
		return "", StorageUpload(op, err)
	}
	return url, nil
}

func (e *Engine) currentProfile(uid string) model.Profile {
	if p, ok := FindAs[model.Profile](e.store, uid); ok {
		return p
	}
	if profiles := Items[model.Profile](e.store, CollectionProfile); len(profiles) > 0 {
		return profiles[0]
	}
	return model.Profile{UserID: uid}
}

func (e *Engine) begin(kind, entityID string) *PendingMutation {
	return &PendingMutation{
		ID:        e.ids.New(),
		Kind:      kind,
		EntityID:  entityID,
		StartedAt: e.clock.Now(),
	}
}

func (e *Engine) commit(ctx context.Context, m *PendingMutation) {
	e.logger.Info("mutation committed", "kind", m.Kind, "entity", m.EntityID, "mutation", m.ID)
	e.record(ctx, m, OutcomeCommitted, nil)
}

// fail undoes m when it has a rollback and returns err labelled with op.
func (e *Engine) fail(ctx context.Context, m *PendingMutation, op string, err error) error {
	outcome := OutcomeFailed
	if m.Rollback != nil {
		e.store.PatchByIDAcrossAll(m.EntityID, *m.Rollback)
		outcome = OutcomeRolledBack
	}
	ferr := withOp(op, err)
	e.logger.Warn("mutation failed", "kind", m.Kind, "entity", m.EntityID, "outcome", outcome, "error", ferr)
	e.record(ctx, m, outcome, ferr)
	return ferr
}

func (e *Engine) record(ctx context.Context, m *PendingMutation, outcome string, err error) {
	rec := &model.MutationRecord{
		ID:         m.ID,
		Kind:       m.Kind,
		EntityID:   m.EntityID,
		Outcome:    outcome,
		StartedAt:  m.StartedAt,
		FinishedAt: e.clock.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := e.journal.Record(context.WithoutCancel(ctx), rec); jerr != nil {
		e.logger.Error("recording mutation", "mutation", m.ID, "error", jerr)
	}
}

func validateImage(op string, image *Image) error {
	if image == nil {
		return nil
	}
	if len(image.Data) == 0 {
		return Validation(op, "image is empty")
	}
	if mt := mimetype.Detect(image.Data); !strings.HasPrefix(mt.String(), "image/") {
		return Validation(op, fmt.Sprintf("%s is not an image (%s)", image.Name, mt.String()))
	}
	return nil
}

func imageExt(image *Image) string {
	if ext := mimetype.Detect(image.Data).Extension(); ext != "" {
		return ext
	}
	return ".jpg"
}

func profileImagePath(uid string, image *Image) string {
	return fmt.Sprintf("users/%s/profile%s", uid, imageExt(image))
}

func isHTTPURL(t model.Text) bool {
	s := t.Or("")
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
