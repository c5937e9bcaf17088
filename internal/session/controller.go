// Package session drives one user's live view of a request conversation.
package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/lifecycle"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

// Role is the side of the conversation the controller acts for.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

// ParseRole validates a client supplied role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleVendor:
		return RoleVendor, nil
	default:
		return "", apperrors.NewValidation("role must be customer or vendor")
	}
}

// Conversations is the chat backend a controller delegates to.
type Conversations interface {
	WatchRequest(ctx context.Context, actor services.Actor, requestID string) (*repository.Feed[*models.ServiceRequest], error)
	WatchMessages(ctx context.Context, actor services.Actor, requestID string) (*repository.Feed[[]models.RequestMessage], error)
	SendAsCustomer(ctx context.Context, actor services.Actor, requestID, content string) (*services.SendResult, error)
	SendAsVendor(ctx context.Context, actor services.Actor, requestID, content string) (*services.SendResult, error)
	Complete(ctx context.Context, actor services.Actor, requestID string) (*models.ServiceRequest, error)
}

// ReadMarker records that the viewer has seen a conversation.
type ReadMarker interface {
	MarkViewed(ctx context.Context, actor services.Actor, requestID string) error
}

// Option customises a Controller.
type Option func(*Controller)

// WithReadMarker marks the active conversation viewed whenever new messages are shown.
func WithReadMarker(reads ReadMarker) Option {
	return func(c *Controller) { c.reads = reads }
}

// WithLocation sets the time zone used to group and format timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock overrides the clock used for "Today"/"Yesterday" labels.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// OnChange registers a callback receiving every new view. It is called without the
// controller lock held.
func OnChange(fn func(View)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller holds the active request selection of one user, keeps it live through
// subscriptions and routes send/complete actions to the right transition for its role.
// Switching requests or closing detaches every subscription before anything else happens.
type Controller struct {
	role     Role
	actor    services.Actor
	chats    Conversations
	reads    ReadMarker
	loc      *time.Location
	now      func() time.Time
	onChange func(View)
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// switching serialises Open and Close so pumps.Add never races pumps.Wait.
	switching sync.Mutex

	mu         sync.Mutex
	generation uint64
	requestID  string
	request    *models.ServiceRequest
	messages   []models.RequestMessage
	loaded     bool
	draft      string
	lastErr    string
	closed     bool

	reqFeed *repository.Feed[*models.ServiceRequest]
	msgFeed *repository.Feed[[]models.RequestMessage]
	pumps   sync.WaitGroup
}

// New constructs a Controller with no active request.
func New(role Role, actor services.Actor, chats Conversations, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		role:   role,
		actor:  actor,
		chats:  chats,
		loc:    time.UTC,
		now:    time.Now,
		log:    logger.WithModule("session").With(zap.String("user_id", actor.UID), zap.String("role", string(role))),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open makes requestID the active conversation. Subscriptions of the previous request are
// closed first, so no stale snapshot can reach the new view.
func (c *Controller) Open(requestID string) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return apperrors.NewValidation("request id is required")
	}

	c.switching.Lock()
	defer c.switching.Unlock()

	c.detach()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrInvalidTransition.WithMessage("session is closed")
	}
	gen := c.generation
	c.mu.Unlock()

	reqFeed, err := c.chats.WatchRequest(c.ctx, c.actor, requestID)
	if err != nil {
		c.fail(err)
		return err
	}
	msgFeed, err := c.chats.WatchMessages(c.ctx, c.actor, requestID)
	if err != nil {
		reqFeed.Close()
		c.fail(err)
		return err
	}

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		reqFeed.Close()
		msgFeed.Close()
		return apperrors.ErrInvalidTransition.WithMessage("session changed while opening")
	}
	c.requestID = requestID
	c.reqFeed = reqFeed
	c.msgFeed = msgFeed
	c.pumps.Add(2)
	c.mu.Unlock()

	go c.pumpRequest(gen, reqFeed)
	go c.pumpMessages(gen, msgFeed)
	return nil
}

// ActiveRequestID returns the selected request or "".
func (c *Controller) ActiveRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestID
}

// SetDraft stores the compose text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Send posts text to the active conversation as the controller's role. On failure the
// draft keeps the text so the user can retry.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	requestID := c.requestID
	c.mu.Unlock()

	if requestID == "" {
		return c.fail(apperrors.NewValidation("no request is open"))
	}
	if strings.TrimSpace(text) == "" {
		return c.fail(apperrors.NewValidation("message content is required"))
	}

	var (
		res *services.SendResult
		err error
	)
	if c.role == RoleVendor {
		res, err = c.chats.SendAsVendor(ctx, c.actor, requestID, text)
	} else {
		res, err = c.chats.SendAsCustomer(ctx, c.actor, requestID, text)
	}
	if err != nil {
		c.mu.Lock()
		if c.requestID == requestID {
			c.draft = text
		}
		c.mu.Unlock()
		return c.fail(err)
	}

	c.mu.Lock()
	if c.requestID == requestID {
		c.draft = ""
		c.lastErr = ""
		c.applyRequestLocked(res.Request)
		if res.Message != nil && !slices.ContainsFunc(c.messages, func(m models.RequestMessage) bool { return m.ID == res.Message.ID }) {
			c.messages = append(c.messages, *res.Message)
		}
	}
	view := c.viewLocked()
	c.mu.Unlock()
	c.emit(view)
	return nil
}

// Complete marks the active request completed. Only vendor sessions may complete.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	requestID := c.requestID
	c.mu.Unlock()

	if requestID == "" {
		return c.fail(apperrors.NewValidation("no request is open"))
	}
	if c.role != RoleVendor {
		return c.fail(apperrors.ErrForbidden.WithMessage("Only vendor agents can complete requests"))
	}

	updated, err := c.chats.Complete(ctx, c.actor, requestID)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.requestID == requestID {
		c.lastErr = ""
		c.applyRequestLocked(updated)
	}
	view := c.viewLocked()
	c.mu.Unlock()
	c.emit(view)
	return nil
}

// View returns the current render state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close detaches all subscriptions. It is idempotent.
func (c *Controller) Close() {
	c.switching.Lock()
	defer c.switching.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.detach()
	c.cancel()
}

// detach closes the active feeds and waits for their pumps to exit.
func (c *Controller) detach() {
	c.mu.Lock()
	reqFeed, msgFeed := c.reqFeed, c.msgFeed
	c.reqFeed, c.msgFeed = nil, nil
	c.generation++
	c.requestID = ""
	c.request = nil
	c.messages = nil
	c.loaded = false
	c.draft = ""
	c.lastErr = ""
	c.mu.Unlock()

	if reqFeed != nil {
		reqFeed.Close()
	}
	if msgFeed != nil {
		msgFeed.Close()
	}
	c.pumps.Wait()
}

func (c *Controller) pumpRequest(gen uint64, feed *repository.Feed[*models.ServiceRequest]) {
	defer c.pumps.Done()
	for snap := range feed.C {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			continue
		}
		if snap.Err != nil {
			c.lastErr = apperrors.FromError(snap.Err).Message
		} else {
			c.request = snap.Value
		}
		view := c.viewLocked()
		c.mu.Unlock()
		c.emit(view)
	}
}

func (c *Controller) pumpMessages(gen uint64, feed *repository.Feed[[]models.RequestMessage]) {
	defer c.pumps.Done()
	for snap := range feed.C {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			continue
		}
		if snap.Err != nil {
			c.lastErr = apperrors.FromError(snap.Err).Message
		} else {
			c.messages = snap.Value
			c.loaded = true
		}
		requestID := c.requestID
		view := c.viewLocked()
		c.mu.Unlock()
		c.emit(view)

		if snap.Err == nil && c.reads != nil {
			if err := c.reads.MarkViewed(c.ctx, c.actor, requestID); err != nil && c.ctx.Err() == nil {
				c.log.Debug("mark viewed failed", zap.String("request_id", requestID), zap.Error(err))
			}
		}
	}
}

// applyRequestLocked accepts a locally returned document as an optimistic hint unless
// the live copy is already newer.
func (c *Controller) applyRequestLocked(req *models.ServiceRequest) {
	if req == nil {
		return
	}
	if c.request != nil && c.request.UpdatedAt.After(req.UpdatedAt) {
		return
	}
	c.request = req
}

func (c *Controller) fail(err error) error {
	appErr := apperrors.FromError(err)
	c.mu.Lock()
	c.lastErr = appErr.Message
	view := c.viewLocked()
	c.mu.Unlock()
	c.emit(view)
	return err
}

func (c *Controller) emit(view View) {
	if c.onChange != nil {
		c.onChange(view)
	}
}

func (c *Controller) viewLocked() View {
	view := View{
		RequestID: c.requestID,
		Role:      c.role,
		Draft:     c.draft,
		Error:     c.lastErr,
		Loading:   c.requestID != "" && !c.loaded,
		Groups:    []DayView{},
	}
	if c.request != nil {
		req := *c.request
		view.Request = &req
		view.Status = req.Status
		view.StatusLabel = req.Status.Label()
		view.CanSend = true
		view.CanComplete = c.role == RoleVendor && lifecycle.CanComplete(&req, c.actor.UID)
	}
	view.Groups = GroupMessages(c.messages, c.actor.UID, c.loc, c.now())
	return view
}
