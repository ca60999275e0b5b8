package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"messenger-backend/internal/apperr"
	"messenger-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FileUpload is a blob handed to the engine for attachment or story upload
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Action is a per-message command
type Action string

const (
	ActionReply    Action = "reply"
	ActionStar     Action = "star"
	ActionCopy     Action = "copy"
	ActionDelete   Action = "delete"
	ActionDownload Action = "download"
)

// ActionResult carries the output of the pure-read actions
type ActionResult struct {
	Copied      string `json:"copied,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ReplyPreview is the quoted content shown above a reply
type ReplyPreview struct {
	MessageID  string             `json:"message_id"`
	SenderID   string             `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	Body       string             `json:"body"`
	Kind       models.MessageKind `json:"kind"`
}

// MessageView is a message annotated for rendering
type MessageView struct {
	Message    *models.Message `json:"message"`
	SenderName string          `json:"sender_name"`
	Reply      *ReplyPreview   `json:"reply,omitempty"`
}

// Pipeline appends, stars, forwards and deletes messages inside one resolved
// conversation. It owns the locally observable message sequence: sends are
// applied to that sequence before the durable write and rolled back if the
// write fails, so a caller never observes a message that is visible locally
// but permanently absent upstream.
type Pipeline struct {
	conv     *models.Conversation
	convs    ConversationStore
	msgs     MessageStore
	users    UserStore
	notifier Notifier
	router   *Pipelines // set when managed; routes forwards into live pipelines
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	local   []*models.Message
	replyTo map[string]string // pending reply context per user, consumed by that user's next send
}

// newPipeline loads the conversation's message sequence and builds a pipeline
func newPipeline(ctx context.Context, conv *models.Conversation, convs ConversationStore, msgs MessageStore, users UserStore, notifier Notifier) (*Pipeline, error) {
	history, err := msgs.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Pipeline{
		conv:     conv,
		convs:    convs,
		msgs:     msgs,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		local:    history,
		replyTo:  make(map[string]string),
	}, nil
}

// ConversationID returns the conversation this pipeline is scoped to
func (p *Pipeline) ConversationID() string {
	return p.conv.ID
}

// Send validates and appends a text message. The message is applied to the
// local sequence before the durable create; a failed create removes it again
// and surfaces the error.
func (p *Pipeline) Send(ctx context.Context, senderID, body, replyToID string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validationf("message body is required")
	}

	msg := &models.Message{
		ID:             p.newID(),
		ConversationID: p.conv.ID,
		SenderID:       senderID,
		Body:           body,
		Kind:           models.MessageText,
		CreatedAt:      p.now(),
	}
	if replyToID == "" {
		replyToID = p.takeReplyContext(senderID)
	}
	if replyToID != "" {
		msg.ReplyToID = &replyToID
	}

	if err := p.appendDurable(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Attach uploads a file and appends the resulting attachment message. The
// message is only created after the upload succeeds; an upload failure aborts
// with no partial state.
func (p *Pipeline) Attach(ctx context.Context, senderID string, file FileUpload, uploader Uploader) (*models.Message, error) {
	if file.Name == "" {
		return nil, apperr.Validationf("file name is required")
	}

	msgID := p.newID()
	key := fmt.Sprintf("attachments/%s/%s_%s", p.conv.ID, msgID, file.Name)
	url, err := uploader.Upload(ctx, key, file.ContentType, file.Content, file.Size)
	if err != nil {
		return nil, apperr.Uploadf(err, "failed to upload attachment")
	}

	msg := &models.Message{
		ID:             msgID,
		ConversationID: p.conv.ID,
		SenderID:       senderID,
		Body:           file.Name,
		Kind:           classifyKind(file.ContentType),
		Attachment: &models.Attachment{
			URL:      url,
			FileName: file.Name,
			Size:     file.Size,
		},
		CreatedAt: p.now(),
	}

	if err := p.appendDurable(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// RecordVoiceNote uploads an audio blob and appends it as a voice note with
// a caption embedding the duration
func (p *Pipeline) RecordVoiceNote(ctx context.Context, senderID string, audio FileUpload, durationSeconds int, uploader Uploader) (*models.Message, error) {
	name := audio.Name
	if name == "" {
		name = fmt.Sprintf("voice_note_%d.m4a", p.now().Unix())
	}

	msgID := p.newID()
	key := fmt.Sprintf("attachments/%s/%s_%s", p.conv.ID, msgID, name)
	url, err := uploader.Upload(ctx, key, audio.ContentType, audio.Content, audio.Size)
	if err != nil {
		return nil, apperr.Uploadf(err, "failed to upload voice note")
	}

	msg := &models.Message{
		ID:             msgID,
		ConversationID: p.conv.ID,
		SenderID:       senderID,
		Body:           fmt.Sprintf("Voice note (%s)", formatDuration(durationSeconds)),
		Kind:           models.MessageAudio,
		Attachment: &models.Attachment{
			URL:      url,
			FileName: name,
			Size:     audio.Size,
		},
		CreatedAt: p.now(),
	}

	if err := p.appendDurable(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Apply runs a per-message action. reply arms the acting user's reply context
// for their next send; star toggles the flag for any participant; delete is
// sender-only; copy and download are pure reads.
func (p *Pipeline) Apply(ctx context.Context, action Action, messageID, actingUserID string) (*ActionResult, error) {
	msg := p.find(messageID)
	if msg == nil {
		return nil, apperr.NotFoundf("message %s not found", messageID)
	}

	switch action {
	case ActionReply:
		p.mu.Lock()
		p.replyTo[actingUserID] = messageID
		p.mu.Unlock()
		return &ActionResult{}, nil

	case ActionStar:
		p.mu.Lock()
		starred := !msg.Starred
		p.mu.Unlock()
		if err := p.msgs.UpdateStarred(ctx, messageID, starred); err != nil {
			return nil, err
		}
		p.mu.Lock()
		msg.Starred = starred
		p.mu.Unlock()
		return &ActionResult{}, nil

	case ActionDelete:
		if msg.SenderID != actingUserID {
			return nil, apperr.Permissionf("only the sender can delete a message")
		}
		if err := p.msgs.Delete(ctx, messageID); err != nil {
			return nil, err
		}
		p.remove(messageID)
		return &ActionResult{}, nil

	case ActionCopy:
		return &ActionResult{Copied: msg.Body}, nil

	case ActionDownload:
		if msg.Attachment == nil {
			return &ActionResult{}, nil
		}
		return &ActionResult{DownloadURL: msg.Attachment.URL}, nil

	default:
		return nil, apperr.Validationf("unknown action %q", action)
	}
}

// Forward copies a message into another conversation with the forwarded flag
// set. The target's live pipeline, when one exists, receives the copy
// immediately; otherwise it is loaded from the store on first use.
func (p *Pipeline) Forward(ctx context.Context, messageID, targetConversationID, actingUserID string) (*models.Message, error) {
	src := p.find(messageID)
	if src == nil {
		return nil, apperr.NotFoundf("message %s not found", messageID)
	}

	if _, err := p.convs.GetByID(ctx, targetConversationID); err != nil {
		return nil, err
	}
	members, err := p.convs.Members(ctx, targetConversationID)
	if err != nil {
		return nil, err
	}
	if !memberOf(members, actingUserID) {
		return nil, apperr.Permissionf("user is not a participant of the target conversation")
	}

	now := p.now()
	fwd := &models.Message{
		ID:             p.newID(),
		ConversationID: targetConversationID,
		SenderID:       actingUserID,
		Body:           src.Body,
		Kind:           src.Kind,
		Forwarded:      true,
		CreatedAt:      now,
	}
	if src.Attachment != nil {
		att := *src.Attachment
		fwd.Attachment = &att
	}

	if err := p.msgs.Create(ctx, fwd); err != nil {
		return nil, err
	}
	if err := p.convs.TouchActivity(ctx, targetConversationID, now); err != nil {
		log.Warn().Err(err).Str("conversation_id", targetConversationID).Msg("Failed to bump conversation activity")
	}
	if p.router != nil {
		p.router.deliver(fwd)
	}
	return fwd, nil
}

// Messages returns the locally observed sequence annotated with sender names
// and resolved reply previews. A reply whose referenced message was deleted
// renders as a plain message, with no preview and no error.
func (p *Pipeline) Messages(ctx context.Context) ([]*MessageView, error) {
	p.mu.Lock()
	snapshot := make([]*models.Message, len(p.local))
	copy(snapshot, p.local)
	p.mu.Unlock()

	senderIDs := make(map[string]struct{})
	for _, m := range snapshot {
		senderIDs[m.SenderID] = struct{}{}
	}
	names := make(map[string]string)
	if len(senderIDs) > 0 {
		ids := make([]string, 0, len(senderIDs))
		for id := range senderIDs {
			ids = append(ids, id)
		}
		users, err := p.users.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	byID := make(map[string]*models.Message, len(snapshot))
	for _, m := range snapshot {
		byID[m.ID] = m
	}

	views := make([]*MessageView, 0, len(snapshot))
	for _, m := range snapshot {
		view := &MessageView{Message: m, SenderName: names[m.SenderID]}
		if m.ReplyToID != nil {
			if ref, ok := byID[*m.ReplyToID]; ok {
				view.Reply = &ReplyPreview{
					MessageID:  ref.ID,
					SenderID:   ref.SenderID,
					SenderName: names[ref.SenderID],
					Body:       ref.Body,
					Kind:       ref.Kind,
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Local returns a copy of the locally observed message sequence
func (p *Pipeline) Local() []*models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Message, len(p.local))
	copy(out, p.local)
	return out
}

// appendDurable applies the optimistic append, issues the durable create and
// rolls the append back if the create fails
func (p *Pipeline) appendDurable(ctx context.Context, msg *models.Message) error {
	p.mu.Lock()
	p.local = append(p.local, msg)
	p.mu.Unlock()

	if err := p.msgs.Create(ctx, msg); err != nil {
		p.remove(msg.ID)
		return err
	}

	if err := p.convs.TouchActivity(ctx, p.conv.ID, msg.CreatedAt); err != nil {
		log.Warn().Err(err).Str("conversation_id", p.conv.ID).Msg("Failed to bump conversation activity")
	}

	go p.notifyRecipients(msg)
	return nil
}

// notifyRecipients pushes a best-effort notification to the other participants
func (p *Pipeline) notifyRecipients(msg *models.Message) {
	ctx := context.Background()

	members, err := p.convs.Members(ctx, p.conv.ID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", p.conv.ID).Msg("Failed to load members for notification")
		return
	}

	sender, err := p.users.GetByID(ctx, msg.SenderID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", msg.SenderID).Msg("Failed to load sender for notification")
		return
	}

	var recipientIDs []string
	for _, m := range members {
		if m.UserID != msg.SenderID {
			recipientIDs = append(recipientIDs, m.UserID)
		}
	}
	if len(recipientIDs) == 0 {
		return
	}

	recipients, err := p.users.GetByIDs(ctx, recipientIDs)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", p.conv.ID).Msg("Failed to load recipients for notification")
		return
	}
	for _, r := range recipients {
		p.notifier.MessagePosted(r, sender, msg)
	}
}

func (p *Pipeline) takeReplyContext(senderID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	replyTo := p.replyTo[senderID]
	delete(p.replyTo, senderID)
	return replyTo
}

// receive appends a message created outside this pipeline's own send path,
// already durable upstream
func (p *Pipeline) receive(msg *models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = append(p.local, msg)
}

func (p *Pipeline) find(messageID string) *models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.local {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

func (p *Pipeline) remove(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.local {
		if m.ID == messageID {
			p.local = append(p.local[:i], p.local[i+1:]...)
			return
		}
	}
}

// classifyKind maps a declared media type to a message content kind
func classifyKind(contentType string) models.MessageKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MessageVideo
	case strings.HasPrefix(contentType, "audio/"):
		return models.MessageAudio
	default:
		return models.MessageDocument
	}
}

// formatDuration renders seconds as m:ss
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Pipelines hands out the per-conversation pipeline instances. A pipeline is
// created lazily the first time a resolved conversation is used and then
// reused, so its local sequence stays authoritative for the session.
type Pipelines struct {
	convs    ConversationStore
	msgs     MessageStore
	users    UserStore
	notifier Notifier

	mu     sync.Mutex
	byConv map[string]*Pipeline
}

// NewPipelines creates the pipeline manager
func NewPipelines(convs ConversationStore, msgs MessageStore, users UserStore, notifier Notifier) *Pipelines {
	return &Pipelines{
		convs:    convs,
		msgs:     msgs,
		users:    users,
		notifier: notifier,
		byConv:   make(map[string]*Pipeline),
	}
}

// Get returns the pipeline for a resolved conversation, creating it on first
// use. Unknown conversation ids fail with a not-found error.
func (ps *Pipelines) Get(ctx context.Context, conversationID string) (*Pipeline, error) {
	ps.mu.Lock()
	if p, ok := ps.byConv[conversationID]; ok {
		ps.mu.Unlock()
		return p, nil
	}
	ps.mu.Unlock()

	conv, err := ps.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	p, err := newPipeline(ctx, conv, ps.convs, ps.msgs, ps.users, ps.notifier)
	if err != nil {
		return nil, err
	}
	p.router = ps

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if existing, ok := ps.byConv[conversationID]; ok {
		return existing, nil
	}
	ps.byConv[conversationID] = p
	return p, nil
}

// GetFor returns the conversation's pipeline after checking that the user is
// a participant
func (ps *Pipelines) GetFor(ctx context.Context, conversationID, userID string) (*Pipeline, error) {
	p, err := ps.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	members, err := ps.convs.Members(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !memberOf(members, userID) {
		return nil, apperr.Permissionf("user is not a participant of the conversation")
	}
	return p, nil
}

// deliver routes a durable message created outside a pipeline's own send path
// into the target's live pipeline. A conversation with no live pipeline needs
// nothing; it loads the message from the store on first use.
func (ps *Pipelines) deliver(msg *models.Message) {
	ps.mu.Lock()
	p, ok := ps.byConv[msg.ConversationID]
	ps.mu.Unlock()
	if ok {
		p.receive(msg)
	}
}

func memberOf(members []models.Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
