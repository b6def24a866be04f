package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadline/internal/config"
	"leadline/internal/domain"
	"leadline/internal/engine/auth"
	"leadline/internal/events"
	"leadline/internal/ideation"
	"leadline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Bus      events.Publisher
	Policy   auth.Policy
	Ideation ideation.Generator
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Bus:    events.NoopPublisher{},
		Policy: auth.OwnerPolicy{OwnerID: cfg.Owner.ID},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(domain.TimeLayout)
}

// publish pushes a committed change onto the event bus. The write has
// already committed, so a bus failure is logged, not returned.
func (e Engine) publish(ctx context.Context, topic string, event any) {
	if e.Bus == nil {
		return
	}
	if err := e.Bus.Publish(ctx, topic, event); err != nil {
		log.Printf("events: publish %s failed: %v", topic, err)
	}
}

// IngestOptions are the fields an inbound submission may carry. All are
// optional: the handler never rejects a lead.
type IngestOptions struct {
	Name    string
	Email   string
	Notes   string
	Source  string
	ActorID string
}

const defaultArtifactContent = "New inbound lead"

// IngestLead creates exactly one lead in needs_follow_up. Missing fields
// are defaulted rather than rejected: losing an inbound lead costs more
// than incomplete data.
func (e Engine) IngestLead(ctx context.Context, opts IngestOptions) (domain.Lead, error) {
	if e.Config == nil {
		return domain.Lead{}, errors.New("config not loaded")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = defaultArtifactContent
	}
	actorID := opts.ActorID
	if actorID == "" {
		actorID = "intake"
	}
	orgID := ""
	if e.Config.Org.ID != "" {
		orgID = e.Config.Org.ID
	}
	now := e.timestamp()
	l := domain.Lead{
		ID:              uuid.NewString(),
		OwnerID:         e.Config.Owner.ID,
		OrgID:           orgID,
		ArtifactContent: name,
		ContactEmail:    strings.TrimSpace(opts.Email),
		Description:     strings.TrimSpace(opts.Notes),
		Source:          strings.TrimSpace(opts.Source),
		Status:          domain.StatusNeedsFollowUp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertLeadTx(ctx, tx, l); err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "lead.created", l.ID, actorID, events.EventPayload{
		"artifact_content": l.ArtifactContent,
		"status":           l.Status,
		"source":           l.Source,
	}); err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	e.publish(ctx, events.TopicLeadCreated, events.LeadCreated{Lead: &l})
	return l, nil
}

// UpdateStatusOptions are parameters for a status transition.
type UpdateStatusOptions struct {
	ID      string
	Status  domain.Status
	ActorID string
	Force   bool
}

// UpdateLeadStatus performs a partial update of status and updated_at.
// The linear workflow is enforced unless Force is set; there is no
// optimistic-concurrency guard, so concurrent transitions settle on
// whichever write lands last.
func (e Engine) UpdateLeadStatus(ctx context.Context, opts UpdateStatusOptions) (domain.Lead, error) {
	if opts.ID == "" {
		return domain.Lead{}, errors.New("lead id is required")
	}
	if !domain.ValidStatus(opts.Status) {
		return domain.Lead{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	l, err := e.Repo.GetLead(ctx, opts.ID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !opts.Force && !domain.CanTransition(l.Status, opts.Status) {
		return domain.Lead{}, domain.InvalidTransitionError{From: l.Status, To: opts.Status}
	}
	previous := l.Status
	now := e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateLeadStatusTx(ctx, tx, l.ID, opts.Status, now); err != nil {
		return domain.Lead{}, err
	}
	if err := e.Events.Append(ctx, tx, "lead.status_changed", l.ID, opts.ActorID, events.EventPayload{
		"from": previous,
		"to":   opts.Status,
	}); err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	l.Status = opts.Status
	l.UpdatedAt = now
	e.publish(ctx, events.TopicLeadStatusChanged, events.LeadStatusChanged{Lead: &l, Previous: previous})
	return l, nil
}

// IdeateOptions are parameters for invoking the ideation agent.
type IdeateOptions struct {
	ID      string
	ActorID string
}

// GenerateIdeation sends the lead description to the text-generation
// backend and, on success, writes ai_ideation and forces in_review in a
// single update regardless of the lead's current status. Any failure
// before that write leaves the lead untouched. Re-invocation overwrites
// the previous ideation.
func (e Engine) GenerateIdeation(ctx context.Context, opts IdeateOptions) (domain.Lead, error) {
	if opts.ID == "" {
		return domain.Lead{}, errors.New("lead id is required")
	}
	if e.Policy == nil {
		return domain.Lead{}, errors.New("authorization policy not configured")
	}
	if err := e.Policy.Authorize(opts.ActorID); err != nil {
		return domain.Lead{}, err
	}
	if e.Ideation == nil {
		return domain.Lead{}, errors.New("ideation backend not configured")
	}
	l, err := e.Repo.GetLead(ctx, opts.ID)
	if err != nil {
		return domain.Lead{}, err
	}
	text, err := e.Ideation.Generate(ctx, l.Description)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("generate ideation: %w", err)
	}
	previous := l.Status
	now := e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateLeadIdeationTx(ctx, tx, l.ID, text, domain.StatusInReview, now); err != nil {
		return domain.Lead{}, err
	}
	if err := e.Events.Append(ctx, tx, "lead.ideation_completed", l.ID, opts.ActorID, events.EventPayload{
		"from": previous,
		"to":   domain.StatusInReview,
	}); err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	l.AIIdeation = &text
	l.Status = domain.StatusInReview
	l.UpdatedAt = now
	e.publish(ctx, events.TopicLeadIdeationCompleted, events.LeadIdeationCompleted{Lead: &l})
	return l, nil
}
