// Package runner drives one sweep of the automation: establish a session,
// resolve the target page, walk the allowed rooms in policy order, filter
// candidate posts against the reply store and the recency window, generate
// and submit replies, and record each success.
//
// The runner owns no I/O of its own; the forum client, generator, store,
// clock, sleep, and randomness are all injected so a sweep is fully
// deterministic under test.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wkchan/forum-reply-bot/internal/domain"
	"github.com/wkchan/forum-reply-bot/internal/timeutil"
)

// Forum is the remote-service contract the runner consumes.
type Forum interface {
	// EnsureSession makes the session usable or fails the run.
	EnsureSession(ctx context.Context) error

	// LookupPage resolves a community page by display name.
	LookupPage(ctx context.Context, name string) (domain.Page, error)

	// ListRooms lists the rooms of a page.
	ListRooms(ctx context.Context, pageGUID string) ([]domain.Room, error)

	// ListConversations lists up to limit newest conversations in a room.
	ListConversations(ctx context.Context, pageGUID, roomGUID string, limit int) ([]domain.Conversation, error)

	// ReplyAndLike submits a reply to a post and likes it.
	ReplyAndLike(ctx context.Context, roomGUID, postGUID, message string) error
}

// Generator produces reply text for a post.
type Generator interface {
	GenerateReply(ctx context.Context, content, title string) (string, error)
}

// ReplyStore is the cross-run deduplication record.
type ReplyStore interface {
	IsReplied(ctx context.Context, postID string) (bool, error)
	MarkReplied(ctx context.Context, postID string) error
}

// RoomComparator orders rooms for the sweep. Less-than semantics.
type RoomComparator func(a, b domain.Room) bool

// TitleOrder sorts rooms by title, ascending, for deterministic sweeps.
func TitleOrder() RoomComparator {
	return func(a, b domain.Room) bool { return a.Title < b.Title }
}

// PinnedFirstOrder puts the room with the given title ahead of everything
// else, then falls back to title order.
func PinnedFirstOrder(pinned string) RoomComparator {
	return func(a, b domain.Room) bool {
		if (a.Title == pinned) != (b.Title == pinned) {
			return a.Title == pinned
		}
		return a.Title < b.Title
	}
}

// Options is the sweep policy.
type Options struct {
	PageName          string
	RoomTitles        []string // allow-list; membership only, order is the comparator's job
	ConversationLimit int
	WindowHours       int // 0 disables the recency filter
	DelayMax          time.Duration
}

// delayMin is the lower bound of the randomized pre-submission delay.
const delayMin = 5 * time.Second

// Report summarizes one sweep.
type Report struct {
	RoomsChecked int
	Candidates   int
	Replied      int
	FoundNewPost bool
}

// Runner executes sweeps. Construct with New; the zero value is not usable.
type Runner struct {
	forum Forum
	gen   Generator
	store ReplyStore
	opts  Options
	order RoomComparator
	log   zerolog.Logger

	// Injected time sources; defaults suit production use.
	Now   func() time.Time
	Sleep func(time.Duration)
	Rand  *rand.Rand
}

// New wires a Runner. order may be nil, defaulting to TitleOrder.
func New(f Forum, g Generator, s ReplyStore, opts Options, order RoomComparator, lg zerolog.Logger) *Runner {
	if order == nil {
		order = TitleOrder()
	}
	if opts.ConversationLimit < 1 {
		opts.ConversationLimit = 5
	}
	if opts.DelayMax < delayMin {
		opts.DelayMax = delayMin
	}
	return &Runner{
		forum: f,
		gen:   g,
		store: s,
		opts:  opts,
		order: order,
		log:   lg.With().Str("component", "runner").Logger(),
		Now:   time.Now,
		Sleep: time.Sleep,
		Rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run performs one sweep. Authentication failure and a missing page abort
// the run with an error before any reply activity; every other failure is
// scoped to its room or candidate and the sweep continues.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var rep Report
	lg := r.log.With().Str("run_id", uuid.NewString()).Logger()

	if err := r.forum.EnsureSession(ctx); err != nil {
		return rep, fmt.Errorf("run aborted: %w", err)
	}

	page, err := r.forum.LookupPage(ctx, r.opts.PageName)
	if err != nil {
		return rep, fmt.Errorf("run aborted: %w", err)
	}
	lg.Info().Str("page", page.Name).Str("page_guid", page.GUID).Msg("page resolved")

	rooms, err := r.forum.ListRooms(ctx, page.GUID)
	if err != nil {
		// Discovery failure: nothing to sweep this run, not a crash.
		lg.Error().Err(err).Msg("room listing failed, nothing to sweep")
		return rep, nil
	}

	allowed := make(map[string]bool, len(r.opts.RoomTitles))
	for _, t := range r.opts.RoomTitles {
		allowed[t] = true
	}
	var targets []domain.Room
	for _, room := range rooms {
		if allowed[room.Title] {
			targets = append(targets, room)
		} else {
			lg.Debug().Str("room", room.Title).Msg("room not in allow-list, skipping")
		}
	}
	sort.SliceStable(targets, func(i, j int) bool { return r.order(targets[i], targets[j]) })

	for _, room := range targets {
		rep.RoomsChecked++
		r.sweepRoom(ctx, lg, page.GUID, room, &rep)
	}

	if !rep.FoundNewPost {
		lg.Info().Int("rooms", rep.RoomsChecked).Msg("checked all rooms, no new posts found")
	}
	return rep, nil
}

// sweepRoom processes one allowed room. Errors inside are logged and
// scoped: a listing failure means zero posts here, a candidate failure
// skips only that candidate.
func (r *Runner) sweepRoom(ctx context.Context, lg zerolog.Logger, pageGUID string, room domain.Room, rep *Report) {
	rlog := lg.With().Str("room", room.Title).Str("room_guid", room.GUID).Logger()

	convos, err := r.forum.ListConversations(ctx, pageGUID, room.GUID, r.opts.ConversationLimit)
	if err != nil {
		rlog.Error().Err(err).Msg("conversation listing failed, treating room as empty")
		return
	}

	candidates := r.filterCandidates(ctx, rlog, convos)
	if len(candidates) == 0 {
		rlog.Info().Msg("no new posts in room")
		return
	}
	rep.FoundNewPost = true
	rep.Candidates += len(candidates)
	rlog.Info().Int("count", len(candidates)).Msg("new posts found")

	for _, convo := range candidates {
		if r.processCandidate(ctx, rlog, room, convo) {
			rep.Replied++
		}
	}
}

// filterCandidates drops posts already replied to and, when a recency
// window is configured, posts older than the window. A post with an
// unparsable timestamp is excluded under an active window and included
// otherwise.
func (r *Runner) filterCandidates(ctx context.Context, rlog zerolog.Logger, convos []domain.Conversation) []domain.Conversation {
	now := r.Now().UTC()
	out := make([]domain.Conversation, 0, len(convos))
	for _, convo := range convos {
		replied, err := r.store.IsReplied(ctx, convo.GUID)
		if err != nil {
			// A broken dedup read must not risk a duplicate reply.
			rlog.Error().Err(err).Str("post", convo.GUID).Msg("reply store lookup failed, skipping post")
			continue
		}
		if replied {
			continue
		}
		if !timeutil.WithinHours(now, convo.PostedAt, r.opts.WindowHours) {
			rlog.Debug().
				Str("post", convo.GUID).
				Str("posted_at", timeutil.FormatHK(convo.PostedAt)).
				Msg("post outside recency window")
			continue
		}
		out = append(out, convo)
	}
	return out
}

// processCandidate generates and submits one reply. Only a fully confirmed
// submission marks the post replied; everything else leaves it eligible
// for the next run.
func (r *Runner) processCandidate(ctx context.Context, rlog zerolog.Logger, room domain.Room, convo domain.Conversation) bool {
	plog := rlog.With().Str("post", convo.GUID).Logger()
	plog.Info().
		Str("title", convo.Title).
		Str("author", convo.Author).
		Str("posted_at", timeutil.FormatHK(convo.PostedAt)).
		Msg("processing post")

	reply, err := r.gen.GenerateReply(ctx, convo.Content, convo.Title)
	if err != nil {
		plog.Warn().Err(err).Msg("reply generation failed, post stays eligible")
		return false
	}

	// Throttle between generation and submission.
	delay := delayMin
	if span := r.opts.DelayMax - delayMin; span > 0 {
		delay += time.Duration(r.Rand.Int63n(int64(span)))
	}
	plog.Info().Dur("delay", delay).Msg("waiting before submission")
	r.Sleep(delay)

	// Replies go to the conversation's own room when the listing provided
	// one (the virtual recent-posts room aggregates across rooms).
	targetRoom := convo.RoomGUID
	if targetRoom == "" {
		targetRoom = room.GUID
	}
	if err := r.forum.ReplyAndLike(ctx, targetRoom, convo.GUID, reply); err != nil {
		plog.Error().Err(err).Msg("submission failed, post stays eligible")
		return false
	}

	if err := r.store.MarkReplied(ctx, convo.GUID); err != nil {
		// The reply is live but the record is lost: a duplicate next run
		// is now possible, which is the documented trade-off.
		plog.Error().Err(err).Msg("reply submitted but could not be recorded")
		return true
	}
	plog.Info().Msg("post processed")
	return true
}
