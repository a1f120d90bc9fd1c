package service

import (
	"context"
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const DefaultVoteMaxRetries = 3

// VoteService is the vote ledger. Every transition locks the target row,
// touches the caller's single vote row and adjusts the target's aggregate
// counters in the same transaction.
type VoteService struct {
	store      repository.Store
	publisher  Publisher
	maxRetries int
	logger     *slog.Logger
}

func NewVoteService(store repository.Store, publisher Publisher, maxRetries int, logger *slog.Logger) *VoteService {
	if maxRetries < 0 {
		maxRetries = DefaultVoteMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VoteService{
		store:      store,
		publisher:  publisherOrNop(publisher),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

type voteResult struct {
	state   models.VoteState
	outcome string
	topicID uint
}

const (
	outcomeAdded    = "added"
	outcomeRemoved  = "removed"
	outcomeSwitched = "switched"
	outcomeNoop     = "noop"
)

// CastVote records voteType for userID on target. Casting the polarity the
// caller already holds removes the vote; casting the opposite one flips it.
func (s *VoteService) CastVote(ctx context.Context, userID uint, target models.VoteTarget, voteType models.VoteType) (state *models.VoteState, err error) {
	if err := validateVote(userID, target); err != nil {
		return nil, err
	}
	if !voteType.Valid() {
		return nil, models.NewValidationError("vote_type must be 'up' or 'down'")
	}

	ctx, finish := observability.StartOperation(ctx, "VoteService", "CastVote", voteAttributes(target)...)
	defer finish(&err)

	return s.run(ctx, "vote_cast", userID, target, voteType, false)
}

// RemoveVote deletes the caller's vote on target. It is a no-op when there
// is none.
func (s *VoteService) RemoveVote(ctx context.Context, userID uint, target models.VoteTarget) (state *models.VoteState, err error) {
	if err := validateVote(userID, target); err != nil {
		return nil, err
	}

	ctx, finish := observability.StartOperation(ctx, "VoteService", "RemoveVote", voteAttributes(target)...)
	defer finish(&err)

	return s.run(ctx, "vote_remove", userID, target, "", true)
}

// CallerVotes returns userID's vote on each of ids that has one.
func (s *VoteService) CallerVotes(ctx context.Context, userID uint, kind models.TargetKind, ids []uint) (map[uint]models.VoteType, error) {
	votes, err := s.store.Repositories().Votes.CallerVotes(ctx, userID, kind, ids)
	if err != nil {
		return nil, classifyStorageError(err, "vote", 0)
	}
	return votes, nil
}

// AnnotateTopics fills Votes.CallerVote on every topic for callerID.
func (s *VoteService) AnnotateTopics(ctx context.Context, callerID uint, topics ...*models.Topic) error {
	ids := make([]uint, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
		t.Votes.CallerVote = models.VoteNone
	}
	votes, err := s.CallerVotes(ctx, callerID, models.TargetTopic, ids)
	if err != nil {
		return err
	}
	for _, t := range topics {
		if v, ok := votes[t.ID]; ok {
			t.Votes.CallerVote = v
		}
	}
	return nil
}

// AnnotateReplies fills Votes.CallerVote on every reply for callerID.
func (s *VoteService) AnnotateReplies(ctx context.Context, callerID uint, replies ...*models.Reply) error {
	ids := make([]uint, len(replies))
	for i, r := range replies {
		ids[i] = r.ID
		r.Votes.CallerVote = models.VoteNone
	}
	votes, err := s.CallerVotes(ctx, callerID, models.TargetReply, ids)
	if err != nil {
		return err
	}
	for _, r := range replies {
		if v, ok := votes[r.ID]; ok {
			r.Votes.CallerVote = v
		}
	}
	return nil
}

func (s *VoteService) run(ctx context.Context, operation string, userID uint, target models.VoteTarget, voteType models.VoteType, remove bool) (*models.VoteState, error) {
	var (
		res voteResult
		err error
	)
	for attempt := 0; ; attempt++ {
		err = s.store.Transaction(ctx, operation, func(repos repository.Repositories) error {
			var txErr error
			res, txErr = s.apply(ctx, repos, userID, target, voteType, remove)
			return txErr
		})
		if err == nil || !repository.IsConflict(err) || attempt >= s.maxRetries {
			break
		}
		observability.VoteConflicts.Inc()
		s.logger.DebugContext(ctx, "vote conflict, retrying",
			slog.String("target", string(target.Kind())),
			slog.Uint64("target_id", uint64(target.ID())),
			slog.Int("attempt", attempt+1),
		)
	}
	if err != nil {
		return nil, classifyStorageError(err, string(target.Kind()), target.ID())
	}

	observability.VotesTotal.WithLabelValues(string(target.Kind()), res.outcome).Inc()
	if res.outcome != outcomeNoop {
		entity := models.EntityTopic
		if target.Kind() == models.TargetReply {
			entity = models.EntityReply
		}
		s.publisher.Publish(ctx, models.NewChangeEvent(entity, target.ID(), res.topicID, models.ChangeUpdated, models.ActionVote, userID))
	}

	state := res.state
	return &state, nil
}

func (s *VoteService) apply(ctx context.Context, repos repository.Repositories, userID uint, target models.VoteTarget, voteType models.VoteType, remove bool) (voteResult, error) {
	var res voteResult

	topicID, err := lockTarget(ctx, repos, target)
	if err != nil {
		return res, err
	}
	res.topicID = topicID

	existing, err := repos.Votes.Find(ctx, userID, target)
	if err != nil && !repository.IsNotFound(err) {
		return res, err
	}
	if err != nil {
		existing = nil
	}

	var up, down int
	adjust := func(v models.VoteType, delta int) {
		if v == models.VoteUp {
			up += delta
		} else {
			down += delta
		}
	}

	callerVote := models.VoteNone
	switch {
	case existing == nil && remove:
		res.outcome = outcomeNoop
	case existing == nil:
		vote := newVote(userID, target, voteType)
		if err := repos.Votes.Create(ctx, vote); err != nil {
			return res, err
		}
		adjust(voteType, 1)
		callerVote = voteType
		res.outcome = outcomeAdded
	case remove || existing.VoteType == voteType:
		if err := repos.Votes.Delete(ctx, existing.ID); err != nil {
			return res, err
		}
		adjust(existing.VoteType, -1)
		res.outcome = outcomeRemoved
	default:
		if err := repos.Votes.UpdateType(ctx, existing.ID, voteType); err != nil {
			return res, err
		}
		adjust(existing.VoteType, -1)
		adjust(voteType, 1)
		callerVote = voteType
		res.outcome = outcomeSwitched
	}

	if up != 0 || down != 0 {
		if err := adjustTarget(ctx, repos, target, up, down); err != nil {
			return res, err
		}
	}

	summary, err := readSummary(ctx, repos, target)
	if err != nil {
		return res, err
	}
	res.state = models.VoteState{
		Upvotes:    summary.Upvotes,
		Downvotes:  summary.Downvotes,
		CallerVote: callerVote,
	}
	return res, nil
}

func validateVote(userID uint, target models.VoteTarget) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	return target.Validate()
}

func voteAttributes(target models.VoteTarget) []attribute.KeyValue {
	if target.Validate() != nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("vote.target", string(target.Kind())),
		attribute.Int64("vote.target_id", int64(target.ID())),
	}
}

func newVote(userID uint, target models.VoteTarget, voteType models.VoteType) *models.Vote {
	id := target.ID()
	vote := &models.Vote{UserID: userID, VoteType: voteType}
	if target.Kind() == models.TargetTopic {
		vote.TopicID = &id
	} else {
		vote.ReplyID = &id
	}
	return vote
}

// lockTarget row-locks the voted entity and returns the topic it belongs to.
func lockTarget(ctx context.Context, repos repository.Repositories, target models.VoteTarget) (uint, error) {
	if target.Kind() == models.TargetTopic {
		topic, err := repos.Topics.GetForUpdate(ctx, target.ID())
		if err != nil {
			return 0, err
		}
		return topic.ID, nil
	}
	reply, err := repos.Replies.GetForUpdate(ctx, target.ID())
	if err != nil {
		return 0, err
	}
	return reply.TopicID, nil
}

func adjustTarget(ctx context.Context, repos repository.Repositories, target models.VoteTarget, up, down int) error {
	if target.Kind() == models.TargetTopic {
		return repos.Topics.AdjustVotes(ctx, target.ID(), up, down)
	}
	return repos.Replies.AdjustVotes(ctx, target.ID(), up, down)
}

func readSummary(ctx context.Context, repos repository.Repositories, target models.VoteTarget) (models.VoteSummary, error) {
	if target.Kind() == models.TargetTopic {
		topic, err := repos.Topics.GetByID(ctx, target.ID())
		if err != nil {
			return models.VoteSummary{}, err
		}
		return topic.Votes, nil
	}
	reply, err := repos.Replies.GetByID(ctx, target.ID())
	if err != nil {
		return models.VoteSummary{}, err
	}
	return reply.Votes, nil
}
