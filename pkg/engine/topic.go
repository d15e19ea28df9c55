package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/models"
	"github.com/google/uuid"
)

const (
	// commentTimeout bounds one agent's comment generation.
	commentTimeout = 120 * time.Second

	// interAgentPause separates agents within a cycle; skipPause follows
	// a skip or a filtered comment.
	interAgentPause = 5 * time.Second
	skipPause       = 2 * time.Second
)

// RunTopic drives an open topic through polling cycles until its window
// expires or every participant has exhausted their comment quota.
func (e *Engine) RunTopic(ctx context.Context, topicID uuid.UUID) {
	if err := e.runTopic(ctx, topicID); err != nil {
		slog.Error("Topic orchestrator failed", "topic_id", topicID, "error", err)
		if err := e.store.CloseTopic(ctx, topicID); err != nil {
			slog.Error("Failed to close topic after failure", "topic_id", topicID, "error", err)
		}
	}
}

func (e *Engine) runTopic(ctx context.Context, topicID uuid.UUID) error {
	topic, err := e.store.GetTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("loading topic: %w", err)
	}
	slog.Info("Starting topic", "topic_id", topicID, "title", topic.Title,
		"polling_interval", topic.PollingIntervalSeconds)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		topic, err = e.store.GetTopic(ctx, topicID)
		if err != nil {
			return fmt.Errorf("reloading topic: %w", err)
		}
		if topic.Status != models.TopicStatusOpen {
			slog.Info("Topic is no longer open", "topic_id", topicID, "status", topic.Status)
			break
		}
		if topic.ClosesAt != nil && !time.Now().Before(*topic.ClosesAt) {
			e.closeTopic(ctx, topicID, "Time expired")
			break
		}

		participants, err := e.store.ListTopicParticipants(ctx, topicID)
		if err != nil {
			return fmt.Errorf("loading topic participants: %w", err)
		}
		comments, err := e.store.ListComments(ctx, topicID)
		if err != nil {
			return fmt.Errorf("loading comments: %w", err)
		}

		// A topic with no participants is vacuously exhausted.
		allMaxed := true
		for _, p := range participants {
			if p.CommentCount < p.MaxComments {
				allMaxed = false
				break
			}
		}
		if allMaxed {
			e.closeTopic(ctx, topicID, "All agents reached comment limit")
			break
		}

		// Shuffle so no agent consistently speaks first.
		shuffled := make([]*models.TopicParticipant, len(participants))
		copy(shuffled, participants)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		for _, participant := range shuffled {
			if participant.CommentCount >= participant.MaxComments {
				continue
			}
			comments = e.pollAgent(ctx, topic, participant, comments)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if err := e.sleep(ctx, time.Duration(topic.PollingIntervalSeconds)*time.Second); err != nil {
			return err
		}
	}

	e.bus.Publish(topicID, events.Event{Type: events.EventTopicClosed, Data: map[string]any{
		"topic_id": topicID.String(),
	}})
	return nil
}

// pollAgent gives one participant a chance to comment and returns the
// comment list extended with anything they said, so later agents in the
// same cycle see it.
func (e *Engine) pollAgent(ctx context.Context, topic *models.Topic,
	participant *models.TopicParticipant, comments []*models.Comment) []*models.Comment {

	agent, err := e.store.GetAgent(ctx, participant.AgentID)
	if err != nil {
		slog.Error("Failed to load topic participant agent",
			"agent_id", participant.AgentID, "error", err)
		return comments
	}

	var mine []*models.Comment
	for _, c := range comments {
		if c.AgentID == agent.ID {
			mine = append(mine, c)
		}
	}
	remaining := participant.MaxComments - participant.CommentCount

	gateway := e.factory(agent, "")
	commentCtx, cancel := context.WithTimeout(ctx, commentTimeout)
	data, err := gateway.GenerateComment(commentCtx, agents.CommentRequest{
		TopicTitle:       topic.Title,
		TopicDescription: topic.Description,
		Existing:         comments,
		Mine:             mine,
		Remaining:        remaining,
	})
	cancel()

	if err != nil {
		slog.Error("Agent comment generation failed", "agent", agent.Name, "error", err)
		_ = e.sleep(ctx, interAgentPause)
		return comments
	}
	if data == nil {
		slog.Info("Agent skipped this cycle", "agent", agent.Name)
		_ = e.sleep(ctx, skipPause)
		return comments
	}

	// A violating comment is dropped; unlike debate turns it does not
	// suspend the agent, since nothing is published.
	if safe, reason := e.filter.Check(data.Content); !safe {
		slog.Warn("Agent comment blocked by content filter",
			"agent", agent.Name, "reason", reason)
		_ = e.sleep(ctx, skipPause)
		return comments
	}

	comment := &models.Comment{
		TopicID:    topic.ID,
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		Content:    data.Content,
		References: data.References,
		Citations:  data.Citations,
		Stance:     data.Stance,
		TokenCount: data.TokenCount,
	}
	if err := e.store.CreateComment(ctx, comment); err != nil {
		slog.Error("Failed to save comment", "agent", agent.Name, "error", err)
		_ = e.sleep(ctx, interAgentPause)
		return comments
	}
	if err := e.store.IncrementCommentCount(ctx, topic.ID, agent.ID); err != nil {
		slog.Error("Failed to increment comment count", "agent", agent.Name, "error", err)
	}
	participant.CommentCount++

	e.bus.Publish(topic.ID, events.Event{Type: events.EventNewComment, Data: map[string]any{
		"comment_id": comment.ID.String(),
		"agent_id":   agent.ID.String(),
		"agent_name": agent.Name,
	}})

	e.autoFactcheckComment(ctx, topic.ID, comment)
	slog.Info("Agent commented", "agent", agent.Name, "topic_id", topic.ID)

	_ = e.sleep(ctx, interAgentPause)
	return append(comments, comment)
}

// autoFactcheckComment enqueues verification for a cited comment.
// Uncited comments are not worth a referee pass.
func (e *Engine) autoFactcheckComment(ctx context.Context, topicID uuid.UUID, comment *models.Comment) {
	if len(comment.Citations) == 0 {
		return
	}

	req, created, err := e.store.UpsertFactcheckRequest(ctx, &models.FactcheckRequest{
		TopicID:   &topicID,
		CommentID: &comment.ID,
		ClaimHash: models.ClaimHash(comment.Content),
		SessionID: "auto",
	})
	if err != nil {
		slog.Error("Failed to enqueue auto fact-check", "comment_id", comment.ID, "error", err)
		return
	}
	if created {
		e.worker.Enqueue(req.ID)
		slog.Info("Auto fact-check enqueued", "comment_id", comment.ID, "request_id", req.ID)
	}
}

func (e *Engine) closeTopic(ctx context.Context, topicID uuid.UUID, reason string) {
	if err := e.store.CloseTopic(ctx, topicID); err != nil {
		slog.Error("Failed to close topic", "topic_id", topicID, "error", err)
		return
	}
	slog.Info("Topic closed", "topic_id", topicID, "reason", reason)
}
