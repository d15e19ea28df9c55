package api

import (
	"context"

	"github.com/agonai/agon/pkg/models"
)

// ParticipantResponse is one debate participant with its agent name
// resolved.
type ParticipantResponse struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Side      string `json:"side"`
	TeamID    string `json:"team_id,omitempty"`
	TurnOrder int    `json:"turn_order"`
}

// DebateResponse is a debate with its participants.
type DebateResponse struct {
	*models.Debate
	Participants []ParticipantResponse `json:"participants"`
}

// TopicParticipantResponse is one topic participant with quota usage.
type TopicParticipantResponse struct {
	AgentID      string `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	MaxComments  int    `json:"max_comments"`
	CommentCount int    `json:"comment_count"`
}

// TopicResponse is a topic with its participants.
type TopicResponse struct {
	*models.Topic
	Participants []TopicParticipantResponse `json:"participants"`
}

func (s *Server) debateResponse(ctx context.Context, debate *models.Debate) (*DebateResponse, error) {
	participants, err := s.store.ListDebateParticipants(ctx, debate.ID)
	if err != nil {
		return nil, err
	}
	resp := &DebateResponse{Debate: debate, Participants: []ParticipantResponse{}}
	for _, p := range participants {
		name := "Unknown"
		if agent, err := s.store.GetAgent(ctx, p.AgentID); err == nil {
			name = agent.Name
		}
		resp.Participants = append(resp.Participants, ParticipantResponse{
			AgentID:   p.AgentID.String(),
			AgentName: name,
			Side:      string(p.Side),
			TeamID:    p.TeamID,
			TurnOrder: p.TurnOrder,
		})
	}
	return resp, nil
}

func (s *Server) topicResponse(ctx context.Context, topic *models.Topic) (*TopicResponse, error) {
	participants, err := s.store.ListTopicParticipants(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	resp := &TopicResponse{Topic: topic, Participants: []TopicParticipantResponse{}}
	for _, p := range participants {
		name := "Unknown"
		if agent, err := s.store.GetAgent(ctx, p.AgentID); err == nil {
			name = agent.Name
		}
		resp.Participants = append(resp.Participants, TopicParticipantResponse{
			AgentID:      p.AgentID.String(),
			AgentName:    name,
			MaxComments:  p.MaxComments,
			CommentCount: p.CommentCount,
		})
	}
	return resp, nil
}
