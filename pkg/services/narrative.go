package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/repositories"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

const narrativeSystemPrompt = "You are a documentary researcher working with a historical newspaper archive. " +
	"Given original articles from the period, you identify compelling story threads, suggest narrative arcs, " +
	"and always ground your answers in the supplied articles. Keep responses under 300 words."

// Story is a documentary story thread surfaced from the archive.
type Story struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Category string `json:"category,omitempty"`
	Year     string `json:"year,omitempty"`

	// DocumentaryPotential is reported by the upstream intelligence layer
	// when present; this service never computes it.
	DocumentaryPotential *float64 `json:"documentary_potential,omitempty"`
}

// ExploreRequest asks for story threads around a theme.
type ExploreRequest struct {
	Theme string `json:"theme"`
	Limit int    `json:"limit,omitempty"`
}

// ExploreResult is the narrative exploration payload.
type ExploreResult struct {
	Theme     string  `json:"theme"`
	Narrative string  `json:"narrative"`
	Stories   []Story `json:"stories"`
}

// NarrativeChatResult is one turn of a narrative chat session.
type NarrativeChatResult struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// RefreshResult reports a forced upstream re-discovery.
type RefreshResult struct {
	Upstream  string    `json:"upstream"`
	Refreshed bool      `json:"refreshed"`
	Timestamp time.Time `json:"timestamp"`
}

// NarrativeService drives the story-discovery endpoints.
type NarrativeService interface {
	Stories(ctx context.Context, limit int) []Story
	Categories() []string
	Explore(ctx context.Context, req ExploreRequest) ExploreResult
	Chat(ctx context.Context, sessionID, message string) NarrativeChatResult
	Refresh(ctx context.Context) RefreshResult
}

// messagesAPI is the slice of the Anthropic client the service needs.
// Nil means no API key is configured and the service degrades to canned
// responses.
type messagesAPI interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

type narrativeService struct {
	upstream storymap.API
	articles repositories.ArticleRepository
	claude   messagesAPI
	model    string
	logger   *zap.Logger
}

// NewNarrativeService creates the Claude-backed narrative service. Pass an
// empty apiKey to run without the LLM (canned responses only).
func NewNarrativeService(upstream storymap.API, articles repositories.ArticleRepository, apiKey, model string, logger *zap.Logger) NarrativeService {
	var claude messagesAPI
	if apiKey != "" {
		claude = anthropic.NewClient(apiKey)
	}
	return &narrativeService{
		upstream: upstream,
		articles: articles,
		claude:   claude,
		model:    model,
		logger:   logger.Named("narrative"),
	}
}

var _ NarrativeService = (*narrativeService)(nil)

// Stories surfaces recent archive articles as story threads. The database is
// preferred; when degraded it falls back to the upstream service, and when
// both are absent it returns an empty list rather than erroring.
func (s *narrativeService) Stories(ctx context.Context, limit int) []Story {
	if limit < 1 || limit > 50 {
		limit = 10
	}

	page, err := s.articles.List(ctx, models.ArticleFilter{Page: 1, Limit: limit})
	if err == nil && len(page.Articles) > 0 {
		return storiesFromArticles(page.Articles)
	}

	res := s.upstream.GetArticles(ctx, limit, 0)
	if res.Err {
		s.logger.Debug("No story source available", zap.Int("status", res.Status))
		return []Story{}
	}
	return storiesFromArticles(res.Data.Articles)
}

// Categories returns the archive's curated story categories.
func (s *narrativeService) Categories() []string {
	return []string{"politics", "war", "civil rights", "society", "international", "science", "crime"}
}

// Explore searches the archive for a theme and, when the LLM is configured,
// asks it for a narrative treatment grounded in the matching articles.
func (s *narrativeService) Explore(ctx context.Context, req ExploreRequest) ExploreResult {
	limit := req.Limit
	if limit < 1 || limit > 20 {
		limit = 10
	}

	result := ExploreResult{Theme: req.Theme, Stories: []Story{}}

	res := s.upstream.SearchArticles(ctx, req.Theme, limit)
	if !res.Err {
		result.Stories = storiesFromArticles(res.Data.Results)
	}

	result.Narrative = s.narrativeFor(ctx, req.Theme, result.Stories)
	return result
}

// Chat handles one turn of a narrative chat session, minting a session ID
// for new sessions.
func (s *narrativeService) Chat(ctx context.Context, sessionID, message string) NarrativeChatResult {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if s.claude == nil {
		return NarrativeChatResult{
			SessionID: sessionID,
			Response: "Narrative chat is running without its language model. I can still point you at the " +
				"archive: try the search and entity endpoints, or ask the main chat about a topic like " +
				"Roosevelt or the war years.",
		}
	}

	response, err := s.complete(ctx, message)
	if err != nil {
		s.logger.Warn("Narrative chat completion failed", zap.Error(err))
		return NarrativeChatResult{
			SessionID: sessionID,
			Response:  "The narrative service is temporarily unavailable. Please try again shortly.",
		}
	}
	return NarrativeChatResult{SessionID: sessionID, Response: response}
}

// Refresh forces upstream re-discovery, reporting the winning base URL.
func (s *narrativeService) Refresh(ctx context.Context) RefreshResult {
	url := s.upstream.Discover(ctx)
	return RefreshResult{
		Upstream:  url,
		Refreshed: url != storymap.Unavailable,
		Timestamp: time.Now().UTC(),
	}
}

func (s *narrativeService) narrativeFor(ctx context.Context, theme string, stories []Story) string {
	if len(stories) == 0 {
		return fmt.Sprintf("No archive coverage found for %q yet. Try a broader theme or another era.", theme)
	}
	if s.claude == nil {
		return fmt.Sprintf("The archive holds %d articles related to %q. Review the story threads below; "+
			"each links back to original period reporting.", len(stories), theme)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n\nArticles:\n", theme)
	for _, st := range stories {
		fmt.Fprintf(&b, "- %s (%s): %s\n", st.Title, st.Year, st.Summary)
	}
	b.WriteString("\nSuggest a documentary narrative arc connecting these articles.")

	response, err := s.complete(ctx, b.String())
	if err != nil {
		s.logger.Warn("Narrative exploration completion failed", zap.Error(err))
		return fmt.Sprintf("The archive holds %d articles related to %q. Review the story threads below.",
			len(stories), theme)
	}
	return response
}

func (s *narrativeService) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.claude.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(s.model),
		System:    narrativeSystemPrompt,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

func storiesFromArticles(articles []models.Article) []Story {
	stories := make([]Story, 0, len(articles))
	for _, a := range articles {
		st := Story{
			ID:       a.ID,
			Title:    a.Title,
			Summary:  excerpt(a.Content, 200),
			Category: a.Category,
		}
		if a.PublicationDate != nil {
			st.Year = a.PublicationDate.Format("2006")
		}
		if a.QualityScore > 0 {
			score := a.QualityScore
			st.DocumentaryPotential = &score
		}
		stories = append(stories, st)
	}
	return stories
}

func excerpt(content string, maxLen int) string {
	content = strings.TrimSpace(content)
	if len(content) <= maxLen {
		return content
	}
	cut := content[:maxLen]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
