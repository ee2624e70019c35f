package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/logging"
	"github.com/storymine-hq/storymine-engine/pkg/models"
	"github.com/storymine-hq/storymine-engine/pkg/storymap"
)

const maxChatSources = 5

// ChatResponse is the external chat contract.
type ChatResponse struct {
	Response string           `json:"response"`
	Sources  []models.Article `json:"sources"`
}

// ChatService answers archive chat messages.
type ChatService interface {
	Respond(ctx context.Context, message string) ChatResponse
}

type chatService struct {
	upstream storymap.API
	logger   *zap.Logger
}

// NewChatService creates the chat responder backed by StoryMap search.
func NewChatService(upstream storymap.API, logger *zap.Logger) ChatService {
	return &chatService{upstream: upstream, logger: logger.Named("chat")}
}

var _ ChatService = (*chatService)(nil)

// topicRule pairs a keyword predicate with its canned response. Rules are
// evaluated in order and the first match wins, so put the most specific
// topics first.
type topicRule struct {
	keywords []string
	response string
}

func (r topicRule) matches(message string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

const rooseveltResponse = "Franklin D. Roosevelt served as President from 1933 until his death in 1945, " +
	"the only president elected to four terms. The archive covers his presidency extensively: the New Deal " +
	"programs that reshaped American life during the Depression, his unprecedented third-term election in 1940, " +
	"the Atlantic Charter meeting with Churchill, and his \"date which will live in infamy\" address after " +
	"Pearl Harbor. Try searching for \"Roosevelt\" or \"New Deal\" to see the original coverage."

var topicRules = []topicRule{
	{
		keywords: []string{"roosevelt", "fdr"},
		response: rooseveltResponse,
	},
	{
		keywords: []string{"civil rights"},
		response: "The archive's civil rights coverage traces the movement's early years: A. Philip Randolph's " +
			"threatened march on Washington in 1941, the fight against discrimination in defense industries, and " +
			"the slow desegregation of the armed forces. Contemporary reporting often framed these stories very " +
			"differently than we remember them today, which makes the original articles especially revealing.",
	},
	{
		keywords: []string{"world war"},
		response: "World War II dominates the archive's pages from the late 1930s onward: the fall of France, " +
			"Lend-Lease debates, Pearl Harbor, rationing and war production on the home front, and the long " +
			"campaigns in Europe and the Pacific. Search for a specific battle, year, or home-front topic and " +
			"I can pull up the original reporting.",
	},
	{
		keywords: []string{"president", "election"},
		response: "The archive covers every presidential election of its era, from campaign speeches and " +
			"conventions to election-night returns. Ask about a specific candidate or election year and I'll " +
			"find the contemporary coverage.",
	},
}

const fallbackResponse = "I can help you explore this historical newspaper archive. Ask me about people, " +
	"places, or events from the period - for example Roosevelt, the world war, civil rights, or an election - " +
	"and I'll find the original reporting."

// Respond searches the archive for the message and synthesizes an answer from
// the results. When no results are available (including when StoryMap is
// offline), it falls back to the ordered topic rules; the first matching rule
// wins.
func (s *chatService) Respond(ctx context.Context, message string) ChatResponse {
	trimmed := strings.TrimSpace(message)
	// Lowercasing is for keyword matching only; the user's own words are
	// echoed back as typed.
	normalized := strings.ToLower(trimmed)

	res := s.upstream.SearchArticles(ctx, message, maxChatSources)
	if !res.Err && len(res.Data.Results) > 0 {
		sources := res.Data.Results
		if len(sources) > maxChatSources {
			sources = sources[:maxChatSources]
		}
		return ChatResponse{
			Response: synthesizeFromArticles(trimmed, sources),
			Sources:  sources,
		}
	}
	if res.Err {
		s.logger.Debug("Chat search unavailable, using topic rules",
			zap.Int("status", res.Status),
			zap.String("message", logging.TruncateString(normalized, 80)))
	}

	for _, rule := range topicRules {
		if rule.matches(normalized) {
			return ChatResponse{Response: rule.response, Sources: []models.Article{}}
		}
	}
	return ChatResponse{Response: fallbackResponse, Sources: []models.Article{}}
}

// synthesizeFromArticles lists the matching articles behind a templated
// preamble.
func synthesizeFromArticles(query string, articles []models.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d article", len(articles))
	if len(articles) != 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, " in the archive related to %q:\n", query)
	for i, a := range articles {
		fmt.Fprintf(&b, "\n%d. %s", i+1, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, " (%s", a.Source)
			if a.PublicationDate != nil {
				fmt.Fprintf(&b, ", %s", a.PublicationDate.Format("2006-01-02"))
			}
			b.WriteString(")")
		} else if a.PublicationDate != nil {
			fmt.Fprintf(&b, " (%s)", a.PublicationDate.Format("2006-01-02"))
		}
	}
	b.WriteString("\n\nAsk about any of these stories for more detail.")
	return b.String()
}
