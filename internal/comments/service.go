// Package comments delegates post commenting to GitHub Issues: one labelled
// issue per post, issue comments as the comment thread.
package comments

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// issueLabel marks issues managed by the comment system.
const issueLabel = "blog-comment"

// Service talks to the GitHub Issues API for a fixed owner/repo. A per-call
// OAuth token (from the logged-in reader) takes precedence over the
// configured static token.
type Service struct {
	owner       string
	repo        string
	staticToken string
	logger      *slog.Logger

	// baseURL overrides the GitHub API endpoint in tests.
	baseURL string
}

// NewService creates a comment service. Empty owner/repo leaves the service
// unconfigured; read and write operations then fail with a descriptive error
// callers can anticipate via IsConfigured.
func NewService(owner, repo, staticToken string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{owner: owner, repo: repo, staticToken: staticToken, logger: logger}
}

// SetBaseURL points the service at an alternate API endpoint (tests).
func (s *Service) SetBaseURL(u string) { s.baseURL = u }

// IsConfigured reports whether an owner and repository are set.
func (s *Service) IsConfigured() bool {
	return s.owner != "" && s.repo != ""
}

// HasWriteAccess reports whether a write would carry a token, given the
// caller-supplied one.
func (s *Service) HasWriteAccess(callerToken string) bool {
	return s.token(callerToken) != ""
}

func (s *Service) token(callerToken string) string {
	if callerToken != "" {
		return callerToken
	}
	return s.staticToken
}

func (s *Service) client(ctx context.Context, token string) *github.Client {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	c := github.NewClient(hc)
	if s.baseURL != "" {
		if u, err := url.Parse(s.baseURL); err == nil {
			c.BaseURL = u
		}
	}
	return c
}

func (s *Service) checkConfigured() error {
	if !s.IsConfigured() {
		return fmt.Errorf("comments: GitHub owner and repo must be configured: %w", apperr.ErrNotConfigured)
	}
	return nil
}

// FindOrCreateIssue returns the number of the issue that collects comments
// for the given post, creating it when absent. Creation requires a token.
func (s *Service) FindOrCreateIssue(ctx context.Context, callerToken, postTitle, postURL string) (int, error) {
	if err := s.checkConfigured(); err != nil {
		return 0, err
	}
	cl := s.client(ctx, s.token(callerToken))

	issues, _, err := cl.Issues.ListByRepo(ctx, s.owner, s.repo, &github.IssueListByRepoOptions{
		Labels:      []string{issueLabel},
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		// Listing failures fall through to creation, the way a transient
		// search failure should not block a new thread.
		s.logger.Warn("comments: issue lookup failed", slog.String("error", err.Error()))
	} else {
		wanted := "Comments for: " + postTitle
		for _, is := range issues {
			t := is.GetTitle()
			if strings.Contains(t, postTitle) || strings.Contains(t, wanted) {
				return is.GetNumber(), nil
			}
		}
	}

	if s.token(callerToken) == "" {
		return 0, fmt.Errorf("comments: a GitHub token is required to create issues: %w", apperr.ErrNotConfigured)
	}

	body := fmt.Sprintf(
		"This issue is used to collect comments for the blog post: [%s](%s)\n\n---\n\n**Please use the comment form on the blog to add comments.**",
		postTitle, postURL)
	created, _, err := cl.Issues.Create(ctx, s.owner, s.repo, &github.IssueRequest{
		Title:  github.Ptr("Comments for: " + postTitle),
		Body:   github.Ptr(body),
		Labels: &[]string{issueLabel},
	})
	if err != nil {
		return 0, fmt.Errorf("comments: create issue: %w", err)
	}
	return created.GetNumber(), nil
}

// Comments returns the issue's comments ordered by creation time ascending.
// A missing issue yields an empty list, not an error.
func (s *Service) Comments(ctx context.Context, callerToken string, issueNumber int) ([]models.Comment, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}
	cl := s.client(ctx, s.token(callerToken))

	ghComments, resp, err := cl.Issues.ListComments(ctx, s.owner, s.repo, issueNumber, &github.IssueListCommentsOptions{
		Sort:        github.Ptr("created"),
		Direction:   github.Ptr("asc"),
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return []models.Comment{}, nil
		}
		return nil, fmt.Errorf("comments: list: %w", err)
	}

	out := make([]models.Comment, 0, len(ghComments))
	for _, c := range ghComments {
		out = append(out, toComment(c))
	}
	return out, nil
}

// AddComment posts a new comment to the issue. It requires a token.
func (s *Service) AddComment(ctx context.Context, callerToken string, issueNumber int, body string) (*models.Comment, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}
	token := s.token(callerToken)
	if token == "" {
		return nil, fmt.Errorf("comments: a GitHub token is required to add comments: %w", apperr.ErrNotConfigured)
	}
	cl := s.client(ctx, token)

	created, _, err := cl.Issues.CreateComment(ctx, s.owner, s.repo, issueNumber, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("comments: add: %w", err)
	}
	c := toComment(created)
	return &c, nil
}

func toComment(c *github.IssueComment) models.Comment {
	return models.Comment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Avatar:    c.GetUser().GetAvatarURL(),
		Content:   c.GetBody(),
		URL:       c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Format(time.RFC3339),
		UpdatedAt: c.GetUpdatedAt().Format(time.RFC3339),
	}
}
