// Package search serves the home screen: suggestions, query links and the
// static strips shown under the search bar.
package search

import (
	"net/url"
	"strings"

	"github.com/frudas24/lensdeck/internal/catalog"
)

const queryBase = "https://www.google.com/search?q="

// RecentLister supplies the recent searches list.
type RecentLister interface {
	Recent() []string
}

// Home is the payload for the home screen.
type Home struct {
	Recent       []string              `json:"recent"`
	Schedule     []catalog.Match       `json:"schedule"`
	QuickActions []catalog.QuickAction `json:"quickActions"`
}

// Suggestions is the dropdown state for a given input.
type Suggestions struct {
	Visible bool     `json:"visible"`
	Items   []string `json:"items"`
}

// Service answers home screen queries from a catalog.
type Service struct {
	catalog catalog.Catalog
	recent  RecentLister
}

// NewService returns a home screen service.
func NewService(cat catalog.Catalog, recent RecentLister) *Service {
	return &Service{catalog: cat, recent: recent}
}

// Suggest looks up the suggestion list for text. Empty input hides the list;
// inputs with no table entry show an empty list.
func (s *Service) Suggest(text string) Suggestions {
	if text == "" {
		return Suggestions{Items: []string{}}
	}
	return Suggestions{
		Visible: true,
		Items:   s.catalog.SuggestionsFor(strings.ToLower(text)),
	}
}

// Home returns the recent searches, schedule and quick actions.
func (s *Service) Home() Home {
	h := Home{
		Schedule:     append([]catalog.Match(nil), s.catalog.Schedule...),
		QuickActions: append([]catalog.QuickAction(nil), s.catalog.QuickActions...),
	}
	if s.recent != nil {
		h.Recent = s.recent.Recent()
	} else {
		h.Recent = append([]string(nil), s.catalog.Recent...)
	}
	return h
}

// QueryURL returns the web search link for query.
func QueryURL(query string) string {
	return queryBase + url.QueryEscape(strings.TrimSpace(query))
}
