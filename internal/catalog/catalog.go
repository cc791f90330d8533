// Package catalog holds the built-in interview problem bank.
package catalog

import (
	"sort"
	"strings"

	"github.com/pairprep/backend/internal/room"
)

// Difficulty of a problem.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Problem is one entry of the bank.
type Problem struct {
	ID          string                   `json:"id"`
	Slug        string                   `json:"titleSlug"`
	Title       string                   `json:"title"`
	Difficulty  Difficulty               `json:"difficulty"`
	Description string                   `json:"description"`
	Examples    []string                 `json:"examples"`
	Constraints []string                 `json:"constraints"`
	StarterCode map[room.Language]string `json:"starterCode"`
	Topics      []string                 `json:"topicTags,omitempty"`
}

// Summary is the list view of a problem.
type Summary struct {
	ID         string     `json:"id"`
	Slug       string     `json:"titleSlug"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Topics     []string   `json:"topicTags,omitempty"`
}

// Catalog is an immutable, slug-indexed problem bank. Safe for concurrent use.
type Catalog struct {
	bySlug map[string]Problem
	order  []string
}

// New builds a catalog from problems. Later duplicates of a slug are ignored.
func New(problems []Problem) *Catalog {
	c := &Catalog{bySlug: make(map[string]Problem, len(problems))}
	for _, p := range problems {
		if _, dup := c.bySlug[p.Slug]; dup || p.Slug == "" {
			continue
		}
		c.bySlug[p.Slug] = p
		c.order = append(c.order, p.Slug)
	}
	return c
}

// Default returns the built-in bank.
func Default() *Catalog {
	return New(builtin)
}

// Get returns the problem for slug.
func (c *Catalog) Get(slug string) (Problem, bool) {
	p, ok := c.bySlug[slug]
	return p, ok
}

// Has reports whether slug is known.
func (c *Catalog) Has(slug string) bool {
	_, ok := c.bySlug[slug]
	return ok
}

// Starter returns the starter code for slug in lang. It implements room.StarterSource.
func (c *Catalog) Starter(slug string, lang room.Language) (string, bool) {
	p, ok := c.bySlug[slug]
	if !ok {
		return "", false
	}
	code, ok := p.StarterCode[lang]
	return code, ok
}

// List returns summaries in bank order, filtered by a case-insensitive query over
// title, difficulty and topics. An empty query matches everything.
func (c *Catalog) List(query string) []Summary {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Summary, 0, len(c.order))
	for _, slug := range c.order {
		p := c.bySlug[slug]
		if q != "" && !p.matches(q) {
			continue
		}
		out = append(out, Summary{ID: p.ID, Slug: p.Slug, Title: p.Title, Difficulty: p.Difficulty, Topics: p.Topics})
	}
	return out
}

// Slugs returns every slug, sorted.
func (c *Catalog) Slugs() []string {
	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}

func (p Problem) matches(q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(string(p.Difficulty)), q) {
		return true
	}
	for _, t := range p.Topics {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
