// Package search evaluates parsed queries against the annotation index.
package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/metrics"
	"github.com/kozaktomas/photo-gallery/internal/query"
	"go.uber.org/zap"
)

// peopleRelevance is the relevance of every people match.
const peopleRelevance = 1.0

// Result is a matched image and its relevance in [0, 1].
type Result struct {
	ImageID   int64
	Relevance float64
}

// Engine runs searches over the image and person repositories.
type Engine struct {
	images  database.ImageReader
	persons database.PersonReader
	sets    *identity.ImageSets
	log     *zap.Logger
}

func NewEngine(images database.ImageReader, persons database.PersonReader, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		images:  images,
		persons: persons,
		sets:    identity.NewImageSets(persons),
		log:     log,
	}
}

// Search parses text and evaluates the resulting predicate.
func (e *Engine) Search(ctx context.Context, text string) ([]Result, error) {
	p := query.Parse(text)
	e.log.Debug("parsed query",
		zap.String("query", text),
		zap.Strings("people", p.People),
		zap.Bool("require_all", p.RequireAll),
		zap.Strings("excluded", p.Excluded),
		zap.Strings("tags", p.Tags),
		zap.Strings("keywords", p.Keywords))
	return e.SearchPredicate(ctx, p)
}

// SearchPredicate evaluates an already parsed predicate.
func (e *Engine) SearchPredicate(ctx context.Context, p query.Predicate) ([]Result, error) {
	mode := "predicate"
	if p.Fallback() {
		mode = "fallback"
	}
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	switch {
	case len(p.People) > 0:
		results, err := e.SearchByPeople(ctx, p.People, p.RequireAll, p.Excluded)
		if err != nil || len(p.Tags) == 0 {
			return results, err
		}
		return e.restrictToTags(ctx, results, p.Tags)
	case len(p.Tags) > 0:
		results, err := e.SearchByTags(ctx, p.Tags)
		if err != nil || len(p.Excluded) == 0 {
			return results, err
		}
		return e.excludeFromResults(ctx, results, p.Excluded)
	case len(p.Excluded) > 0:
		return e.searchExclusionOnly(ctx, p.Excluded)
	case len(p.Keywords) > 0:
		return e.SearchKeywords(ctx, p.Keywords)
	}
	return nil, nil
}

// SearchByTags returns images with a tag label containing any term.
// Relevance is the best confidence of a tag whose label equals a term, 0 when the
// image only matched by containment.
func (e *Engine) SearchByTags(ctx context.Context, terms []string) ([]Result, error) {
	var m merger
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		hits, err := e.images.FindTagHits(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("find tag %q: %w", term, err)
		}
		for _, h := range hits {
			var relevance float64
			if strings.EqualFold(h.Label, term) {
				relevance = h.Confidence
			}
			m.add(h.ImageID, relevance)
		}
	}
	return m.results(), nil
}

// SearchByPeople returns images containing the named persons. With requireAll every
// name must appear, otherwise any of them. Images of excluded names are removed.
func (e *Engine) SearchByPeople(ctx context.Context, names []string, requireAll bool, excluded []string) ([]Result, error) {
	groups, err := e.resolveNames(ctx, names)
	if err != nil {
		return nil, err
	}

	var base []int64
	if requireAll {
		base, err = e.imagesWithAllGroups(ctx, groups)
	} else {
		base, err = e.sets.ImagesContainingAny(ctx, slices.Concat(groups...))
	}
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, nil
	}

	if len(excluded) > 0 {
		exGroups, err := e.resolveNames(ctx, excluded)
		if err != nil {
			return nil, err
		}
		base, err = e.sets.ImagesExcluding(ctx, base, slices.Concat(exGroups...))
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(base))
	for _, id := range base {
		results = append(results, Result{ImageID: id, Relevance: peopleRelevance})
	}
	return results, nil
}

// SearchKeywords is the fallback: the union of tag and people matches for every keyword.
func (e *Engine) SearchKeywords(ctx context.Context, keywords []string) ([]Result, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	tagResults, err := e.SearchByTags(ctx, keywords)
	if err != nil {
		return nil, err
	}
	peopleResults, err := e.SearchByPeople(ctx, keywords, false, nil)
	if err != nil {
		return nil, err
	}

	var m merger
	for _, r := range tagResults {
		m.add(r.ImageID, r.Relevance)
	}
	for _, r := range peopleResults {
		m.add(r.ImageID, r.Relevance)
	}
	return m.results(), nil
}

// resolveNames maps every name to the IDs of persons whose name contains it.
// A name that matches nobody yields an empty group.
func (e *Engine) resolveNames(ctx context.Context, names []string) ([][]int64, error) {
	groups := make([][]int64, 0, len(names))
	for _, name := range names {
		persons, err := e.persons.FindPersonsByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("find person %q: %w", name, err)
		}
		ids := make([]int64, 0, len(persons))
		for _, p := range persons {
			ids = append(ids, p.ID)
		}
		groups = append(groups, ids)
	}
	return groups, nil
}

// imagesWithAllGroups intersects the images of every name group. An ambiguous name
// is satisfied by any of its persons.
func (e *Engine) imagesWithAllGroups(ctx context.Context, groups [][]int64) ([]int64, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	unambiguous := true
	for _, g := range groups {
		if len(g) == 0 {
			return nil, nil
		}
		if len(g) > 1 {
			unambiguous = false
		}
	}
	if unambiguous {
		return e.sets.ImagesContainingAll(ctx, slices.Concat(groups...))
	}

	var result []int64
	for i, g := range groups {
		imgs, err := e.sets.ImagesContainingAny(ctx, g)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = imgs
			continue
		}
		result = slices.DeleteFunc(result, func(id int64) bool {
			_, found := slices.BinarySearch(imgs, id)
			return !found
		})
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// restrictToTags keeps the people matches that also carry one of the tag terms.
// Relevance comes from the tags.
func (e *Engine) restrictToTags(ctx context.Context, people []Result, terms []string) ([]Result, error) {
	if len(people) == 0 {
		return nil, nil
	}
	tagged, err := e.SearchByTags(ctx, terms)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]struct{}, len(people))
	for _, r := range people {
		found[r.ImageID] = struct{}{}
	}
	return slices.DeleteFunc(tagged, func(r Result) bool {
		_, ok := found[r.ImageID]
		return !ok
	}), nil
}

func (e *Engine) excludeFromResults(ctx context.Context, results []Result, excluded []string) ([]Result, error) {
	groups, err := e.resolveNames(ctx, excluded)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ImageID)
	}
	kept, err := e.sets.ImagesExcluding(ctx, ids, slices.Concat(groups...))
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(results, func(r Result) bool {
		_, found := slices.BinarySearch(kept, r.ImageID)
		return !found
	}), nil
}

func (e *Engine) searchExclusionOnly(ctx context.Context, excluded []string) ([]Result, error) {
	all, err := e.images.ListImageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	groups, err := e.resolveNames(ctx, excluded)
	if err != nil {
		return nil, err
	}
	kept, err := e.sets.ImagesExcluding(ctx, all, slices.Concat(groups...))
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(kept))
	for _, id := range kept {
		results = append(results, Result{ImageID: id, Relevance: peopleRelevance})
	}
	return results, nil
}

// merger keeps the best relevance per image and remembers first-discovery order.
type merger struct {
	order []int64
	best  map[int64]float64
}

func (m *merger) add(imageID int64, relevance float64) {
	if m.best == nil {
		m.best = make(map[int64]float64)
	}
	cur, seen := m.best[imageID]
	if !seen {
		m.order = append(m.order, imageID)
		m.best[imageID] = relevance
		return
	}
	if relevance > cur {
		m.best[imageID] = relevance
	}
}

// results returns images by descending relevance; ties keep discovery order.
func (m *merger) results() []Result {
	if len(m.order) == 0 {
		return nil
	}
	out := make([]Result, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, Result{ImageID: id, Relevance: m.best[id]})
	}
	slices.SortStableFunc(out, func(a, b Result) int {
		switch {
		case a.Relevance > b.Relevance:
			return -1
		case a.Relevance < b.Relevance:
			return 1
		}
		return 0
	})
	return out
}
