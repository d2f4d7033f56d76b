package session

import (
	"sync"

	"starlit.dev/newsflow/internal/feed"
)

// Result is one fetched page handed to the store for reconciliation.
type Result struct {
	Articles []feed.Article
	NextPage string
}

// Snapshot is a copy of the accumulated state safe to render.
type Snapshot struct {
	Articles []feed.Article
	NewKeys  map[string]struct{}
	NextPage string
}

// Token identifies one issued fetch. Tokens increase monotonically; only the
// latest issued token may mutate the store, so a slow stale response can
// never clobber a faster later one.
type Token uint64

// Store accumulates fetched articles for one client session: an
// order-preserving, duplicate-free list plus a one-shot "new since last
// merge" marker set. Construct one per session; there is no package-level
// instance.
type Store struct {
	mu       sync.Mutex
	articles []feed.Article
	known    map[string]struct{}
	newKeys  map[string]struct{}
	nextPage string
	latest   Token
}

func NewStore() *Store {
	return &Store{
		known:   make(map[string]struct{}),
		newKeys: make(map[string]struct{}),
	}
}

// Begin issues the next fetch token, superseding all previously issued ones.
func (s *Store) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

// Hydrate reconciles an initial result. Search results are a fresh view:
// they replace the accumulated list wholesale and all count as new. Browse
// results merge additively like any other page. Hydrating the same absorbed
// result twice changes nothing.
func (s *Store) Hydrate(result Result, searchMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked(result, searchMode)
}

// HydrateIfLatest applies Hydrate only when token is still the latest issued
// one, reporting whether it applied.
func (s *Store) HydrateIfLatest(token Token, result Result, searchMode bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.latest {
		return false
	}
	s.hydrateLocked(result, searchMode)
	return true
}

// MergeNextPage prepends the genuinely new subset of a page and resets the
// "new" markers to exactly that subset. Merging an already-absorbed page
// leaves the list unchanged and clears the markers.
func (s *Store) MergeNextPage(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(result)
}

// MergeNextPageIfLatest applies MergeNextPage only when token is still the
// latest issued one, reporting whether it applied.
func (s *Store) MergeNextPageIfLatest(token Token, result Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.latest {
		return false
	}
	s.mergeLocked(result)
	return true
}

// ClearNewMarkers empties the marker set without touching the article list.
// The consuming layer calls this after rendering the markers once; the store
// does not decide when a display cycle ends.
func (s *Store) ClearNewMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newKeys = make(map[string]struct{})
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles := make([]feed.Article, len(s.articles))
	copy(articles, s.articles)

	newKeys := make(map[string]struct{}, len(s.newKeys))
	for key := range s.newKeys {
		newKeys[key] = struct{}{}
	}

	return Snapshot{
		Articles: articles,
		NewKeys:  newKeys,
		NextPage: s.nextPage,
	}
}

func (s *Store) hydrateLocked(result Result, searchMode bool) {
	if searchMode {
		s.replaceLocked(result)
		return
	}

	incoming := s.unseen(result.Articles)
	if len(incoming) == 0 {
		// Already absorbed; keep list and markers as they are.
		s.nextPage = result.NextPage
		return
	}
	s.prependLocked(incoming)
	s.nextPage = result.NextPage
}

func (s *Store) mergeLocked(result Result) {
	incoming := s.unseen(result.Articles)
	s.newKeys = make(map[string]struct{}, len(incoming))
	if len(incoming) > 0 {
		s.prependLocked(incoming)
	}
	s.nextPage = result.NextPage
}

func (s *Store) replaceLocked(result Result) {
	s.articles = nil
	s.known = make(map[string]struct{})
	s.newKeys = make(map[string]struct{})

	incoming := s.unseen(result.Articles)
	if len(incoming) > 0 {
		s.prependLocked(incoming)
	}
	s.nextPage = result.NextPage
}

// unseen filters a batch down to entries whose identity key is not yet
// accumulated, also collapsing duplicates within the batch itself.
func (s *Store) unseen(batch []feed.Article) []feed.Article {
	if len(batch) == 0 {
		return nil
	}

	incoming := make([]feed.Article, 0, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	for _, article := range batch {
		key := article.Key()
		if _, ok := s.known[key]; ok {
			continue
		}
		if _, ok := inBatch[key]; ok {
			continue
		}
		inBatch[key] = struct{}{}
		incoming = append(incoming, article)
	}
	return incoming
}

// prependLocked puts incoming entries ahead of the accumulated list,
// preserving each sub-list's relative order, and marks them new.
func (s *Store) prependLocked(incoming []feed.Article) {
	merged := make([]feed.Article, 0, len(incoming)+len(s.articles))
	merged = append(merged, incoming...)
	merged = append(merged, s.articles...)
	s.articles = merged

	s.newKeys = make(map[string]struct{}, len(incoming))
	for _, article := range incoming {
		key := article.Key()
		s.known[key] = struct{}{}
		s.newKeys[key] = struct{}{}
	}
}
