// Package openkvktest provides an in-process stand-in for the openkvk API.
package openkvktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Item is a raw registration as the API encodes it.
type Item = map[string]any

// SelfHref is the profile reference the fake server assigns to `kvk`.
func SelfHref(kvk string) string {
	return fmt.Sprintf("/v3/openkvk/hoofdvestiging-%s", kvk)
}

// Company builds a listing item with a visiting address and a self link.
func Company(kvk, name, city string) Item {
	item := Item{
		"naam": name,
		"bezoeklocatie": map[string]any{
			"plaats":     city,
			"straat":     "Damrak",
			"huisnummer": 1,
		},
		"sbi": []any{"6201"},
	}
	if kvk != "" {
		item["kvknummer"] = kvk
		item["_links"] = map[string]any{
			"self": map[string]any{"href": SelfHref(kvk)},
		}
	}
	return item
}

type SearchRequest struct {
	City   string
	Page   int
	Size   int
	Fields []string
}

type Server struct {
	*httptest.Server

	// when set, requests without a matching ovio-api-key header get a 401
	ApiKey string

	mu           sync.Mutex
	pages        map[string][][]Item
	pageCounts   map[string]int
	failPages    map[string]map[int]int
	profiles     map[string]Item
	failProfiles map[string]int
	searches     []SearchRequest
	profileHits  map[string]int
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		pages:        map[string][][]Item{},
		pageCounts:   map[string]int{},
		failPages:    map[string]map[int]int{},
		profiles:     map[string]Item{},
		failProfiles: map[string]int{},
		profileHits:  map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetPages replaces the result pages of a city, the declared page count
// defaults to the number of pages.
func (s *Server) SetPages(city string, pages ...[]Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[city] = pages
}

// DeclarePageCount overrides the pageCount returned for a city.
func (s *Server) DeclarePageCount(city string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCounts[city] = n
}

func (s *Server) FailPage(city string, page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPages[city] == nil {
		s.failPages[city] = map[int]int{}
	}
	s.failPages[city][page] = status
}

func (s *Server) SetProfile(href string, profile Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[href] = profile
}

func (s *Server) FailProfile(href string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failProfiles[href] = status
}

// ClearFailures removes every injected page and profile failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPages = map[string]map[int]int{}
	s.failProfiles = map[string]int{}
}

func (s *Server) Searches() []SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SearchRequest(nil), s.searches...)
}

func (s *Server) ProfileHits(href string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileHits[href]
}

func (s *Server) TotalProfileHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.profileHits {
		total += n
	}
	return total
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.ApiKey != "" && r.Header.Get("ovio-api-key") != s.ApiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid api key"})
		return
	}

	switch {
	case r.URL.Path == "/v3/openkvk":
		s.handleSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/v3/openkvk/"):
		s.handleProfile(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := query.Get("filters[bezoeklocatie.plaats]")
	page, _ := strconv.Atoi(query.Get("page"))
	size, _ := strconv.Atoi(query.Get("size"))

	s.mu.Lock()
	s.searches = append(s.searches, SearchRequest{
		City:   city,
		Page:   page,
		Size:   size,
		Fields: query["fields[]"],
	})
	status, failed := s.failPages[city][page]
	pages := s.pages[city]
	pageCount, declared := s.pageCounts[city]
	s.mu.Unlock()

	if failed {
		writeJSON(w, status, map[string]any{"error": "injected failure"})
		return
	}
	if !declared {
		pageCount = len(pages)
	}

	items := []Item{}
	if page >= 1 && page <= len(pages) {
		items = pages[page-1]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_embedded": map[string]any{"bedrijf": items},
		"pageCount": pageCount,
		"size":      size,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	href := r.URL.Path

	s.mu.Lock()
	s.profileHits[href]++
	status, failed := s.failProfiles[href]
	profile, found := s.profiles[href]
	s.mu.Unlock()

	if failed {
		writeJSON(w, status, map[string]any{"error": "injected failure"})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
