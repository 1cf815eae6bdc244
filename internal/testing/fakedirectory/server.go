// Package fakedirectory serves a json-server style /users listing for tests.
package fakedirectory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/noah-isme/userboard/internal/directory"
)

// Users is the fixture served by default.
var Users = []directory.User{
	{ID: 1, Name: "Leanne Graham", Email: "Sincere@april.biz", Phone: "1-770-736-8031 x56442"},
	{ID: 2, Name: "Ervin Howell", Email: "Shanna@melissa.tv", Phone: "010-692-6593 x09125"},
	{ID: 3, Name: "Clementine Bauch", Email: "Nathan@yesenia.net", Phone: "1-463-123-4447"},
	{ID: 4, Name: "Patricia Lebsack", Email: "Julianne.OConner@kory.org", Phone: "493-170-9623 x156"},
	{ID: 5, Name: "Chelsey Dietrich", Email: "Lucio_Hettinger@annie.ca", Phone: "(254)954-1289"},
	{ID: 6, Name: "Mrs. Dennis Schulist", Email: "Karley_Dach@jasper.info", Phone: "1-477-935-8478 x6430"},
	{ID: 7, Name: "Kurtis Weissnat", Email: "Telly.Hoeger@billy.biz", Phone: "210.067.6132"},
	{ID: 8, Name: "Nicholas Runolfsdottir V", Email: "Sherwood@rosamond.me", Phone: "586.493.6943 x140"},
	{ID: 9, Name: "Glenna Reichert", Email: "Chaim_McDermott@dana.io", Phone: "(775)976-6794 x41206"},
	{ID: 10, Name: "Clementina DuBuque", Email: "Rey.Padberg@karina.biz", Phone: "024-648-3804"},
}

// Server is a controllable listing endpoint.
type Server struct {
	*httptest.Server

	t        testing.TB
	requests atomic.Int32
	mu       sync.Mutex
	status   int
	last     url.Values
	gate     chan struct{}
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{t: t, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// FailWith makes every later request answer with status.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Hold parks every later request until release is called or the caller
// gives up. Release is idempotent and also runs when the test ends.
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
	s.t.Cleanup(release)
	return release
}

// Requests reports how many listing requests were served.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// LastQuery returns the query parameters of the most recent request.
func (s *Server) LastQuery() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.last {
		out[k] = v[0]
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.mu.Lock()
	s.last = r.URL.Query()
	status := s.status
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if r.URL.Path != "/users" {
		http.NotFound(w, r)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	q := r.URL.Query()
	filtered := make([]directory.User, 0, len(Users))
	needle := strings.ToLower(q.Get("name_like"))
	for _, u := range Users {
		if needle == "" || strings.Contains(strings.ToLower(u.Name), needle) {
			filtered = append(filtered, u)
		}
	}
	start, _ := strconv.Atoi(q.Get("_start"))
	limit, err := strconv.Atoi(q.Get("_limit"))
	if err != nil || limit <= 0 {
		limit = len(filtered)
	}
	page := []directory.User{}
	if start < len(filtered) {
		end := start + limit
		if end > len(filtered) {
			end = len(filtered)
		}
		page = filtered[start:end]
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(directory.TotalCountHeader, strconv.Itoa(len(filtered)))
	_ = json.NewEncoder(w).Encode(page)
}
