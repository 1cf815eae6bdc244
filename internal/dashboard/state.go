package dashboard

import (
	"github.com/noah-isme/userboard/internal/directory"
)

// FetchErrorMessage is the only error text a user ever sees.
const FetchErrorMessage = "Error fetching users. Please try again later."

// Status names the render mode of a State.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// State is the fetch state of a dashboard. Exactly one of Idle, Loading,
// Loaded or Failed holds at any time.
type State interface {
	Status() Status
	sealed()
}

// Idle is the state before the first fetch is dispatched.
type Idle struct{}

// Loading means the fetch tagged Seq is in flight.
type Loading struct {
	Seq uint64
}

// Loaded holds the records and collection size of the last successful fetch.
type Loaded struct {
	Users []directory.User
	Total int
}

// Failed holds the user-facing message of the last failed fetch.
type Failed struct {
	Message string
}

func (Idle) Status() Status    { return StatusIdle }
func (Loading) Status() Status { return StatusLoading }
func (Loaded) Status() Status  { return StatusLoaded }
func (Failed) Status() Status  { return StatusFailed }

func (Idle) sealed()    {}
func (Loading) sealed() {}
func (Loaded) sealed()  {}
func (Failed) sealed()  {}

// PageState determines what the next fetch requests.
type PageState struct {
	Page    int
	Search  string
	PerPage int
}

// Query converts the page state into a listing window.
func (p PageState) Query() directory.Query {
	return directory.Query{
		Start:    Offset(p.Page, p.PerPage),
		Limit:    p.PerPage,
		NameLike: p.Search,
	}
}

// Snapshot is a consistent copy of a dashboard taken under its lock.
type Snapshot struct {
	PageState
	State State
	Pager Pager
}

// Loading reports whether a fetch is in flight.
func (s Snapshot) Loading() bool {
	_, ok := s.State.(Loading)
	return ok
}

// Err returns the user-facing error message, empty unless the last fetch failed.
func (s Snapshot) Err() string {
	if f, ok := s.State.(Failed); ok {
		return f.Message
	}
	return ""
}

// Users returns the records of the last successful fetch.
func (s Snapshot) Users() []directory.User {
	if l, ok := s.State.(Loaded); ok {
		return l.Users
	}
	return []directory.User{}
}

// TotalCount returns the collection size of the last successful fetch.
func (s Snapshot) TotalCount() int {
	if l, ok := s.State.(Loaded); ok {
		return l.Total
	}
	return 0
}
