package directory

import "errors"

var (
	// ErrUpstream indicates the listing endpoint answered with a non-success status.
	ErrUpstream = errors.New("directory: upstream status")
	// ErrDecode indicates the listing body could not be decoded.
	ErrDecode = errors.New("directory: decode listing")
)

// User is a read-only copy of a record served by the listing endpoint.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Query selects one window of the listing.
type Query struct {
	Start    int
	Limit    int
	NameLike string
}

// Listing is one page of users plus the collection size reported out-of-band.
type Listing struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	TotalKnown bool   `json:"total_known"`
}
