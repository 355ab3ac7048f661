package domain

// VideoID is the opaque video identifier carried in watch URLs. It is stable
// for the lifetime of a page view; navigation hands out a new one.
type VideoID string

func (v VideoID) String() string {
	return string(v)
}

func (v VideoID) IsZero() bool {
	return v == ""
}
