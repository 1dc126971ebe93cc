package models

// PageState is the lifecycle state of a PageNode
type PageState string

const (
	PageStateNotAttempted PageState = "not_attempted" // Created, never fetched
	PageStateFiltered     PageState = "filtered"      // Rejected by an admission filter
	PageStateError        PageState = "error"         // Fetch or parse failed
	PageStateLoaded       PageState = "loaded"        // Metrics present
)

// String implements fmt.Stringer for logging
func (s PageState) String() string {
	if s == "" {
		return string(PageStateNotAttempted)
	}
	return string(s)
}

// IsValid returns true if the state is a known value
func (s PageState) IsValid() bool {
	switch s {
	case PageStateNotAttempted, PageStateFiltered, PageStateError, PageStateLoaded:
		return true
	}
	return false
}

// IsFinal reports whether no further transition is permitted from s.
func (s PageState) IsFinal() bool {
	switch s {
	case PageStateFiltered, PageStateError, PageStateLoaded:
		return true
	}
	return false
}

// AllPageStates lists states in lifecycle order, for summaries and metric labels.
func AllPageStates() []PageState {
	return []PageState{PageStateNotAttempted, PageStateFiltered, PageStateError, PageStateLoaded}
}
