package store

// Query selects messages visible to a viewer.
// Zero-valued fields do not filter.
type Query struct {
	// Viewer is required. Only messages with a state row for Viewer match.
	Viewer UserID
	// Status filters the viewer's state row.
	Status Status
	// Type filters the message type.
	Type MessageType
	// ConversationGroup filters by group key.
	ConversationGroup string
	// UnreadOnly keeps only messages with IsRead false.
	UnreadOnly bool
}

// ListOptions paginates a query. A Limit of zero or less means unbounded.
type ListOptions struct {
	Offset int
	Limit  int
}

// Bounded reports whether a limit applies.
func (o ListOptions) Bounded() bool { return o.Limit > 0 }

// Validate checks the query.
func (q Query) Validate() error {
	if !q.Viewer.Valid() {
		return ErrInvalidID
	}
	if q.Status != "" && !q.Status.IsValid() {
		return ErrInvalidStatus
	}
	if q.Type != "" && !q.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// Match reports whether m with the viewer's state st satisfies q.
// Backends that filter in process use it; SQL and Mongo backends express
// the same predicate natively.
func (q Query) Match(m *Message, st *MessageState) bool {
	if m == nil || st == nil || st.UserID != q.Viewer || st.MessageID != m.ID {
		return false
	}
	if q.Status != "" && st.Status != q.Status {
		return false
	}
	if q.Type != "" && m.Type != q.Type {
		return false
	}
	if q.ConversationGroup != "" && m.ConversationGroup != q.ConversationGroup {
		return false
	}
	if q.UnreadOnly && m.IsRead {
		return false
	}
	return true
}

// ConversationQuery is the visible set used by the conversation queries.
func ConversationQuery(viewer UserID) Query {
	return Query{Viewer: viewer, Status: StatusActive, Type: TypeInbox}
}
