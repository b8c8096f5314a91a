package store

// Counts holds every mailbox counter for one viewer.
type Counts struct {
	// Inbox counts active inbox messages.
	Inbox int64 `msgpack:"inbox"`
	// Invitations counts active invitations.
	Invitations int64 `msgpack:"invitations"`
	// Alerts counts active alerts.
	Alerts int64 `msgpack:"alerts"`
	// Archived counts archived messages of any type.
	Archived int64 `msgpack:"archived"`
	// Trashed counts trashed messages of any type.
	Trashed int64 `msgpack:"trashed"`
	// New counts active unread messages of any type.
	New int64 `msgpack:"new"`
	// Conversations counts distinct active inbox conversation groups.
	Conversations int64 `msgpack:"conversations"`
}

// Clone returns a copy of the counts.
func (c *Counts) Clone() *Counts {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
