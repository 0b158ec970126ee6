package domain

import "time"

// Message is one entry in an enquiry thread.
type Message struct {
	AuthorID string    `json:"author_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Enquiry is a question thread opened by AuthorID about a project. The first
// message is the opening question.
type Enquiry struct {
	ID          int       `json:"id"`
	Seq         int64     `json:"seq"`
	AuthorID    string    `json:"author_id"`
	ProjectName string    `json:"project_name"`
	CreatedAt   time.Time `json:"created_at"`
	Messages    []Message `json:"messages"`
}

// Opening returns the opening question text.
func (e Enquiry) Opening() string {
	if len(e.Messages) == 0 {
		return ""
	}
	return e.Messages[0].Text
}

// HasStaffReply reports whether anyone other than the author wrote in the thread.
func (e Enquiry) HasStaffReply() bool {
	for _, m := range e.Messages {
		if m.AuthorID != e.AuthorID {
			return true
		}
	}
	return false
}

// CanEdit reports whether editorID may edit the opening message: only the
// author, and only until a staff reply exists.
func (e Enquiry) CanEdit(editorID string) bool {
	return editorID == e.AuthorID && !e.HasStaffReply()
}

// CanView reports whether viewer may read the enquiry about project.
func (e Enquiry) CanView(viewer Person, project Project) bool {
	authored := viewer.ID == e.AuthorID
	switch viewer.Role {
	case RoleManager:
		return authored || viewer.IsManagerOf(project)
	case RoleOfficer:
		return authored || viewer.IsOfficerOf(project)
	default:
		return authored
	}
}

// CanReply reports whether viewer may answer the enquiry as staff. Authors
// never answer their own enquiry.
func (e Enquiry) CanReply(viewer Person, project Project) bool {
	if viewer.ID == e.AuthorID {
		return false
	}
	switch viewer.Role {
	case RoleManager:
		return viewer.IsManagerOf(project)
	case RoleOfficer:
		return viewer.IsOfficerOf(project)
	default:
		return false
	}
}
