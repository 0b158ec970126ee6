package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"housingcore/pkg/domain"
)

func messageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyMessage
	}
	return text, nil
}

func findEnquiry(view domain.RuleView, ticketID int) (Enquiry, error) {
	e, ok := view.FindEnquiry(ticketID)
	if !ok {
		return Enquiry{}, fmt.Errorf("ticket %d: %w", ticketID, domain.ErrTicketNotFound)
	}
	return e, nil
}

func ticketEntityID(id int) string { return strconv.Itoa(id) }

// Post opens a ticket with the next ticket number.
func (s *Service) Post(ctx context.Context, authorID, projectName, text string) (Enquiry, Result, error) {
	var created Enquiry
	res, err := s.mutate(ctx, "post_enquiry", authorID, func(tx domain.Transaction) (string, error) {
		body, err := messageText(text)
		if err != nil {
			return "", err
		}
		author, err := findPerson(tx, authorID)
		if err != nil {
			return "", err
		}
		created, err = tx.InsertEnquiry(Enquiry{
			AuthorID:    author.ID,
			ProjectName: projectName,
			Messages:    []Message{{AuthorID: author.ID, Text: body}},
		})
		return ticketEntityID(created.ID), err
	})
	return created, res, err
}

func appendMessage(tx domain.Transaction, ticketID int, authorID, body string) (Enquiry, error) {
	return tx.UpdateEnquiry(ticketID, func(e *Enquiry) error {
		e.Messages = append(e.Messages, Message{AuthorID: authorID, Text: body, SentAt: tx.Now()})
		return nil
	})
}

// Reply appends a message to a ticket. It checks only that the author
// exists; Respond applies the staff reply permission.
func (s *Service) Reply(ctx context.Context, ticketID int, authorID, text string) (Enquiry, Result, error) {
	var updated Enquiry
	res, err := s.mutate(ctx, "reply_enquiry", authorID, func(tx domain.Transaction) (string, error) {
		body, err := messageText(text)
		if err != nil {
			return ticketEntityID(ticketID), err
		}
		author, err := findPerson(tx, authorID)
		if err != nil {
			return ticketEntityID(ticketID), err
		}
		updated, err = appendMessage(tx, ticketID, author.ID, body)
		return ticketEntityID(ticketID), err
	})
	return updated, res, err
}

// ticketContext loads the ticket, its project and the acting person.
func ticketContext(view domain.RuleView, ticketID int, personID string) (Enquiry, Project, Person, error) {
	e, err := findEnquiry(view, ticketID)
	if err != nil {
		return Enquiry{}, Project{}, Person{}, err
	}
	project, err := findProject(view, e.ProjectName)
	if err != nil {
		return Enquiry{}, Project{}, Person{}, err
	}
	person, err := findPerson(view, personID)
	if err != nil {
		return Enquiry{}, Project{}, Person{}, err
	}
	return e, project, person, nil
}

// Respond appends a staff answer. The responder must pass CanReply.
func (s *Service) Respond(ctx context.Context, ticketID int, staffID, text string) (Enquiry, Result, error) {
	var updated Enquiry
	res, err := s.mutate(ctx, "respond_enquiry", staffID, func(tx domain.Transaction) (string, error) {
		id := ticketEntityID(ticketID)
		body, err := messageText(text)
		if err != nil {
			return id, err
		}
		e, project, staff, err := ticketContext(tx, ticketID, staffID)
		if err != nil {
			return id, err
		}
		if !e.CanReply(staff, project) {
			return id, fmt.Errorf("reply to ticket %d: %w", ticketID, domain.ErrPermissionDenied)
		}
		updated, err = appendMessage(tx, ticketID, staff.ID, body)
		return id, err
	})
	return updated, res, err
}

// EditOpening rewrites the opening question while no staff reply exists.
func (s *Service) EditOpening(ctx context.Context, ticketID int, editorID, text string) (Enquiry, Result, error) {
	var updated Enquiry
	res, err := s.mutate(ctx, "edit_enquiry", editorID, func(tx domain.Transaction) (string, error) {
		id := ticketEntityID(ticketID)
		body, err := messageText(text)
		if err != nil {
			return id, err
		}
		e, err := findEnquiry(tx, ticketID)
		if err != nil {
			return id, err
		}
		if !e.CanEdit(editorID) {
			return id, fmt.Errorf("edit ticket %d: %w", ticketID, domain.ErrPermissionDenied)
		}
		updated, err = tx.UpdateEnquiry(ticketID, func(e *Enquiry) error {
			e.Messages[0].Text = body
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// DeleteEnquiry removes a ticket on the author's request while no staff
// reply exists. The ticket number is not reissued.
func (s *Service) DeleteEnquiry(ctx context.Context, ticketID int, authorID string) (Result, error) {
	return s.mutate(ctx, "delete_enquiry", authorID, func(tx domain.Transaction) (string, error) {
		id := ticketEntityID(ticketID)
		e, err := findEnquiry(tx, ticketID)
		if err != nil {
			return id, err
		}
		if !e.CanEdit(authorID) {
			return id, fmt.Errorf("delete ticket %d: %w", ticketID, domain.ErrPermissionDenied)
		}
		return id, tx.DeleteEnquiry(ticketID)
	})
}

// Candidate summarises one ticket offered during disambiguation.
type Candidate struct {
	TicketID  int
	CreatedAt time.Time
	Opening   string
}

// LookupResult holds the tickets matching an (author, project) lookup,
// newest first.
type LookupResult struct {
	matches []Enquiry
}

// Len returns the number of matching tickets.
func (r LookupResult) Len() int { return len(r.matches) }

// Single returns the ticket when exactly one matched.
func (r LookupResult) Single() (Enquiry, bool) {
	if len(r.matches) != 1 {
		return Enquiry{}, false
	}
	return r.matches[0], true
}

// Ambiguous reports whether the caller must pick among several tickets.
func (r LookupResult) Ambiguous() bool { return len(r.matches) > 1 }

// Candidates lists the matches for display, newest first.
func (r LookupResult) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.matches))
	for _, e := range r.matches {
		out = append(out, Candidate{TicketID: e.ID, CreatedAt: e.CreatedAt, Opening: e.Opening()})
	}
	return out
}

// Select returns the n-th candidate, counting from 1 at the newest.
func (r LookupResult) Select(n int) (Enquiry, error) {
	if n < 1 || n > len(r.matches) {
		return Enquiry{}, fmt.Errorf("pick %d of %d: %w", n, len(r.matches), domain.ErrInvalidSelection)
	}
	return r.matches[n-1], nil
}

// Lookup finds the tickets authorID opened about projectName.
func (s *Service) Lookup(ctx context.Context, authorID, projectName string) (LookupResult, error) {
	var out LookupResult
	err := s.read(ctx, "lookup_enquiry", func(view domain.TransactionView) error {
		key := domain.ProjectKey(projectName)
		for _, e := range view.EnquiriesByAuthor(authorID) {
			if domain.ProjectKey(e.ProjectName) == key {
				out.matches = append(out.matches, e)
			}
		}
		return nil
	})
	return out, err
}

// CanEdit reports whether editorID may edit or delete the ticket.
func (s *Service) CanEdit(ctx context.Context, ticketID int, editorID string) (bool, error) {
	var ok bool
	err := s.read(ctx, "can_edit_enquiry", func(view domain.TransactionView) error {
		e, err := findEnquiry(view, ticketID)
		if err != nil {
			return err
		}
		ok = e.CanEdit(editorID)
		return nil
	})
	return ok, err
}

// CanView reports whether viewerID may read the ticket.
func (s *Service) CanView(ctx context.Context, viewerID string, ticketID int) (bool, error) {
	var ok bool
	err := s.read(ctx, "can_view_enquiry", func(view domain.TransactionView) error {
		e, project, viewer, err := ticketContext(view, ticketID, viewerID)
		if err != nil {
			return err
		}
		ok = e.CanView(viewer, project)
		return nil
	})
	return ok, err
}

// CanReply reports whether viewerID may answer the ticket as staff.
func (s *Service) CanReply(ctx context.Context, viewerID string, ticketID int) (bool, error) {
	var ok bool
	err := s.read(ctx, "can_reply_enquiry", func(view domain.TransactionView) error {
		e, project, viewer, err := ticketContext(view, ticketID, viewerID)
		if err != nil {
			return err
		}
		ok = e.CanReply(viewer, project)
		return nil
	})
	return ok, err
}

// VisibleEnquiries lists every ticket viewerID may read, newest first.
func (s *Service) VisibleEnquiries(ctx context.Context, viewerID string) ([]Enquiry, error) {
	var out []Enquiry
	err := s.read(ctx, "visible_enquiries", func(view domain.TransactionView) error {
		viewer, err := findPerson(view, viewerID)
		if err != nil {
			return err
		}
		for _, e := range view.ListEnquiries() {
			project, ok := view.FindProject(e.ProjectName)
			if ok && e.CanView(viewer, project) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
