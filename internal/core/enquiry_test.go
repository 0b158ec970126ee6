package core

import (
	"context"
	"testing"

	"housingcore/pkg/domain"
)

func TestPostAssignsSequentialTicketsNewestFirst(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	first, _, err := svc.Post(ctx, alice, acacia, "Is parking included?")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	second, _, err := svc.Post(ctx, ben, elm, "When is key collection?")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected tickets 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.Opening() != "Is parking included?" || len(first.Messages) != 1 {
		t.Fatalf("unexpected opening: %+v", first)
	}
	all := svc.Store().ListEnquiries()
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest ticket first, got %+v", all)
	}
	_, _, err = svc.Post(ctx, alice, acacia, "   ")
	expectErr(t, err, domain.ErrEmptyMessage)
}

func TestStaffReplyLocksEditing(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	ticket, _, err := svc.Post(ctx, alice, acacia, "Is parking included?")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if ok, _ := svc.CanEdit(ctx, ticket.ID, alice); !ok {
		t.Fatalf("expected author to edit before any reply")
	}
	if _, _, err := svc.Reply(ctx, ticket.ID, alice, "Also, is there a gym?"); err != nil {
		t.Fatalf("author follow-up: %v", err)
	}
	if ok, _ := svc.CanEdit(ctx, ticket.ID, alice); !ok {
		t.Fatalf("expected author follow-ups to keep editing open")
	}
	if _, _, err := svc.Respond(ctx, ticket.ID, mona, "Yes, one lot per unit."); err != nil {
		t.Fatalf("manager reply: %v", err)
	}
	for i := 0; i < 3; i++ {
		ok, err := svc.CanEdit(ctx, ticket.ID, alice)
		if err != nil {
			t.Fatalf("can edit: %v", err)
		}
		if ok {
			t.Fatalf("expected editing locked after staff reply")
		}
		if _, _, err := svc.Reply(ctx, ticket.ID, alice, "Thanks"); err != nil {
			t.Fatalf("reply: %v", err)
		}
	}
	_, _, err = svc.EditOpening(ctx, ticket.ID, alice, "Edited")
	expectErr(t, err, domain.ErrPermissionDenied)
	_, err = svc.DeleteEnquiry(ctx, ticket.ID, alice)
	expectErr(t, err, domain.ErrPermissionDenied)
}

func TestEditAndDeleteBeforeReply(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	ticket, _, err := svc.Post(ctx, alice, acacia, "Is parking included?")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_, _, err = svc.EditOpening(ctx, ticket.ID, ben, "Hijack")
	expectErr(t, err, domain.ErrPermissionDenied)
	edited, _, err := svc.EditOpening(ctx, ticket.ID, alice, "Is covered parking included?")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Opening() != "Is covered parking included?" {
		t.Fatalf("unexpected opening %q", edited.Opening())
	}
	if _, err := svc.DeleteEnquiry(ctx, ticket.ID, alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.CanEdit(ctx, ticket.ID, alice)
	expectErr(t, err, domain.ErrTicketNotFound)

	next, _, err := svc.Post(ctx, alice, acacia, "Another question")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if next.ID != ticket.ID+1 {
		t.Fatalf("expected ticket numbers not to be reused, got %d after %d", next.ID, ticket.ID)
	}
}

func TestLookupDisambiguatesNewestFirst(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	none, err := svc.Lookup(ctx, alice, acacia)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if none.Len() != 0 {
		t.Fatalf("expected no match, got %d", none.Len())
	}

	older, _, err := svc.Post(ctx, alice, acacia, "First question")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, _, err := svc.Post(ctx, alice, elm, "Unrelated"); err != nil {
		t.Fatalf("post: %v", err)
	}
	single, err := svc.Lookup(ctx, alice, "acacia breeze")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got, ok := single.Single(); !ok || got.ID != older.ID {
		t.Fatalf("expected single match %d, got %+v ok=%v", older.ID, got, ok)
	}

	newer, _, err := svc.Post(ctx, alice, acacia, "Second question")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	result, err := svc.Lookup(ctx, alice, acacia)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !result.Ambiguous() {
		t.Fatalf("expected ambiguous lookup")
	}
	if _, ok := result.Single(); ok {
		t.Fatalf("expected no single answer for duplicates")
	}
	candidates := result.Candidates()
	if len(candidates) != 2 || candidates[0].TicketID != newer.ID || candidates[1].Opening != "First question" {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
	if !candidates[0].CreatedAt.After(candidates[1].CreatedAt) {
		t.Fatalf("expected candidates newest first: %+v", candidates)
	}
	picked, err := result.Select(1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if picked.ID != newer.ID {
		t.Fatalf("expected newest ticket %d, got %d", newer.ID, picked.ID)
	}
	for _, n := range []int{0, 3, -1} {
		_, err := result.Select(n)
		expectErr(t, err, domain.ErrInvalidSelection)
	}
}

func TestEnquiryPermissions(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()
	acceptOfficer(t, svc, mona, olivia, acacia)
	ticket, _, err := svc.Post(ctx, alice, acacia, "Question")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	ownQuestion, _, err := svc.Post(ctx, oscar, acacia, "Officer asking as applicant")
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	cases := []struct {
		viewer    string
		ticket    int
		wantView  bool
		wantReply bool
	}{
		{alice, ticket.ID, true, false},
		{ben, ticket.ID, false, false},
		{mona, ticket.ID, true, true},
		{marcus, ticket.ID, false, false},
		{olivia, ticket.ID, true, true},
		{oscar, ticket.ID, false, false},
		{oscar, ownQuestion.ID, true, false},
		{olivia, ownQuestion.ID, true, true},
	}
	for _, tc := range cases {
		view, err := svc.CanView(ctx, tc.viewer, tc.ticket)
		if err != nil {
			t.Fatalf("can view: %v", err)
		}
		reply, err := svc.CanReply(ctx, tc.viewer, tc.ticket)
		if err != nil {
			t.Fatalf("can reply: %v", err)
		}
		if view != tc.wantView || reply != tc.wantReply {
			t.Fatalf("%s on ticket %d: view=%v reply=%v, want view=%v reply=%v", tc.viewer, tc.ticket, view, reply, tc.wantView, tc.wantReply)
		}
	}

	_, _, err = svc.Respond(ctx, ticket.ID, marcus, "Not my project")
	expectErr(t, err, domain.ErrPermissionDenied)
	_, _, err = svc.Respond(ctx, ticket.ID, alice, "Answering myself")
	expectErr(t, err, domain.ErrPermissionDenied)
	answered, _, err := svc.Respond(ctx, ticket.ID, olivia, "Yes")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !answered.HasStaffReply() || answered.Messages[1].AuthorID != olivia {
		t.Fatalf("unexpected thread: %+v", answered.Messages)
	}
	_, err = svc.CanView(ctx, alice, 99)
	expectErr(t, err, domain.ErrTicketNotFound)
	_, _, err = svc.Reply(ctx, 99, alice, "hello")
	expectErr(t, err, domain.ErrTicketNotFound)

	visible, err := svc.VisibleEnquiries(ctx, olivia)
	if err != nil {
		t.Fatalf("visible enquiries: %v", err)
	}
	if len(visible) != 2 || visible[0].ID != ownQuestion.ID {
		t.Fatalf("expected both tickets newest first, got %+v", visible)
	}
	mine, err := svc.VisibleEnquiries(ctx, ben)
	if err != nil {
		t.Fatalf("visible enquiries: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("expected nothing visible to an unrelated applicant, got %d", len(mine))
	}
}
