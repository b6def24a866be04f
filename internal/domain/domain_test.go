package domain

import "testing"

func TestValidStatus(t *testing.T) {
	for _, s := range Statuses {
		if !ValidStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	for _, s := range []Status{"", "done", "Needs Follow-up", "IN_REVIEW"} {
		if ValidStatus(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestNextStatuses(t *testing.T) {
	cases := []struct {
		from Status
		want []Status
	}{
		{StatusNeedsFollowUp, []Status{StatusInReview}},
		{StatusInReview, []Status{StatusSuccess}},
		{StatusSuccess, nil},
	}
	for _, c := range cases {
		got := NextStatuses(c.from)
		if len(got) != len(c.want) {
			t.Fatalf("NextStatuses(%s) = %v, want %v", c.from, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("NextStatuses(%s) = %v, want %v", c.from, got, c.want)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusNeedsFollowUp, StatusInReview) {
		t.Error("needs_follow_up -> in_review should be allowed")
	}
	if !CanTransition(StatusInReview, StatusSuccess) {
		t.Error("in_review -> success should be allowed")
	}
	for _, c := range [][2]Status{
		{StatusNeedsFollowUp, StatusSuccess},
		{StatusInReview, StatusNeedsFollowUp},
		{StatusSuccess, StatusInReview},
		{StatusSuccess, StatusNeedsFollowUp},
	} {
		if CanTransition(c[0], c[1]) {
			t.Errorf("%s -> %s should be rejected", c[0], c[1])
		}
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := InvalidTransitionError{From: StatusSuccess, To: StatusInReview}
	if err.Error() != "invalid transition success -> in_review" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
