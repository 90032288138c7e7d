package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		want     bool
	}{
		{RequestStatusPending, RequestStatusUnderReview, true},
		{RequestStatusPending, RequestStatusApproved, true},
		{RequestStatusPending, RequestStatusRejected, true},
		{RequestStatusPending, RequestStatusCompleted, false},
		{RequestStatusUnderReview, RequestStatusInterviewScheduled, true},
		{RequestStatusUnderReview, RequestStatusApproved, true},
		{RequestStatusUnderReview, RequestStatusPending, false},
		{RequestStatusInterviewScheduled, RequestStatusApproved, true},
		{RequestStatusInterviewScheduled, RequestStatusRejected, true},
		{RequestStatusInterviewScheduled, RequestStatusUnderReview, false},
		{RequestStatusApproved, RequestStatusCompleted, true},
		{RequestStatusApproved, RequestStatusRejected, false},
		{RequestStatusRejected, RequestStatusUnderReview, true},
		{RequestStatusRejected, RequestStatusPending, true},
		{RequestStatusRejected, RequestStatusApproved, false},
		{RequestStatusCompleted, RequestStatusPending, false},
		{RequestStatusWithdrawn, RequestStatusPending, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatusesHaveNoTargets(t *testing.T) {
	for _, status := range []RequestStatus{RequestStatusCompleted, RequestStatusWithdrawn} {
		if targets := AllowedTargets(status); len(targets) != 0 {
			t.Errorf("%s should be terminal, got targets %v", status, targets)
		}
	}
}

func TestAllTransitionTargetsAreValid(t *testing.T) {
	for from := range transitions {
		for _, to := range AllowedTargets(from) {
			if !to.Valid() {
				t.Errorf("transition table contains unknown target %s from %s", to, from)
			}
		}
	}
}

func TestIsLive(t *testing.T) {
	live := []RequestStatus{
		RequestStatusPending,
		RequestStatusUnderReview,
		RequestStatusInterviewScheduled,
		RequestStatusApproved,
	}
	for _, status := range live {
		if !status.IsLive() {
			t.Errorf("%s should be live", status)
		}
	}

	dead := []RequestStatus{RequestStatusRejected, RequestStatusWithdrawn, RequestStatusCompleted}
	for _, status := range dead {
		if status.IsLive() {
			t.Errorf("%s should not be live", status)
		}
	}
}

func TestRequestStatusValid(t *testing.T) {
	if RequestStatus("bogus").Valid() {
		t.Error("unknown status reported valid")
	}
	if !RequestStatusPending.Valid() {
		t.Error("pending reported invalid")
	}
}
