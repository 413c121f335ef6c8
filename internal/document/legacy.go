package document

import (
	"fmt"
	"strings"
)

// CalendarTypeForInteraction maps a legacy interaction type onto the
// calendar event types. Types without a counterpart become other.
func CalendarTypeForInteraction(t string) CalendarType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "meeting":
		return CalendarMeeting
	case "call", "phone":
		return CalendarCall
	case "email":
		return CalendarEmail
	}
	return CalendarOther
}

// interactionStatus resolves the lifecycle state of a legacy interaction
// and, for completed ones, when it happened. An explicit cancel marker wins.
// A completion marker without occurredAt falls back to updatedAt.
func interactionStatus(in Interaction) (Status, string) {
	switch strings.ToLower(strings.TrimSpace(in.Status)) {
	case "canceled", "cancelled":
		return StatusCanceled, ""
	case "completed", "done":
		return StatusCompleted, firstNonEmpty(in.OccurredAt, in.UpdatedAt, in.CreatedAt)
	}
	if in.OccurredAt != "" {
		return StatusCompleted, in.OccurredAt
	}
	return StatusScheduled, ""
}

// CalendarEventFromInteraction reshapes a legacy interaction into the
// calendar event it migrates to. The id is kept so the migration is
// idempotent and links can be retargeted.
func CalendarEventFromInteraction(in Interaction) CalendarEvent {
	status, occurredAt := interactionStatus(in)
	ce := CalendarEvent{
		ID:              in.ID,
		Type:            CalendarTypeForInteraction(in.Type),
		Status:          status,
		OccurredAt:      occurredAt,
		Summary:         in.Summary,
		Description:     in.Notes,
		ScheduledFor:    firstNonEmpty(in.ScheduledFor, in.OccurredAt, in.CreatedAt),
		DurationMinutes: in.DurationMinutes,
		Location:        in.Location,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}
	if ce.Summary == "" {
		ce.Summary = fmt.Sprintf("%s interaction", strings.TrimSpace(in.Type))
		if strings.TrimSpace(in.Type) == "" {
			ce.Summary = "Interaction"
		}
	}
	return ce
}

// CalendarEventFromAudit reshapes a legacy audit into an audit calendar event.
func CalendarEventFromAudit(a Audit) CalendarEvent {
	ce := CalendarEvent{
		ID:           a.ID,
		Type:         CalendarAudit,
		Status:       StatusScheduled,
		Summary:      fmt.Sprintf("Audit for account %s", a.AccountID),
		Description:  a.Notes,
		ScheduledFor: firstNonEmpty(a.OccurredAt, a.CreatedAt),
		AuditData: &AuditData{
			AccountID:     a.AccountID,
			Score:         a.Score,
			FloorsVisited: a.FloorsVisited,
		},
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	switch {
	case a.Canceled:
		ce.Status = StatusCanceled
	case a.OccurredAt != "":
		ce.Status = StatusCompleted
		ce.OccurredAt = a.OccurredAt
	}
	return ce
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
