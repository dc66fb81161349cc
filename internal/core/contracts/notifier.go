package contracts

import "context"

// VisitorNotification asks a visitor to come back to an answered ticket.
type VisitorNotification struct {
	TicketID    string `json:"ticketId"`
	To          string `json:"to"`
	VisitorName string `json:"visitorName"`
	TenantName  string `json:"tenantName"`
	ResumeURL   string `json:"resumeUrl"`
}

type Notifier interface {
	NotifyVisitor(ctx context.Context, n VisitorNotification) error
}
