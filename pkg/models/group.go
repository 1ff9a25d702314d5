// Package models contains domain models for ticketsim.
package models

// Group is one cluster produced by a grouping run.
type Group struct {
	Category       string   `json:"category,omitempty"`
	Members        []Ticket `json:"members"`
	CommonKeywords []string `json:"common_keywords"`
	ID             int      `json:"group_id"`
	Cohesion       float64  `json:"cohesion"`
}

// Size returns the number of member tickets.
func (g *Group) Size() int {
	return len(g.Members)
}

// MemberKeys returns member ticket keys in group order.
func (g *Group) MemberKeys() []string {
	keys := make([]string, len(g.Members))
	for i, m := range g.Members {
		keys[i] = m.Key
	}
	return keys
}

// GroupingRun is the output of partitioning a ticket set.
type GroupingRun struct {
	Groups     []Group `json:"groups"`
	Threshold  float64 `json:"threshold"`
	TicketCnt  int     `json:"ticket_count"`
	Singletons int     `json:"singletons"`
}
