package model

// Candidate is a possible match proposed by the reasoning service. The
// service's response schema is not contractually guaranteed, so every field
// is best-effort.
type Candidate struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Score        float64  `json:"score"`
	Reasons      []string `json:"reasons,omitempty"`
	OwnerContact string   `json:"owner_contact,omitempty"`
}

// MatchResult pairs a ranked candidate with its anonymized contact and the
// per-channel delivery outcome of the notification sent on its behalf.
type MatchResult struct {
	Match         Candidate         `json:"match"`
	MaskedContact string            `json:"masked_contact"`
	NotifStatus   map[string]string `json:"notif_status"`
}
