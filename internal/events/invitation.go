package events

// InvitationEmail is the payload of a TypeInvitationEmail entry.
type InvitationEmail struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	BranchName string `json:"branch_name"`
	Resend     bool   `json:"resend,omitempty"`
}
