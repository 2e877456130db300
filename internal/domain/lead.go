package domain

import (
	"fmt"
	"strings"
	"time"
)

// Lead request statuses
const (
	LeadPending   = "pending"
	LeadContacted = "contacted"
	LeadApproved  = "approved"
	LeadRejected  = "rejected"
)

var validLeadStatuses = map[string]bool{
	LeadPending:   true,
	LeadContacted: true,
	LeadApproved:  true,
	LeadRejected:  true,
}

func IsValidLeadStatus(status string) bool {
	return validLeadStatuses[status]
}

type MeetingRequest struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id,omitempty"`
	Company     string    `json:"company"`
	Email       string    `json:"email"`
	AUM         string    `json:"aum,omitempty"`
	MandateType string    `json:"mandate_type,omitempty"`
	ChequeSize  string    `json:"cheque_size,omitempty"`
	Timing      string    `json:"timing,omitempty"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type MeetingRequestInput struct {
	Company     string `json:"company"`
	Email       string `json:"email"`
	AUM         string `json:"aum,omitempty"`
	MandateType string `json:"mandate_type,omitempty"`
	ChequeSize  string `json:"cheque_size,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Message     string `json:"message,omitempty"`
}

type DataRoomRequest struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id,omitempty"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	Email       string    `json:"email"`
	Message     string    `json:"message,omitempty"`
	NDAAccepted bool      `json:"nda_accepted"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type DataRoomRequestInput struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	Message     string `json:"message,omitempty"`
	NDAAccepted bool   `json:"nda_accepted"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (r *MeetingRequestInput) Validate() error {
	if r.Company == "" {
		return fmt.Errorf("company is required")
	}
	if len(r.Company) > 200 {
		return fmt.Errorf("company must be at most 200 characters")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmailFormat(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if len(r.Message) > 2000 {
		return fmt.Errorf("message must be at most 2000 characters")
	}
	return nil
}

func (r *MeetingRequestInput) Normalize() {
	r.Company = strings.TrimSpace(r.Company)
	r.Email = normalizeEmail(r.Email)
	r.MandateType = strings.TrimSpace(r.MandateType)
	r.Message = strings.TrimSpace(r.Message)
}

func (r *DataRoomRequestInput) Validate() error {
	if r.Company == "" {
		return fmt.Errorf("company is required")
	}
	if len(r.Company) > 200 {
		return fmt.Errorf("company must be at most 200 characters")
	}
	if r.Role == "" {
		return fmt.Errorf("role is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmailFormat(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if len(r.Message) > 2000 {
		return fmt.Errorf("message must be at most 2000 characters")
	}
	if !r.NDAAccepted {
		return fmt.Errorf("NDA acknowledgement is required")
	}
	return nil
}

func (r *DataRoomRequestInput) Normalize() {
	r.Company = strings.TrimSpace(r.Company)
	r.Role = strings.TrimSpace(r.Role)
	r.Email = normalizeEmail(r.Email)
	r.Message = strings.TrimSpace(r.Message)
}

func (r *UpdateLeadStatusRequest) Validate() error {
	if !IsValidLeadStatus(r.Status) {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	return nil
}
