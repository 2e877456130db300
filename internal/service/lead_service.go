package service

import (
	"context"
	"fmt"

	"github.com/susumicapital/investor-portal/internal/domain"
	"github.com/susumicapital/investor-portal/internal/repository"
	"github.com/susumicapital/investor-portal/pkg/config"
	"github.com/susumicapital/investor-portal/pkg/logger"
)

type MeetingSubmission struct {
	Request       *domain.MeetingRequest `json:"request"`
	SchedulingURL string                 `json:"scheduling_url"`
}

type LeadService interface {
	// SubmitMeeting saves the request and returns the external scheduling
	// URL for the client to open. The record is kept even if the caller
	// never books a slot.
	SubmitMeeting(ctx context.Context, input *domain.MeetingRequestInput, userID *string) (*MeetingSubmission, error)
	// SubmitDataRoom rejects requests without the NDA acknowledgement
	// before anything is written.
	SubmitDataRoom(ctx context.Context, input *domain.DataRoomRequestInput, userID *string) (*domain.DataRoomRequest, error)
	ListMeetings(ctx context.Context, status *string, limit, offset int) ([]domain.MeetingRequest, error)
	ListDataRoom(ctx context.Context, status *string, limit, offset int) ([]domain.DataRoomRequest, error)
	UpdateMeetingStatus(ctx context.Context, id, status string) (*domain.MeetingRequest, error)
	UpdateDataRoomStatus(ctx context.Context, id, status string) (*domain.DataRoomRequest, error)
}

type leadService struct {
	leadRepo repository.LeadRepository
	config   *config.Config
}

func NewLeadService(leadRepo repository.LeadRepository, config *config.Config) LeadService {
	return &leadService{
		leadRepo: leadRepo,
		config:   config,
	}
}

func (s *leadService) SubmitMeeting(ctx context.Context, input *domain.MeetingRequestInput, userID *string) (*MeetingSubmission, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	req, err := s.leadRepo.CreateMeeting(ctx, input, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to save meeting request: %w", err)
	}

	logger.InfoContext(ctx, "Meeting request captured", "id", req.ID, "company", req.Company)

	return &MeetingSubmission{
		Request:       req,
		SchedulingURL: s.config.Portal.SchedulingURL,
	}, nil
}

func (s *leadService) SubmitDataRoom(ctx context.Context, input *domain.DataRoomRequestInput, userID *string) (*domain.DataRoomRequest, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	req, err := s.leadRepo.CreateDataRoom(ctx, input, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to save data room request: %w", err)
	}

	logger.InfoContext(ctx, "Data room request captured", "id", req.ID, "company", req.Company)
	return req, nil
}

func (s *leadService) ListMeetings(ctx context.Context, status *string, limit, offset int) ([]domain.MeetingRequest, error) {
	if status != nil && !domain.IsValidLeadStatus(*status) {
		return nil, fmt.Errorf("invalid status filter: %s", *status)
	}
	return s.leadRepo.ListMeetings(ctx, status, limit, offset)
}

func (s *leadService) ListDataRoom(ctx context.Context, status *string, limit, offset int) ([]domain.DataRoomRequest, error) {
	if status != nil && !domain.IsValidLeadStatus(*status) {
		return nil, fmt.Errorf("invalid status filter: %s", *status)
	}
	return s.leadRepo.ListDataRoom(ctx, status, limit, offset)
}

func (s *leadService) UpdateMeetingStatus(ctx context.Context, id, status string) (*domain.MeetingRequest, error) {
	if !domain.IsValidLeadStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	return s.leadRepo.UpdateMeetingStatus(ctx, id, status)
}

func (s *leadService) UpdateDataRoomStatus(ctx context.Context, id, status string) (*domain.DataRoomRequest, error) {
	if !domain.IsValidLeadStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	return s.leadRepo.UpdateDataRoomStatus(ctx, id, status)
}
