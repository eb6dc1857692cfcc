package server

import (
	"matchday/internal/models"
	"matchday/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reportRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ReportPost handles POST /api/posts/:id/reports
func (s *Server) ReportPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id", "postId")
	if err != nil {
		return nil
	}
	var req reportRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.ReportPost(c.UserContext(), service.ReportInput{
		ReporterID:  viewerID(c),
		TargetID:    postID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// ReportComment handles POST /api/comments/:id/reports
func (s *Server) ReportComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id", "commentId")
	if err != nil {
		return nil
	}
	var req reportRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.ReportComment(c.UserContext(), service.ReportInput{
		ReporterID:  viewerID(c),
		TargetID:    commentID,
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetReports handles GET /api/moderation/reports
// Query: kind (post|comment|all), status (pending|resolved|dismissed|all), q, limit, offset
func (s *Server) GetReports(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultReportPageSize)

	reports, err := s.moderationService.ListReports(c.UserContext(), service.ListReportsInput{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(reports)
}

type reportAction func(s *service.ModerationService, c *fiber.Ctx, kind, reportID string) (*models.ReportRow, error)

func (s *Server) handleReportAction(c *fiber.Ctx, action reportAction) error {
	reportID, err := parseID(c, "id", "reportId")
	if err != nil {
		return nil
	}

	report, err := action(s.moderationService, c, c.Params("kind"), reportID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// ApproveReport handles POST /api/moderation/reports/:kind/:id/approve
func (s *Server) ApproveReport(c *fiber.Ctx) error {
	return s.handleReportAction(c, func(m *service.ModerationService, c *fiber.Ctx, kind, id string) (*models.ReportRow, error) {
		return m.Approve(c.UserContext(), kind, id, viewerID(c))
	})
}

// DismissReport handles POST /api/moderation/reports/:kind/:id/dismiss
func (s *Server) DismissReport(c *fiber.Ctx) error {
	return s.handleReportAction(c, func(m *service.ModerationService, c *fiber.Ctx, kind, id string) (*models.ReportRow, error) {
		return m.Dismiss(c.UserContext(), kind, id, viewerID(c))
	})
}

// DeleteReportedTarget handles POST /api/moderation/reports/:kind/:id/delete-target.
// The target removal and the report status change commit together.
func (s *Server) DeleteReportedTarget(c *fiber.Ctx) error {
	return s.handleReportAction(c, func(m *service.ModerationService, c *fiber.Ctx, kind, id string) (*models.ReportRow, error) {
		report, err := m.DeleteTarget(c.UserContext(), kind, id, viewerID(c))
		if err == nil && report.Kind == models.ReportKindComment {
			s.commentService.Likes().Invalidate(report.TargetID)
			s.publishBroadcastEvent(c.UserContext(), EventCommentDeleted, map[string]any{"id": report.TargetID})
		}
		return report, err
	})
}
