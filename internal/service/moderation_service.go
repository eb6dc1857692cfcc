package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"matchday/internal/cache"
	"matchday/internal/models"
	"matchday/internal/observability"
	"matchday/internal/repository"
	"matchday/internal/validation"

	"github.com/samber/lo"
)

// Report listing bounds. Rows are fetched newest-first up to maxReportFetch per
// kind; text search and paging run over that window.
const (
	DefaultReportPageSize = 50
	maxReportFetch        = 500
)

// Report list filters.
const (
	ReportFilterAll       = "all"
	ReportFilterPending   = "pending"
	ReportFilterResolved  = "resolved"
	ReportFilterDismissed = "dismissed"
)

// ModerationService provides reporting and the moderator review workflow.
type ModerationService struct {
	reports  repository.ReportRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	now      func() time.Time
}

type ReportInput struct {
	ReporterID  string
	TargetID    string
	Reason      string
	Description string
}

type ListReportsInput struct {
	Kind   string
	Status string
	Query  string
	Limit  int
	Offset int
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	reports repository.ReportRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
) *ModerationService {
	return &ModerationService{
		reports:  reports,
		posts:    posts,
		comments: comments,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func normalizeReport(in ReportInput) (ReportInput, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.ValidateID("target_id", in.TargetID); err != nil {
		return in, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateReport(in.Reason, in.Description); err != nil {
		return in, models.NewValidationError(err.Error())
	}
	return in, nil
}

func (s *ModerationService) ensureNoPending(ctx context.Context, kind models.ReportKind, in ReportInput) error {
	pending, err := s.reports.HasPendingReport(ctx, kind, in.TargetID, in.ReporterID)
	if err != nil {
		return err
	}
	if pending {
		return models.NewConflictError("You already reported this " + string(kind))
	}
	return nil
}

func (s *ModerationService) ReportPost(ctx context.Context, in ReportInput) (*models.ReportRow, error) {
	in, err := normalizeReport(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, in.TargetID, in.ReporterID); err != nil {
		return nil, err
	}
	if err := s.ensureNoPending(ctx, models.ReportKindPost, in); err != nil {
		return nil, err
	}

	report := &models.PostReport{
		PostID:      in.TargetID,
		ReporterID:  in.ReporterID,
		Reason:      in.Reason,
		Description: in.Description,
	}
	if err := s.reports.CreatePostReport(ctx, report); err != nil {
		return nil, err
	}
	row := models.RowFromPostReport(report)
	return &row, nil
}

func (s *ModerationService) ReportComment(ctx context.Context, in ReportInput) (*models.ReportRow, error) {
	in, err := normalizeReport(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.comments.GetByID(ctx, in.TargetID); err != nil {
		return nil, err
	}
	if err := s.ensureNoPending(ctx, models.ReportKindComment, in); err != nil {
		return nil, err
	}

	report := &models.CommentReport{
		CommentID:   in.TargetID,
		ReporterID:  in.ReporterID,
		Reason:      in.Reason,
		Description: in.Description,
	}
	if err := s.reports.CreateCommentReport(ctx, report); err != nil {
		return nil, err
	}
	row := models.RowFromCommentReport(report)
	return &row, nil
}

func statusesFor(filter string) ([]models.ReportStatus, error) {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", ReportFilterAll:
		return nil, nil
	case ReportFilterPending:
		return []models.ReportStatus{models.ReportStatusPending}, nil
	case ReportFilterResolved, string(models.ReportStatusApproved):
		return []models.ReportStatus{models.ReportStatusResolved, models.ReportStatusApproved}, nil
	case ReportFilterDismissed:
		return []models.ReportStatus{models.ReportStatusDismissed}, nil
	}
	return nil, models.NewValidationError("status must be one of all, pending, resolved, dismissed")
}

// ListReports merges post and comment reports newest-first, then applies the
// free-text query in memory before paging.
func (s *ModerationService) ListReports(ctx context.Context, in ListReportsInput) ([]models.ReportRow, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if kind == "" {
		kind = ReportFilterAll
	}
	if _, ok := models.ParseReportKind(kind); !ok && kind != ReportFilterAll {
		return nil, models.NewValidationError("kind must be one of post, comment, all")
	}
	statuses, err := statusesFor(in.Status)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ReportRow, 0)
	if kind != string(models.ReportKindComment) {
		reports, err := s.reports.ListPostReports(ctx, statuses, maxReportFetch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, lo.Map(reports, func(r *models.PostReport, _ int) models.ReportRow {
			return models.RowFromPostReport(r)
		})...)
	}
	if kind != string(models.ReportKindPost) {
		reports, err := s.reports.ListCommentReports(ctx, statuses, maxReportFetch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, lo.Map(reports, func(r *models.CommentReport, _ int) models.ReportRow {
			return models.RowFromCommentReport(r)
		})...)
	}

	slices.SortStableFunc(rows, func(a, b models.ReportRow) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if q := strings.ToLower(strings.TrimSpace(in.Query)); q != "" {
		rows = lo.Filter(rows, func(r models.ReportRow, _ int) bool {
			return matchesReport(r, q)
		})
	}

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultReportPageSize
	}
	offset := max(in.Offset, 0)
	return lo.Subset(rows, offset, uint(limit)), nil
}

func matchesReport(r models.ReportRow, q string) bool {
	for _, field := range []string{r.ReporterUsername, r.Reason, r.Description, r.TargetID, r.ReporterID, r.ID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func parseKind(kind string) (models.ReportKind, error) {
	k, ok := models.ParseReportKind(kind)
	if !ok {
		return "", models.NewValidationError("kind must be post or comment")
	}
	return k, nil
}

// Approve upholds a pending report.
func (s *ModerationService) Approve(ctx context.Context, kind, reportID, moderatorID string) (*models.ReportRow, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, k, reportID, k.ApprovedStatus(), moderatorID)
}

// Dismiss closes a pending report without action.
func (s *ModerationService) Dismiss(ctx context.Context, kind, reportID, moderatorID string) (*models.ReportRow, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, k, reportID, models.ReportStatusDismissed, moderatorID)
}

func (s *ModerationService) transition(ctx context.Context, kind models.ReportKind, reportID string, to models.ReportStatus, moderatorID string) (*models.ReportRow, error) {
	if err := validation.ValidateID("report_id", reportID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.reports.Transition(ctx, kind, reportID, to, moderatorID, s.now()); err != nil {
		return nil, err
	}
	observability.ReportTransitions.WithLabelValues(string(kind), string(to)).Inc()
	return s.reports.GetReport(ctx, kind, reportID)
}

// DeleteTarget removes the reported post or comment and closes the report in
// one transaction. On failure the target and the pending report both remain.
func (s *ModerationService) DeleteTarget(ctx context.Context, kind, reportID, moderatorID string) (*models.ReportRow, error) {
	k, err := parseKind(kind)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateID("report_id", reportID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	report, err := s.reports.GetReport(ctx, k, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status.IsTerminal() {
		return nil, models.NewReportClosedError(report.Status)
	}

	// The post whose cached view carries the target's counts.
	postID := report.TargetID
	if k == models.ReportKindPost {
		err = s.reports.DeletePostAndApprove(ctx, reportID, moderatorID, s.now())
	} else {
		postID = ""
		if c, lookupErr := s.comments.GetByID(ctx, report.TargetID); lookupErr == nil {
			postID = c.PostID
		}
		err = s.reports.DeleteCommentAndResolve(ctx, reportID, moderatorID, s.now())
	}
	if err != nil {
		return nil, err
	}

	observability.ReportTransitions.WithLabelValues(string(k), string(k.ApprovedStatus())).Inc()
	if postID != "" {
		cache.Invalidate(ctx, cache.PostKey(postID))
	}
	return s.reports.GetReport(ctx, k, reportID)
}
