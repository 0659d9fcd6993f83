package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"experiences/api/internal/email"
)

// ErrUnavailable reports a feature whose backing service is not configured.
var ErrUnavailable = errors.New("service unavailable")

var evaluationResults = map[string]struct{}{
	"naciente":    {},
	"creciente":   {},
	"inspiradora": {},
}

// GenerateReport renders the experience as PDF, stores it and records the
// link on the experience. Concurrent calls for one experience share a
// single render.
func (s *Service) GenerateReport(ctx context.Context, id int64) (string, error) {
	if s.reports == nil || s.publisher == nil {
		return "", fmt.Errorf("%w: report generation is not configured", ErrUnavailable)
	}
	link, err, _ := s.reportGroup.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return s.generateReport(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return "", err
	}
	return link.(string), nil
}

func (s *Service) generateReport(ctx context.Context, id int64) (link string, err error) {
	ctx, span := s.startSpan(ctx, "GenerateReport", attribute.Int64("experience.id", id))
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveOperation("report", time.Now())

	item, err := s.GetDetail(ctx, id)
	if err != nil {
		return "", err
	}
	result, err := s.reports.ExperiencePDF(ctx, item, s.creatorName(ctx, item.UserID))
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	link, err = s.publisher.PublishPDF(ctx, id, result.Data)
	if err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	if err := s.experiences.SetPDFURL(ctx, id, link); err != nil {
		return "", persistenceError("store report link", err)
	}
	s.logger.InfoContext(ctx, "report generated", "experience_id", id, "bytes", len(result.Data))
	return link, nil
}

// SendEvaluationResult mails the evaluation outcome of an experience.
func (s *Service) SendEvaluationResult(ctx context.Context, id int64, to, userName, result string) (err error) {
	ctx, span := s.startSpan(ctx, "SendEvaluationResult", attribute.Int64("experience.id", id))
	defer func() { endSpan(span, err) }()

	to = strings.TrimSpace(to)
	result = strings.TrimSpace(result)
	if to == "" || !strings.Contains(to, "@") {
		return validationError("a valid recipient email is required")
	}
	if _, ok := evaluationResults[strings.ToLower(result)]; !ok {
		return validationError("result must be Naciente, Creciente or Inspiradora")
	}
	if s.mailer == nil {
		return fmt.Errorf("%w: email is not configured", ErrUnavailable)
	}

	item, err := s.experiences.LoadShallowByID(ctx, id)
	if err != nil {
		return persistenceError("load experience", err)
	}
	if item == nil {
		return ErrNotFound
	}

	if err := s.mailer.SendEvaluationResult(ctx, to, userName, canonicalResult(result)); err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		s.metrics.IncrementSideEffectFailure("mail")
		return fmt.Errorf("send evaluation result: %w", err)
	}
	s.logger.InfoContext(ctx, "evaluation result sent", "experience_id", id, "result", result)
	return nil
}

func canonicalResult(result string) string {
	lower := strings.ToLower(result)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
