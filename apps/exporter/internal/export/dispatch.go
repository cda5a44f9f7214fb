package export

import (
	"context"
	"encoding/json"
	"strings"
)

// Dispatch routes a trigger event: a schedule tick fans out export requests,
// a queue delivery exports the language named by its first record. Only the
// first record of a delivery is processed.
func (s *Service) Dispatch(ctx context.Context, event Event) error {
	switch event.Source {
	case SourceSchedule:
		return s.QueueLanguages(ctx)
	case SourceQueue:
		if len(event.Records) == 0 {
			return MalformedMessageError{Reason: "queue event has no records"}
		}
		if len(event.Records) > 1 {
			s.log.Warn("ignoring extra queue records", "count", len(event.Records)-1)
		}
		req, err := ParseExportRequest(event.Records[0].Body)
		if err != nil {
			return err
		}
		return s.ExportLanguage(ctx, req.Code)
	default:
		return UnknownEventError{Source: event.Source}
	}
}

// ParseExportRequest decodes a queue message body of the form {"code": "..."}.
func ParseExportRequest(body string) (ExportRequest, error) {
	var req ExportRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return ExportRequest{}, MalformedMessageError{Body: body, Reason: err.Error()}
	}
	if strings.TrimSpace(req.Code) == "" {
		return ExportRequest{}, MalformedMessageError{Body: body, Reason: "missing code"}
	}
	return req, nil
}
