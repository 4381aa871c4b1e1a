package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// sendEmail delivers generated content to a recipient list. Subject and
// body support {{...}} templates resolved against the run's variables and
// results.
func (p Providers) sendEmail(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	if p.Email == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no email provider configured"}
	}

	recipients := stringList(req.Config["to"])
	if len(recipients) == 0 {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "send-email requires at least one recipient"}
	}
	subject, _ := req.Config["subject"].(string)
	if subject == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "send-email requires a subject"}
	}
	body, _ := req.Config["body"].(string)
	from, _ := req.Config["from"].(string)
	if from == "" {
		from = p.EmailFrom
	}

	scope := map[string]interface{}{
		"variables": wctx.Variables(),
		"results":   toPlainMap(wctx.Results()),
	}
	subject, err := utils.ProcessTemplate(subject, scope)
	if err != nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: fmt.Sprintf("subject template failed: %v", err)}
	}
	body, err = utils.ProcessTemplate(body, scope)
	if err != nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: fmt.Sprintf("body template failed: %v", err)}
	}

	if err := p.Email.Send(utils.OutgoingEmail{
		From:    from,
		To:      recipients,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return nil, &engine.ProviderError{Provider: "email", Err: err}
	}

	return map[string]interface{}{
		"type":       workflow.ResultTypeMetrics,
		"action":     "send-email",
		"recipients": recipients,
		"delivered":  len(recipients),
		"subject":    subject,
	}, nil
}

// checkReplies pulls reply activity from the campaign inbox
func (p Providers) checkReplies(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	if p.Email == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no email provider configured"}
	}

	sinceHours := 24
	if raw, ok := req.Config["since_hours"].(float64); ok && raw > 0 {
		sinceHours = int(raw)
	}
	limit := uint32(50)
	if raw, ok := req.Config["limit"].(float64); ok && raw > 0 {
		limit = uint32(raw)
	}

	replies, err := p.Email.FetchReplies(time.Now().Add(-time.Duration(sinceHours)*time.Hour), limit)
	if err != nil {
		return nil, &engine.ProviderError{Provider: "email", Err: err}
	}

	return map[string]interface{}{
		"type":    workflow.ResultTypeMetrics,
		"action":  "check-replies",
		"count":   len(replies),
		"replies": replies,
	}, nil
}

func stringList(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

func toPlainMap(results map[string]map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(results))
	for id, payload := range results {
		out[id] = payload
	}
	return out
}
