package core

import (
	"context"
	"fmt"

	"inspectcore/pkg/domain"
)

const orderCompletionRuleName = "order_completion"

// OrderCompletionRule warns when an order is marked done while some of its
// points have not been measured yet. Status transitions themselves are not
// constrained.
func OrderCompletionRule() domain.Rule {
	return orderCompletionRule{}
}

type orderCompletionRule struct{}

func (orderCompletionRule) Name() string { return orderCompletionRuleName }

func (orderCompletionRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityOrder {
			continue
		}
		after, ok := change.After.(domain.Order)
		if !ok || after.Status != domain.OrderDone {
			continue
		}
		if before, ok := change.Before.(domain.Order); ok && before.Status == domain.OrderDone {
			continue
		}
		var open int
		for _, p := range view.ListPointsByOrder(after.ID) {
			if p.Status == domain.PointUnmeasured {
				open++
			}
		}
		if open == 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     orderCompletionRuleName,
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("order %s marked done with %d unmeasured point(s)", after.ID, open),
			Entity:   domain.EntityOrder,
			EntityID: after.ID,
		})
	}
	return res, nil
}
