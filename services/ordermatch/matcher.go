package ordermatch

import (
	"context"
	"sort"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

// Result of a match. Order is nil when Method is none, an unmatched message is
// not an error.
type Result struct {
	Order      *models.Order    `json:"order"`
	Method     enum.MatchMethod `json:"method"`
	Candidates []string         `json:"candidates"`
	// Matches holds every resolved order, most recent first
	Matches []*models.Order `json:"matches,omitempty"`
}

func (r *Result) OrderID() string {
	if r == nil || r.Order == nil {
		return ""
	}
	return r.Order.ID
}

type Matcher struct {
	orders   interfaces.OrderRepository
	log      logger.Logger
	padWidth int
}

func NewMatcher(orders interfaces.OrderRepository, log logger.Logger, padWidth int) *Matcher {
	return &Matcher{orders: orders, log: log, padWidth: padWidth}
}

// MatchOrder links a message to an order by the numbers it mentions, falling back
// to the sender's most recent order.
func (m *Matcher) MatchOrder(ctx context.Context, subject, bodyText, senderEmail string) (*Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrderMatcher.MatchOrder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	result := &Result{
		Method:     enum.MatchMethodNone,
		Candidates: ExtractCandidates(subject + " " + bodyText),
	}
	span.LogFields(tracingLog.Object("candidates", result.Candidates))

	if len(result.Candidates) > 0 {
		matches, err := m.lookupCandidates(ctx, result.Candidates)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if len(matches) > 0 {
			result.Matches = matches
			result.Order = matches[0]
			result.Method = enum.MatchMethodOrderNumber
			span.LogFields(tracingLog.String("result.orderId", result.Order.ID), tracingLog.String("result.method", result.Method.String()))
			return result, nil
		}
	}

	email := utils.CleanEmailAddress(senderEmail)
	if email == "" {
		return result, nil
	}

	orders, err := m.orders.ListByCustomerEmail(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "error listing orders by sender")
	}
	if len(orders) > 0 {
		sortByDateDesc(orders)
		result.Matches = orders
		result.Order = orders[0]
		result.Method = enum.MatchMethodEmailFallback
	}

	span.LogFields(tracingLog.String("result.method", result.Method.String()))
	return result, nil
}

func (m *Matcher) lookupCandidates(ctx context.Context, candidates []string) ([]*models.Order, error) {
	orders, err := m.orders.GetByOrderNumbers(ctx, lookupNumbers(candidates))
	if err != nil {
		return nil, errors.Wrap(err, "error looking up order numbers")
	}

	if len(orders) == 0 && m.padWidth > 0 {
		padded := paddedNumbers(candidates, m.padWidth)
		if len(padded) > 0 {
			m.log.Debugf("No order for %v, retrying zero padded", candidates)
			orders, err = m.orders.GetByOrderNumbers(ctx, lookupNumbers(padded))
			if err != nil {
				return nil, errors.Wrap(err, "error looking up padded order numbers")
			}
		}
	}

	sortByDateDesc(orders)
	return orders, nil
}

func sortByDateDesc(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
}
