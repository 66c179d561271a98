package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/focusmonitor/focusmonitor/pkg/report"
	"github.com/focusmonitor/focusmonitor/server/internal/store"
)

// Evaluator receives every accepted minute score.
type Evaluator interface {
	Evaluate(sessionID string, sc *report.ScoreRecord)
}

// Notifier is told when a minute score has been stored.
type Notifier interface {
	Notify()
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithNotifier registers n to be called after each stored score.
func WithNotifier(n Notifier) Option {
	return func(r *Receiver) { r.notify = append(r.notify, n) }
}

// Receiver implements report.ReportServiceServer. It validates each report,
// folds it into the session store and hands minute scores to the evaluator.
type Receiver struct {
	store    *store.Store
	alerts   Evaluator
	validate *validator.Validate
	notify   []Notifier
}

// New creates a Receiver writing to st. alerts may be nil.
func New(st *store.Store, alerts Evaluator, opts ...Option) *Receiver {
	r := &Receiver{
		store:    st,
		alerts:   alerts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SendReport is the unary RPC called by agents. Authentication happens in
// the server interceptor before this runs.
func (r *Receiver) SendReport(ctx context.Context, rep *report.Report) (*report.SendResponse, error) {
	if rep == nil {
		return nil, status.Error(codes.InvalidArgument, "report is required")
	}
	if err := r.validate.StructCtx(ctx, rep); err != nil {
		return nil, status.Error(codes.InvalidArgument, describe(err))
	}

	e := r.store.Put(rep)

	switch rep.Kind {
	case report.KindScore:
		slog.Debug("receiver: score stored",
			"session", rep.SessionID,
			"concentration_score", rep.Score.ConcentrationScore,
			"absence_ratio", rep.Score.AbsenceRatio,
		)
		if r.alerts != nil {
			r.alerts.Evaluate(rep.SessionID, rep.Score)
		}
		for _, n := range r.notify {
			n.Notify()
		}
	case report.KindSecond:
		slog.Debug("receiver: second stored", "session", rep.SessionID, "seconds", e.SecondsReceived)
	}

	return &report.SendResponse{Ok: true}, nil
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return "invalid report: " + strings.Join(parts, "; ")
}
