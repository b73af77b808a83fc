package sync

import (
	"github.com/clientsync/backend/internal/domain/client"
	"github.com/clientsync/backend/internal/domain/sync"
	"github.com/shopspring/decimal"
)

// CreateClientInput is the partial client a create saga starts from
type CreateClientInput struct {
	Name          string
	ContactName   string
	Phone         string
	Email         string
	Notes         string
	LifetimeValue *decimal.Decimal
}

// Validate runs the static checks that gate the saga. Any failure returns
// before a single adapter is touched.
func (in *CreateClientInput) Validate() []sync.ValidationError {
	var errs []sync.ValidationError
	if in.Name == "" {
		errs = append(errs, sync.ValidationError{Field: "name", Reason: "cannot be empty"})
	} else if len(in.Name) > 200 {
		errs = append(errs, sync.ValidationError{Field: "name", Reason: "cannot exceed 200 characters"})
	}
	if in.Email != "" {
		if err := client.ValidateEmail(in.Email); err != nil {
			errs = append(errs, sync.ValidationError{Field: "email", Reason: err.Error()})
		}
	}
	if in.LifetimeValue != nil && in.LifetimeValue.IsNegative() {
		errs = append(errs, sync.ValidationError{Field: "lifetime_value", Reason: "cannot be negative"})
	}
	return errs
}

// toClient builds the client aggregate the saga will replicate. Validate must
// have passed first.
func (in *CreateClientInput) toClient() (*client.Client, error) {
	c, err := client.New(in.Name)
	if err != nil {
		return nil, err
	}
	if in.ContactName != "" || in.Phone != "" || in.Email != "" {
		if err := c.SetContact(in.ContactName, in.Phone, in.Email); err != nil {
			return nil, err
		}
	}
	if in.Notes != "" {
		c.SetNotes(in.Notes)
	}
	if in.LifetimeValue != nil {
		if err := c.SetLifetimeValue(*in.LifetimeValue); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ReconcileOutcome describes what an inbound reconciliation did
type ReconcileOutcome string

const (
	// OutcomeImported means the row had no matching client and was imported
	OutcomeImported ReconcileOutcome = "IMPORTED"
	// OutcomeSheetApplied means the spreadsheet edit won and was written
	// into the primary store
	OutcomeSheetApplied ReconcileOutcome = "SHEET_APPLIED"
	// OutcomeAppApplied means the app record won and was written back to
	// the spreadsheet row
	OutcomeAppApplied ReconcileOutcome = "APP_APPLIED"
	// OutcomeAmbiguous means both sides changed within the drift window;
	// nothing was written
	OutcomeAmbiguous ReconcileOutcome = "AMBIGUOUS"
)

// ReconcileResult reports the outcome of one inbound reconciliation
type ReconcileResult struct {
	Outcome   ReconcileOutcome
	RowNumber int
	ClientID  string
}
