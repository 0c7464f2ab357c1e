// Package store defines the record sink that allocated deals are handed to.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lukman83/dealscout/internal/models"
)

// Writer persists records. Implementations report per-record outcomes and
// never retry; a non-nil error means the batch as a whole could not run.
type Writer interface {
	Write(ctx context.Context, records []models.Record) ([]models.WriteResult, error)
	// Summary totals the records a user marked as selected for month.
	Summary(ctx context.Context, month string, budgetCap models.Cents) (models.BudgetSummary, error)
}

// Selector lets a user mark stored records as picked, which is what budget
// summaries count.
type Selector interface {
	SetSelected(ctx context.Context, url string, selected bool) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates one record before it is sent anywhere.
func Check(r models.Record) error {
	if err := validate.Struct(r); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid %s", models.ErrMalformedItem, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", models.ErrMalformedItem, err)
	}
	return nil
}

// Rejected builds the per-record result for a record that failed Check.
func Rejected(r models.Record, err error) models.WriteResult {
	return models.WriteResult{Action: models.ActionError, URL: r.URL, Error: err.Error()}
}
