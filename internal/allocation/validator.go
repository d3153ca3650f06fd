// Package allocation validates lock-period allocation sets.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"victory-readmodel/internal/domain"
)

// TotalBp is the sum every valid allocation set must reach.
const TotalBp = 10000

// ErrInvalidAllocation is returned when an invalid set is submitted.
var ErrInvalidAllocation = errors.New("invalid allocation set")

// Result is the structured outcome of validating a set.
type Result struct {
	Valid       bool              `json:"valid"`
	Errors      []string          `json:"errors"`
	FieldErrors map[string]string `json:"field_errors,omitempty"` // keyed by json field name
	TotalBp     int64             `json:"total_bp"`
}

// Err returns nil for a valid result and ErrInvalidAllocation otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidAllocation, strings.Join(r.Errors, "; "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks per-bucket ranges and the 10000 bp total.
// It never fails; problems are reported in the result.
func Validate(set domain.AllocationSet) Result {
	res := Result{Errors: []string{}, TotalBp: total(set)}

	if err := validate.Struct(set); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			res.FieldErrors = make(map[string]string, len(verrs))
			for _, fe := range verrs {
				msg := fieldMessage(fe)
				res.Errors = append(res.Errors, msg)
				res.FieldErrors[fe.Field()] = msg
			}
		} else {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	if res.TotalBp != TotalBp {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"allocations must total %d bp (%s%%), got %d bp (%s%%)",
			TotalBp, FormatPercent(TotalBp), res.TotalBp, FormatPercent(res.TotalBp)))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func fieldMessage(fe validator.FieldError) string {
	got, _ := fe.Value().(int64)
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s allocation must not be negative, got %d bp", fe.Field(), got)
	case "max":
		return fmt.Sprintf("%s allocation must be at most %d bp (%s%%), got %d bp (%s%%)",
			fe.Field(), TotalBp, FormatPercent(TotalBp), got, FormatPercent(got))
	default:
		return fmt.Sprintf("%s allocation failed %s check", fe.Field(), fe.Tag())
	}
}

// total sums the buckets, saturating instead of wrapping on overflow.
func total(set domain.AllocationSet) int64 {
	var sum int64
	for _, v := range []int64{set.Week, set.ThreeMonth, set.Year, set.ThreeYear} {
		switch {
		case v > 0 && sum > math.MaxInt64-v:
			sum = math.MaxInt64
		case v < 0 && sum < math.MinInt64-v:
			sum = math.MinInt64
		default:
			sum += v
		}
	}
	return sum
}

// FormatPercent renders basis points as an exact percentage with two
// decimals, e.g. 9999 -> "99.99".
func FormatPercent(bp int64) string {
	return apd.New(bp, -2).Text('f')
}
