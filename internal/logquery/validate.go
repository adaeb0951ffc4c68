package logquery

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/treesync/internal/ir"
)

// Validate reports every problem in q, or nil if it can be compiled.
func Validate(q Query) error {
	var errs *multierror.Error
	if q.Limit < 0 {
		errs = multierror.Append(errs, fmt.Errorf("limit %d is negative", q.Limit))
	}
	if q.Filter != nil {
		errs = multierror.Append(errs, validateFilter(q.Filter))
	}
	return errs.ErrorOrNil()
}

func validateFilter(f Filter) error {
	switch f := f.(type) {
	case KindIs:
		if _, ok := kindName(f.Kind); !ok {
			return fmt.Errorf("kind: unknown change kind %d", f.Kind)
		}
	case Under:
		if f.Address.IsZero() {
			return fmt.Errorf("under: address is empty")
		}
	case Origin, Unconfirmed:
	case Revisions:
		if f.From < 0 || f.To < 0 {
			return fmt.Errorf("revisions: bounds [%d, %d] must not be negative", f.From, f.To)
		}
		if f.To != 0 && f.From > f.To {
			return fmt.Errorf("revisions: from %d is above to %d", f.From, f.To)
		}
	case And:
		var errs *multierror.Error
		for _, sub := range f.Filters {
			if sub == nil {
				errs = multierror.Append(errs, fmt.Errorf("and: nil filter"))
				continue
			}
			errs = multierror.Append(errs, validateFilter(sub))
		}
		return errs.ErrorOrNil()
	default:
		return fmt.Errorf("unsupported filter type: %T", f)
	}
	return nil
}

func kindName(k ir.ChangeKind) (string, bool) {
	if k == ir.KindNone {
		return "", false
	}
	name := k.String()
	return name, name != "none"
}
