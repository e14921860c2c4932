package activity

import "fmt"

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ListActivityOptions filters an activity listing. Zero values match
// everything.
type ListActivityOptions struct {
	ContractID   string
	ActorID      *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}

func (o *ListActivityOptions) normalize() error {
	if o.Limit < 0 || o.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	if o.ActivityType != nil && !o.ActivityType.Valid() {
		return fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, *o.ActivityType)
	}
	switch {
	case o.Limit == 0:
		o.Limit = DefaultLimit
	case o.Limit > MaxLimit:
		o.Limit = MaxLimit
	}
	return nil
}
