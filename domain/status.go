package domain

import "fmt"

// Status is the board column a task lives in. Only two values exist: the zero
// value StatusWIP and StatusDone.
type Status struct {
	done bool
}

var (
	StatusWIP  = Status{}
	StatusDone = Status{done: true}
)

const (
	wipText  = "wip"
	doneText = "done"
)

// ParseStatus converts the wire representation into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case wipText:
		return StatusWIP, nil
	case doneText:
		return StatusDone, nil
	}
	return Status{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, s)
}

// IsDone reports whether the task sits in the done column.
func (s Status) IsDone() bool { return s.done }

// Complete moves a task to the done column.
func (s Status) Complete() Status { return StatusDone }

// Reopen moves a task back to the in-progress column.
func (s Status) Reopen() Status { return StatusWIP }

func (s Status) String() string {
	if s.done {
		return doneText
	}
	return wipText
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
