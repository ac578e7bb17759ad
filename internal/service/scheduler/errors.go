package scheduler

import "errors"

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrInvalidType       = errors.New("schedule type must be daily, weekly or monthly")
	ErrInvalidTargetRole = errors.New("target role does not own a commission tier")
	ErrInvalidStatus     = errors.New("schedule status must be active or paused")
	ErrNoActiveSchedule  = errors.New("no active schedule for type")
)
