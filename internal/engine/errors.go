package engine

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in
	// the current stage.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrBusy is returned when an extraction or posting call is already in
	// flight for this session.
	ErrBusy = errors.New("an operation is already in progress")

	// ErrNoFile is returned when extraction is requested before a file has
	// been uploaded.
	ErrNoFile = errors.New("no invoice file uploaded")

	// ErrNoRecord is returned when posting is requested before extraction
	// has produced a record.
	ErrNoRecord = errors.New("no extracted invoice record")
)
