package model

import "errors"

var (
	ErrUnknownTract    = errors.New("unknown tract")
	ErrInvalidValue    = errors.New("invalid value")
	ErrDuplicateTract  = errors.New("tract already exists")
	ErrBudgetNotHigher = errors.New("requested budget must exceed current max budget")
)
