package httpapi

import "errors"

var errMissingTaskKindName = errors.New("httpapi: task_kind_name is required")
var errMissingTaskKindNames = errors.New("httpapi: task_kinds must be non-empty")
