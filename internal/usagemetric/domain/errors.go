package domain

import "errors"

var ErrRecordNotFound = errors.New("metric_record_not_found")
