package export

import "errors"

// Sentinel kinds for export errors.
var (
	ErrWorkbook = errors.New("build workbook")
	ErrWrite    = errors.New("write workbook")
)
