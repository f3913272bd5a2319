package importer

import "fmt"

// FormatError is returned when an uploaded file cannot be parsed at all.
// The whole batch is rejected and nothing is written.
type FormatError struct {
	FileName string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unparseable file %s: %s", e.FileName, e.Reason)
}

// RowError is one rejected row inside an otherwise-accepted batch.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}
