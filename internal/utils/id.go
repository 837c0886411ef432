package utils

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/maruel/ksid"

	"github.com/maruel/imladris/internal/sheetdb"
)

// Supported item id formats.
const (
	IDFormatUUID = "uuid"
	IDFormatKSID = "ksid"
)

// IDFormats lists the accepted values for IDGenerator.
var IDFormats = []string{IDFormatUUID, IDFormatKSID}

// GenerateID generates a random UUID v4 string.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateKSID generates a time-sortable ID string.
func GenerateKSID() string {
	return ksid.NewID().String()
}

// IDGenerator returns the generator for format. An empty format selects
// UUIDs.
func IDGenerator(format string) (sheetdb.IDGenerator, error) {
	switch format {
	case "", IDFormatUUID:
		return GenerateID, nil
	case IDFormatKSID:
		return GenerateKSID, nil
	default:
		return nil, fmt.Errorf("unknown id format %q, must be one of %v", format, slices.Clone(IDFormats))
	}
}
