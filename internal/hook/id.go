package hook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// IDGenerator produces handler ids.
type IDGenerator interface {
	NewID() string
}

// XIDGenerator generates compact, sortable ids. It is the default.
type XIDGenerator struct{}

// NewID implements IDGenerator.
func (XIDGenerator) NewID() string {
	return xid.New().String()
}

// UUIDGenerator generates random (version 4) UUIDs.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// NewIDGenerator returns the generator for a configured format name.
func NewIDGenerator(format string) (IDGenerator, error) {
	switch format {
	case "", "xid":
		return XIDGenerator{}, nil
	case "uuid":
		return UUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", format)
	}
}
