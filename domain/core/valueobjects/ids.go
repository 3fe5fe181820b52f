package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// CanvasID is a value object identifying one canvas document.
// Value objects are immutable and have no identity beyond their value.
type CanvasID struct {
	value string
}

// NewCanvasID creates a CanvasID from an existing string
func NewCanvasID(id string) (CanvasID, error) {
	if id == "" {
		return CanvasID{}, errors.New("canvas ID cannot be empty")
	}
	return CanvasID{value: id}, nil
}

// String returns the string representation of the CanvasID
func (id CanvasID) String() string {
	return id.value
}

// Equals checks if two CanvasIDs are equal
func (id CanvasID) Equals(other CanvasID) bool {
	return id.value == other.value
}

// IsZero checks if the CanvasID is the zero value
func (id CanvasID) IsZero() bool {
	return id.value == ""
}

// TransactionID is a value object identifying one recorded transaction
type TransactionID struct {
	value string
}

// NewTransactionID creates a new random TransactionID
func NewTransactionID() TransactionID {
	return TransactionID{value: uuid.New().String()}
}

// NewTransactionIDFromString creates a TransactionID from an existing string
func NewTransactionIDFromString(id string) (TransactionID, error) {
	if id == "" {
		return TransactionID{}, errors.New("transaction ID cannot be empty")
	}
	return TransactionID{value: id}, nil
}

// String returns the string representation of the TransactionID
func (id TransactionID) String() string {
	return id.value
}

// Equals checks if two TransactionIDs are equal
func (id TransactionID) Equals(other TransactionID) bool {
	return id.value == other.value
}

// IsZero checks if the TransactionID is the zero value
func (id TransactionID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id TransactionID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *TransactionID) UnmarshalJSON(data []byte) error {
	return unmarshalString(data, &id.value, "TransactionID")
}

// VersionID is an opaque baseline identifier advanced by compaction
type VersionID struct {
	value string
}

// NewVersionID creates a new random VersionID
func NewVersionID() VersionID {
	return VersionID{value: uuid.New().String()}
}

// NewVersionIDFromString creates a VersionID from an existing string
func NewVersionIDFromString(id string) VersionID {
	return VersionID{value: id}
}

// String returns the string representation of the VersionID
func (id VersionID) String() string {
	return id.value
}

// Equals checks if two VersionIDs are equal
func (id VersionID) Equals(other VersionID) bool {
	return id.value == other.value
}

// IsZero checks if the VersionID is the zero value
func (id VersionID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id VersionID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *VersionID) UnmarshalJSON(data []byte) error {
	return unmarshalString(data, &id.value, "VersionID")
}

// unmarshalString decodes a JSON string literal into dst
func unmarshalString(data []byte, dst *string, kind string) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New(kind + " must be a string")
	}
	*dst = string(data[1 : len(data)-1])
	return nil
}
