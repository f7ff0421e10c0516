package storage

import (
	"fmt"

	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// verifyContent checks data hashes to id.
func verifyContent(id interfaces.ContentID, data []byte) error {
	if actual := interfaces.ComputeID(data); !actual.Equal(id) {
		return fmt.Errorf("%w: requested %s, got %s", interfaces.ErrContentHashMismatch, id, actual)
	}
	return nil
}

// contentDir maps a content type to its namespace in a backend.
func contentDir(contentType interfaces.ContentType) (string, error) {
	switch contentType {
	case interfaces.CodeType, interfaces.SealedSeedType:
		return contentType.String(), nil
	}
	return "", fmt.Errorf("unsupported content type: %v", contentType)
}
