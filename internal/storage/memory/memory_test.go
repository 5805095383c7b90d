package memory

import (
	"testing"

	"github.com/yndnr/savekeep-go/internal/storage/storagetest"
)

func TestBackend(t *testing.T) {
	storagetest.Run(t, New())
}
