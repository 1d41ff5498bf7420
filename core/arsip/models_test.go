package arsip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgendaNumber(t *testing.T) {
	march := time.Date(2024, time.March, 12, 8, 0, 0, 0, time.UTC)
	december := time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "0007/IN/III/2024", AgendaNumber(7, KindIncoming, march))
	assert.Equal(t, "0012/OUT/XII/2025", AgendaNumber(12, KindOutgoing, december))
	assert.Equal(t, "12345/IN/XII/2025", AgendaNumber(12345, KindIncoming, december))
}

func TestLetter_IsClosed(t *testing.T) {
	for status, want := range map[string]bool{
		StatusRegistered:    false,
		StatusInDisposition: false,
		StatusCompleted:     true,
		StatusArchived:      true,
	} {
		assert.Equal(t, want, Letter{Status: status}.IsClosed(), status)
	}
}
