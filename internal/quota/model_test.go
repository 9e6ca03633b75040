package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/usagegate/usagegate/internal/plan"
)

func TestResourceTypeValid(t *testing.T) {
	assert.True(t, ResourceDocuments.Valid())
	assert.True(t, ResourceAPICalls.Valid())
	assert.True(t, ResourceStorage.Valid())
	assert.False(t, ResourceType("gpu_hours").Valid())
	assert.False(t, ResourceType("").Valid())
}

func TestResourceTypeWindowed(t *testing.T) {
	assert.True(t, ResourceAPICalls.Windowed())
	assert.False(t, ResourceDocuments.Windowed())
	assert.False(t, ResourceStorage.Windowed())
}

func TestResourceTypeWindow(t *testing.T) {
	assert.Equal(t, 24*time.Hour, ResourceAPICalls.Window())
}

func TestLimitFor(t *testing.T) {
	limits := plan.Limits{
		Documents:     50,
		APICallsDaily: 500,
		StorageMB:     1024,
	}

	assert.Equal(t, int64(50), LimitFor(limits, ResourceDocuments))
	assert.Equal(t, int64(500), LimitFor(limits, ResourceAPICalls))
	assert.Equal(t, int64(1024), LimitFor(limits, ResourceStorage))
	assert.Equal(t, int64(0), LimitFor(limits, ResourceType("gpu_hours")))
}

func TestRecordRemaining(t *testing.T) {
	r := &Record{Limit: 20, Used: 5}
	assert.Equal(t, int64(15), r.Remaining())

	r.Used = 20
	assert.Equal(t, int64(0), r.Remaining())

	// Used can overshoot the limit after a plan downgrade. Remaining
	// clamps at zero rather than going negative.
	r.Used = 35
	assert.Equal(t, int64(0), r.Remaining())
}
