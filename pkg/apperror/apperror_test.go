package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type shortage struct{}

func (shortage) Error() string { return "short" }
func (shortage) ErrorKind() Kind { return KindInsufficient }

func TestKindOf(t *testing.T) {
	notFound := New(KindNotFound, "order_not_found")

	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(notFound))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load order: %w", notFound)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInsufficient, KindOf(fmt.Errorf("consume: %w", shortage{})))
	assert.True(t, IsInsufficient(shortage{}))
	assert.Equal(t, "order_not_found", CodeOf(fmt.Errorf("x: %w", notFound)))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", notFound), notFound))
}
