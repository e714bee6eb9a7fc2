package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackNames(t *testing.T) {
	ctx := context.Background()
	var degraded []int64
	lookup := func(_ context.Context, id int64) (string, error) {
		switch id {
		case 1:
			return "  Ada ", nil
		case 2:
			return "", nil
		default:
			return "", errors.New("boom")
		}
	}
	resolve := FallbackNames(lookup, "Unknown", func(_ context.Context, id int64, _ error) {
		degraded = append(degraded, id)
	})

	require.Equal(t, "Ada", resolve(ctx, 1))
	require.Equal(t, "Unknown", resolve(ctx, 2))
	require.Equal(t, "Unknown", resolve(ctx, 3))
	require.Equal(t, []int64{2, 3}, degraded)
}

func TestFallbackNamesWithoutObserver(t *testing.T) {
	resolve := FallbackNames(func(context.Context, int64) (string, error) {
		return "", errors.New("boom")
	}, "?", nil)

	require.Equal(t, "?", resolve(context.Background(), 1))
}
