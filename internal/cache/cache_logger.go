package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeDelete deletes keys and logs instead of failing.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// SafeInvalidatePattern invalidates a pattern and logs instead of failing.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// InvalidateExamCache drops a single exam and every cached exam listing.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam, fmt.Sprintf("id:%d", examID))
	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
}

// InvalidatePackCache drops cached pack metadata after authoring changes.
func InvalidatePackCache(ctx context.Context, cm *CacheManager, packID uint) {
	SafeDelete(ctx, cm.Pack, fmt.Sprintf("id:%d", packID))
}
