package db

import (
	"context"
	"testing"
)

func TestNewPoolRejectsBadURL(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "://not-a-url"})
	if err == nil {
		t.Fatal("expected parse error for malformed url")
	}
}
