package security

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow_FirstRequestStartsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 30, time.Minute)

	mock.ExpectIncr("ratelimit:user:user-1").SetVal(1)
	mock.ExpectExpire("ratelimit:user:user-1", time.Minute).SetVal(true)

	assert.True(t, limiter.Allow(context.Background(), "user:user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_OverBudget(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 30, time.Minute)

	mock.ExpectIncr("ratelimit:10.0.0.1").SetVal(31)

	assert.False(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_RedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 30, time.Minute)

	mock.ExpectIncr("ratelimit:user:user-1").SetErr(context.DeadlineExceeded)

	assert.True(t, limiter.Allow(context.Background(), "user:user-1"),
		"redis outage must not block the endpoint")
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, isSuspiciousUserAgent("my-crawler"))
	assert.True(t, isSuspiciousUserAgent("WebScraper 1.0"))
	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (X11; Linux x86_64)"))
	assert.False(t, isSuspiciousUserAgent(""))
}
