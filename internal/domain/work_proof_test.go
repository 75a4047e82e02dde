package domain

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewStateFromBool(t *testing.T) {
	assert.Equal(t, ReviewPending, ReviewStateFromBool(sql.NullBool{}))
	assert.Equal(t, ReviewApproved, ReviewStateFromBool(sql.NullBool{Valid: true, Bool: true}))
	assert.Equal(t, ReviewRejected, ReviewStateFromBool(sql.NullBool{Valid: true, Bool: false}))
}

func TestReviewStateRoundTrip(t *testing.T) {
	for _, s := range []ReviewState{ReviewPending, ReviewApproved, ReviewRejected} {
		assert.Equal(t, s, ReviewStateFromBool(s.ToBool()))
	}
}

func TestReviewStateDecided(t *testing.T) {
	assert.False(t, ReviewPending.Decided())
	assert.True(t, ReviewApproved.Decided())
	assert.True(t, ReviewRejected.Decided())
}
