package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReplyWithoutKey(t *testing.T) {
	t.Parallel()
	c := New("")
	assert.False(t, c.Enabled())

	reply, err := c.ClassifyReply(context.Background(), "I already had it")
	assert.ErrorIs(t, err, ErrClientNotInitialised)
	assert.Equal(t, ReplyUnknown, reply)

	_, err = c.ClassifyReply(context.Background(), "   ")
	assert.Error(t, err)
}

func TestParseLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ReplyTaken, parseLabel(" Taken."))
	assert.Equal(t, ReplyMissed, parseLabel("\"missed\""))
	assert.Equal(t, ReplySnooze, parseLabel("snooze"))
	assert.Equal(t, ReplyUnknown, parseLabel("maybe later"))
}
