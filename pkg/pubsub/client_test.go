package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceExpandsShortIDs(t *testing.T) {
	c := &Client{project: "site-prod"}

	cases := []struct {
		kind kind
		in   string
		want string
	}{
		{kindTopic, "material-events", "projects/site-prod/topics/material-events"},
		{kindTopic, "projects/other/topics/x", "projects/other/topics/x"},
		{kindSubscription, " notify-sub ", "projects/site-prod/subscriptions/notify-sub"},
		{kindSubscription, "projects/other/subscriptions/y", "projects/other/subscriptions/y"},
		{kindSubscription, "projects/other/topics/y", "projects/site-prod/subscriptions/projects/other/topics/y"},
		{kindTopic, "  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.resource(tc.kind, tc.in), "%s %q", tc.kind, tc.in)
	}
	assert.Empty(t, (&Client{}).resource(kindTopic, "t"), "no project, no name")
}

func TestCompactDropsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, compact(" a ", "", "  ", "b"))
	assert.Empty(t, compact())
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Nil(t, c.Subscription("s"))
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}
