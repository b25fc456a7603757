package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

type kind string

const (
	kindTopic        kind = "topics"
	kindSubscription kind = "subscriptions"
)

var errNotInitialized = errors.New("pubsub client not initialized")

// Client is a thin wrapper that accepts short ids or full resource names.
type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and fails fast when the configured resources are
// missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	inner, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: inner, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = inner.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", project), "pubsub client initialized")
	}
	return c, nil
}

// Subscription returns nil when name is blank.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resource(kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := c.resource(kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

// Ping checks the configured subscriptions exist. A publish-only process has
// none, so its topics are checked instead.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	k, names := kindSubscription, compact(c.cfg.DomainSubscription, c.cfg.NotificationSubscription)
	if len(names) == 0 {
		k, names = kindTopic, compact(c.cfg.DomainTopic, c.cfg.NotificationTopic)
	}
	if len(names) == 0 {
		return errors.New("pubsub topic or subscription name is required")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error { return c.exists(gctx, k, name) })
	}
	return g.Wait()
}

func (c *Client) exists(ctx context.Context, k kind, name string) error {
	full := c.resource(k, name)
	var err error
	switch k {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(string(k), "s"), name)
	default:
		return fmt.Errorf("checking %s: %w", full, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resource expands a short id into projects/<p>/<kind>/<id>. Full names pass
// through untouched.
func (c *Client) resource(k kind, name string) string {
	if c == nil {
		return ""
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(k)+"/"):
		return name
	case c.project == "":
		return ""
	}
	return "projects/" + c.project + "/" + string(k) + "/" + name
}

func compact(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
