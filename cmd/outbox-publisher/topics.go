package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicCache opens one publisher per topic and keeps it until stopAll.
type topicCache struct {
	mu   sync.Mutex
	open func(topic string) topicPublisher
	pubs map[string]topicPublisher
}

func newTopicCache(open func(topic string) topicPublisher) *topicCache {
	return &topicCache{open: open, pubs: make(map[string]topicPublisher)}
}

func (c *topicCache) get(topic string) topicPublisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.pubs[topic]; ok {
		return pub
	}
	pub := c.open(topic)
	if pub == nil {
		return nil
	}
	c.pubs[topic] = pub
	return pub
}

func (c *topicCache) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, pub := range c.pubs {
		pub.Stop()
		delete(c.pubs, topic)
	}
}

// gcpTopic adapts a Pub/Sub v2 publisher to topicPublisher.
type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func openGCPTopic(lookup func(name string) *gcppubsub.Publisher) func(string) topicPublisher {
	return func(topic string) topicPublisher {
		pub := lookup(topic)
		if pub == nil {
			return nil
		}
		return gcpTopic{pub: pub}
	}
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := t.pub.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return gcpResult{res: res}
}

func (t gcpTopic) Stop() {
	t.pub.Stop()
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
