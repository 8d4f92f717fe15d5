package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedGroup struct {
	errs  []error
	calls int
}

func (g *scriptedGroup) Consume(context.Context, []string, sarama.ConsumerGroupHandler) error {
	err := g.errs[g.calls]
	g.calls++
	return err
}

func (g *scriptedGroup) Errors() <-chan error      { return nil }
func (g *scriptedGroup) Close() error              { return nil }
func (g *scriptedGroup) Pause(map[string][]int32)  {}
func (g *scriptedGroup) Resume(map[string][]int32) {}
func (g *scriptedGroup) PauseAll()                 {}
func (g *scriptedGroup) ResumeAll()                {}

func TestConsume_RetriesUntilClosed(t *testing.T) {
	oldBackoff := consumeBackoff
	consumeBackoff = time.Millisecond
	defer func() { consumeBackoff = oldBackoff }()

	core, logs := observer.New(zapcore.ErrorLevel)
	group := &scriptedGroup{errs: []error{
		errors.New("broker unreachable"),
		errors.New("broker unreachable"),
		sarama.ErrClosedConsumerGroup,
	}}

	Consume(group, nil, ExchangeTopic, zap.New(core))

	require.Equal(t, 3, group.calls, "transient errors must be retried, close must end the loop")
	require.Equal(t, 2, logs.Len(), "every transient error must be logged")
	for _, entry := range logs.All() {
		require.Equal(t, "consumer group", entry.Message)
	}
}
