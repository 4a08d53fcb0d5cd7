package core

import (
	"sync"
	"testing"
	"time"

	"github.com/sisu-network/dewatch/config"
	"github.com/sisu-network/dewatch/types"
	"github.com/stretchr/testify/require"
)

func mockForProcessor() (config.Dewatch, *MockClient, *MockTransmitter) {
	cfg := config.Dewatch{
		Chain: config.Chain{
			Chain:     "bitcoin-regtest",
			BlockTime: 1000,
			Rpcs:      []string{"http://localhost:18443"},
		},
	}

	return cfg, &MockClient{}, &MockTransmitter{}
}

func TestProcessor_ForwardsTriggers(t *testing.T) {
	cfg, subscriberClient, transmitter := mockForProcessor()

	done := &sync.WaitGroup{}
	done.Add(1)

	subscriberClient.PostWatchTriggerFunc = func(trigger *types.WatchTrigger) error {
		require.Equal(t, types.TriggerSpentBasic, trigger.Kind)
		require.Equal(t, "channel-1", trigger.Subscriber)
		done.Done()
		return nil
	}

	processor := NewProcessor(&cfg, nil, subscriberClient, transmitter)
	processor.Start()
	processor.SetSubscriberReady(true)

	op := testOutPoint(1, 0)
	processor.AddWatch(&types.Watch{
		Subscriber: "channel-1",
		Kind:       types.WatchKindSpentBasic,
		Outpoint:   op,
	})
	processor.ObserveConfirmation(types.NewTxObservation(spendTx(op, 0), 100, 1))

	done.Wait()
}

func TestProcessor_HoldsTriggersUntilSubscriberReady(t *testing.T) {
	cfg, subscriberClient, transmitter := mockForProcessor()

	posted := make(chan *types.WatchTrigger, 10)
	subscriberClient.PostWatchTriggerFunc = func(trigger *types.WatchTrigger) error {
		posted <- trigger
		return nil
	}

	processor := NewProcessor(&cfg, nil, subscriberClient, transmitter)
	processor.Start()

	op := testOutPoint(1, 0)
	processor.AddWatch(&types.Watch{
		Subscriber: "channel-1",
		Kind:       types.WatchKindSpent,
		Outpoint:   op,
	})
	processor.ObserveConfirmation(types.NewTxObservation(spendTx(op, 0), 100, 1))

	select {
	case <-posted:
		t.Fatal("trigger was forwarded before the subscriber was ready")
	case <-time.After(100 * time.Millisecond):
	}

	processor.SetSubscriberReady(true)

	select {
	case trigger := <-posted:
		require.Equal(t, types.TriggerSpent, trigger.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("held-back trigger was not flushed")
	}
}

func TestProcessor_ReadinessFlushKeepsOrder(t *testing.T) {
	cfg, subscriberClient, transmitter := mockForProcessor()

	posted := make(chan *types.WatchTrigger, 10)
	subscriberClient.PostWatchTriggerFunc = func(trigger *types.WatchTrigger) error {
		posted <- trigger
		return nil
	}

	processor := NewProcessor(&cfg, nil, subscriberClient, transmitter)
	processor.Start()

	op1 := testOutPoint(1, 0)
	op2 := testOutPoint(2, 0)
	processor.AddWatch(&types.Watch{
		Subscriber: "channel-1",
		Kind:       types.WatchKindSpentBasic,
		Outpoint:   op1,
		Payload:    "first",
	})
	processor.AddWatch(&types.Watch{
		Subscriber: "channel-1",
		Kind:       types.WatchKindSpentBasic,
		Outpoint:   op2,
		Payload:    "second",
	})

	// First trigger arrives while the subscriber is not ready and is held
	// back.
	processor.ObserveConfirmation(types.NewTxObservation(spendTx(op1, 0), 100, 1))
	time.Sleep(100 * time.Millisecond)

	// Second trigger arrives after the ready flag is set but before the
	// flush happens. It must not overtake the held-back one.
	processor.subscriberReady.Store(true)
	processor.ObserveConfirmation(types.NewTxObservation(spendTx(op2, 0), 100, 1))
	time.Sleep(100 * time.Millisecond)

	processor.readyCh <- true

	for _, want := range []string{"first", "second"} {
		select {
		case trigger := <-posted:
			require.Equal(t, want, trigger.Payload)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for trigger ", want)
		}
	}
}

func TestProcessor_WatchSubscriber(t *testing.T) {
	cfg, subscriberClient, transmitter := mockForProcessor()

	processor := NewProcessor(&cfg, nil, subscriberClient, transmitter)
	processor.Start()

	processor.AddWatch(&types.Watch{
		Subscriber: "channel-1",
		Kind:       types.WatchKindSpent,
		Outpoint:   testOutPoint(1, 0),
	})
	require.Eventually(t, func() bool { return processor.WatchCount() == 1 },
		5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	processor.WatchSubscriber("channel-1", done)
	close(done)

	require.Eventually(t, func() bool { return processor.WatchCount() == 0 },
		5*time.Second, 10*time.Millisecond)
}
