package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/actionmesh/guard"
	"github.com/hupe1980/actionmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recording(rec *testutil.Recorder, id string) Handler {
	return func(f *Flow, p any) (any, error) {
		rec.Record(id, p)
		return id, nil
	}
}

func TestDispatch_ZeroHandlersResolvesEmpty(t *testing.T) {
	reg := New()

	res, err := reg.Dispatch(context.Background(), "missing", map[string]any{"data": "abc"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Aborted)
	assert.Empty(t, res.Results)
}

func TestDispatch_SequentialPriorityOrder(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", recording(rec, "validate"), func(c *HandlerConfig) { c.ID = "validate"; c.Priority = 100 })
	reg.Register("save", recording(rec, "persist"), func(c *HandlerConfig) { c.ID = "persist"; c.Priority = 50 })
	reg.Register("save", recording(rec, "log"), func(c *HandlerConfig) { c.ID = "log"; c.Priority = 10 })

	res, err := reg.Dispatch(context.Background(), "save", map[string]any{"data": "abc"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Results, 3)
	assert.Equal(t, []string{"validate", "persist", "log"}, rec.IDs())
}

func TestDispatch_Abort(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", func(f *Flow, p any) (any, error) {
		rec.Record("stopper", p)
		f.Abort("stop")
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "stopper"; c.Priority = 10 })
	reg.Register("save", recording(rec, "later"), func(c *HandlerConfig) { c.ID = "later"; c.Priority = 5 })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Aborted)
	assert.Equal(t, "stop", res.AbortReason)
	assert.Equal(t, []string{"stopper"}, rec.IDs())
}

func TestDispatch_ModifyPayloadPropagates(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", func(f *Flow, p any) (any, error) {
		f.ModifyPayload(func(current any) any {
			m := map[string]any{}
			for k, v := range current.(map[string]any) {
				m[k] = v
			}
			m["x"] = 1
			return m
		})
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "enrich"; c.Priority = 10 })
	reg.Register("save", recording(rec, "consume"), func(c *HandlerConfig) { c.ID = "consume"; c.Priority = 5 })

	res, err := reg.Dispatch(context.Background(), "save", map[string]any{"data": "abc"})

	require.NoError(t, err)
	require.Equal(t, 1, rec.Len())
	got := rec.Payloads()[0].(map[string]any)
	assert.Equal(t, 1, got["x"])
	assert.Equal(t, "abc", got["data"])
	assert.Equal(t, 1, res.Payload.(map[string]any)["x"])
}

func TestDispatch_JumpToPrioritySkipsMiddle(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", func(f *Flow, p any) (any, error) {
		rec.Record("head", p)
		f.JumpToPriority(10)
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "head"; c.Priority = 100 })
	reg.Register("save", recording(rec, "middle"), func(c *HandlerConfig) { c.ID = "middle"; c.Priority = 50 })
	reg.Register("save", recording(rec, "tail"), func(c *HandlerConfig) { c.ID = "tail"; c.Priority = 10 })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"head", "tail"}, rec.IDs())
	assert.Len(t, res.Results, 2)
}

func TestDispatch_JumpPastEndCompletesPipeline(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", func(f *Flow, p any) (any, error) {
		rec.Record("head", p)
		f.JumpToPriority(-1000)
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "head"; c.Priority = 10 })
	reg.Register("save", recording(rec, "tail"), func(c *HandlerConfig) { c.ID = "tail"; c.Priority = 5 })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"head"}, rec.IDs())
}

func TestDispatch_OnceRemovesHandlerAfterExecution(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("init", recording(rec, "boot"), func(c *HandlerConfig) { c.ID = "boot"; c.Once = true })

	_, err := reg.Dispatch(context.Background(), "init", nil)
	require.NoError(t, err)
	_, err = reg.Dispatch(context.Background(), "init", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, 0, reg.HandlerCount("init"))
}

func TestDispatch_ConditionSkips(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", recording(rec, "guarded"), func(c *HandlerConfig) {
		c.ID = "guarded"
		c.Condition = func() bool { return false }
	})
	reg.Register("save", recording(rec, "open"), func(c *HandlerConfig) { c.ID = "open" })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"open"}, rec.IDs())

	hr, ok := res.Result("guarded")
	require.True(t, ok)
	assert.True(t, hr.Skipped)
	assert.Equal(t, SkipCondition, hr.SkipReason)
}

func TestDispatch_ValidationSkipsWithoutFailing(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("save", recording(rec, "strict"), func(c *HandlerConfig) {
		c.ID = "strict"
		c.Validate = func(p any) bool { _, ok := p.(string); return ok }
	})

	res, err := reg.Dispatch(context.Background(), "save", 42)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, rec.Len())

	hr, _ := res.Result("strict")
	assert.Equal(t, SkipValidation, hr.SkipReason)
}

func TestDispatch_NonBlockingErrorIsIsolated(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()
	boom := errors.New("boom")

	reg.Register("save", func(f *Flow, p any) (any, error) { return nil, boom },
		func(c *HandlerConfig) { c.ID = "flaky"; c.Priority = 10 })
	reg.Register("save", recording(rec, "steady"), func(c *HandlerConfig) { c.ID = "steady"; c.Priority = 5 })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Aborted)
	assert.Equal(t, []string{"steady"}, rec.IDs())

	hr, _ := res.Result("flaky")
	assert.ErrorIs(t, hr.Err, boom)
}

func TestDispatch_BlockingErrorFailsDispatch(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()
	boom := errors.New("boom")

	reg.Register("save", func(f *Flow, p any) (any, error) { return nil, boom },
		func(c *HandlerConfig) { c.ID = "critical"; c.Priority = 10; c.Blocking = true })
	reg.Register("save", recording(rec, "later"), func(c *HandlerConfig) { c.ID = "later"; c.Priority = 5 })

	_, err := reg.Dispatch(context.Background(), "save", nil)

	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "critical", herr.HandlerID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, rec.Len())
}

func TestDispatch_PanicIsRecoveredAsError(t *testing.T) {
	reg := New()

	reg.Register("save", func(f *Flow, p any) (any, error) { panic("kaput") },
		func(c *HandlerConfig) { c.ID = "panicky" })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	hr, _ := res.Result("panicky")
	require.Error(t, hr.Err)
	assert.Contains(t, hr.Err.Error(), "kaput")
}

func TestDispatch_Timeout(t *testing.T) {
	reg := New()

	reg.Register("slow", func(f *Flow, p any) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, nil
	})

	_, err := reg.Dispatch(context.Background(), "slow", nil, func(o *DispatchOptions) {
		o.Timeout = 30 * time.Millisecond
	})

	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "slow", terr.Action)
}

func TestDispatch_ExternalCancelRejects(t *testing.T) {
	reg := New()

	started := make(chan struct{})
	reg.Register("slow", func(f *Flow, p any) (any, error) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := reg.Dispatch(ctx, "slow", nil)

	var aerr *AbortError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatch_ParallelRunsAllHandlers(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	slow := func(id string) Handler {
		return func(f *Flow, p any) (any, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(30 * time.Millisecond)
			rec.Record(id, p)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return id, nil
		}
	}

	reg.Register("fetch", slow("a"), func(c *HandlerConfig) { c.ID = "a" })
	reg.Register("fetch", slow("b"), func(c *HandlerConfig) { c.ID = "b" })
	reg.Register("fetch", slow("c"), func(c *HandlerConfig) { c.ID = "c" })

	res, err := reg.Dispatch(context.Background(), "fetch", nil, func(o *DispatchOptions) {
		o.Mode = ModeParallel
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Results, 3)
	assert.Equal(t, 3, rec.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, maxInFlight, 1, "handlers should overlap in parallel mode")
}

func TestDispatch_RaceResolvesWithFirstSettled(t *testing.T) {
	reg := New()

	reg.Register("probe", func(f *Flow, p any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "fast", nil
	}, func(c *HandlerConfig) { c.ID = "fast" })
	reg.Register("probe", func(f *Flow, p any) (any, error) {
		time.Sleep(150 * time.Millisecond)
		return "slow", nil
	}, func(c *HandlerConfig) { c.ID = "slow" })

	res, err := reg.Dispatch(context.Background(), "probe", nil, func(o *DispatchOptions) {
		o.Mode = ModeRace
	})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "fast", res.Results[0].HandlerID)
	assert.Equal(t, "fast", res.Results[0].Value)
}

func TestDispatch_BlockedRejectsByDefault(t *testing.T) {
	reg := New()

	started := make(chan struct{})
	release := make(chan struct{})
	reg.Register("save", func(f *Flow, p any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "holder"; c.Blocking = true })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := reg.Dispatch(context.Background(), "save", nil)
		assert.NoError(t, err)
	}()

	<-started
	_, err := reg.Dispatch(context.Background(), "save", nil)

	var berr *BlockedError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "save", berr.Action)

	close(release)
	<-done
}

func TestDispatch_BlockedWaitPolicy(t *testing.T) {
	reg := New(func(o *Options) { o.BlockPolicy = guard.BlockPolicyWait })
	rec := testutil.NewRecorder()

	started := make(chan struct{})
	release := make(chan struct{})
	reg.Register("save", func(f *Flow, p any) (any, error) {
		rec.Record("run", p)
		select {
		case <-started:
		default:
			close(started)
			<-release
		}
		return nil, nil
	}, func(c *HandlerConfig) { c.ID = "holder"; c.Blocking = true })

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, err := reg.Dispatch(context.Background(), "save", "one")
		assert.NoError(t, err)
	}()

	<-started
	second := make(chan *DispatchResult, 1)
	go func() {
		res, err := reg.Dispatch(context.Background(), "save", "two")
		assert.NoError(t, err)
		second <- res
	}()

	// The second dispatch must park while the first holds the block.
	select {
	case <-second:
		t.Fatal("second dispatch ran while action was blocked")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-first

	select {
	case res := <-second:
		assert.True(t, res.Success)
	case <-time.After(time.Second):
		t.Fatal("second dispatch never completed")
	}

	assert.Equal(t, 2, rec.Len())
}

func TestDispatch_DebounceOnlyLastCallExecutes(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("search", recording(rec, "query"), func(c *HandlerConfig) {
		c.ID = "query"
		c.Debounce = 60 * time.Millisecond
	})

	for _, q := range []string{"a", "ab"} {
		res, err := reg.Dispatch(context.Background(), "search", q)
		require.NoError(t, err)
		hr, _ := res.Result("query")
		assert.Equal(t, SkipDebounced, hr.SkipReason)
		time.Sleep(20 * time.Millisecond)
	}
	res, err := reg.Dispatch(context.Background(), "search", "abc")
	require.NoError(t, err)
	hr, _ := res.Result("query")
	assert.Equal(t, SkipDebounced, hr.SkipReason)

	require.True(t, rec.WaitFor(1, time.Second))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, "abc", rec.Payloads()[0])
}

func TestDispatch_ThrottleBurstExecutesOnce(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("scroll", recording(rec, "track"), func(c *HandlerConfig) {
		c.ID = "track"
		c.Throttle = 100 * time.Millisecond
	})

	executed, skipped := 0, 0
	for i := 0; i < 5; i++ {
		res, err := reg.Dispatch(context.Background(), "scroll", i)
		require.NoError(t, err)
		hr, _ := res.Result("track")
		if hr.Skipped {
			skipped++
		} else {
			executed++
		}
	}

	assert.Equal(t, 1, executed)
	assert.Equal(t, 4, skipped)
	assert.Equal(t, 1, rec.Len())
}

func TestDispatch_ActionDispatchedCallbackCanVeto(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()
	veto := errors.New("not allowed")

	reg.RegisterCallback(NewFunctionCallback(CallbackActionDispatched, func(_ context.Context, cc *CallbackContext) error {
		if cc.Action == "forbidden" {
			return veto
		}
		return nil
	}))
	reg.Register("forbidden", recording(rec, "h"))

	_, err := reg.Dispatch(context.Background(), "forbidden", nil)

	assert.ErrorIs(t, err, veto)
	assert.Equal(t, 0, rec.Len())
}

func TestDispatch_PipelineCompletedCallbackSeesResult(t *testing.T) {
	reg := New()

	var got *DispatchResult
	reg.RegisterCallback(NewFunctionCallback(CallbackPipelineCompleted, func(_ context.Context, cc *CallbackContext) error {
		got = cc.Result
		return nil
	}))
	reg.Register("save", noopHandler, func(c *HandlerConfig) { c.ID = "h" })

	res, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.DispatchID, got.DispatchID)
	assert.True(t, got.Success)
}

func TestDispatch_OnErrorCallbackFires(t *testing.T) {
	reg := New()
	boom := errors.New("boom")

	var seen []error
	reg.RegisterCallback(NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
		seen = append(seen, cc.Err)
		return nil
	}))
	reg.Register("save", func(f *Flow, p any) (any, error) { return nil, boom })

	_, err := reg.Dispatch(context.Background(), "save", nil)

	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.ErrorIs(t, seen[0], boom)
}

func TestDispatch_ConcurrentSameActionUsesIsolatedContexts(t *testing.T) {
	reg := New()
	rec := testutil.NewRecorder()

	reg.Register("tick", func(f *Flow, p any) (any, error) {
		time.Sleep(20 * time.Millisecond)
		rec.Record(f.DispatchID(), p)
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := reg.Dispatch(context.Background(), "tick", i)
			assert.NoError(t, err)
			assert.True(t, res.Success)
		}(i)
	}
	wg.Wait()

	calls := rec.Calls()
	require.Len(t, calls, 3)
	ids := map[string]bool{}
	for _, c := range calls {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3, "each dispatch gets its own context")
}
