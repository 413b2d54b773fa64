package testutil

import (
	"context"
	"sync"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/model"
)

// Step scripts one ClassifyNotify call.
type Step struct {
	Err    error
	Result model.ClassificationResult
	// ColdStarts is the number of retry notifications fired before answering.
	ColdStarts uint
	// Block waits for context cancellation instead of answering.
	Block bool
}

// FakeClassifier answers ClassifyNotify calls from a script. When the script
// runs out the last step repeats.
type FakeClassifier struct {
	started  chan struct{}
	steps    []Step
	payloads []any
	mu       sync.Mutex
}

// NewFakeClassifier creates a classifier answering with steps in order.
func NewFakeClassifier(steps ...Step) *FakeClassifier {
	if len(steps) == 0 {
		steps = []Step{{Result: LegitResult(0.05)}}
	}
	return &FakeClassifier{
		steps:   steps,
		started: make(chan struct{}, 128),
	}
}

// ClassifyNotify implements simulation.Classifier.
func (f *FakeClassifier) ClassifyNotify(ctx context.Context, payload any, onRetry classifier.RetryFunc) (model.ClassificationResult, error) {
	f.mu.Lock()
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	for i := uint(1); i <= step.ColdStarts; i++ {
		if onRetry != nil {
			onRetry(i)
		}
	}

	if step.Block {
		<-ctx.Done()
		return model.ClassificationResult{}, &classifier.Error{
			Kind:    classifier.KindCanceled,
			Message: classifier.MsgCanceled,
			Err:     ctx.Err(),
		}
	}
	return step.Result, step.Err
}

// Started receives a value every time a call begins.
func (f *FakeClassifier) Started() <-chan struct{} {
	return f.started
}

// Payloads returns every payload received so far.
func (f *FakeClassifier) Payloads() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.payloads...)
}

// Calls returns the number of calls so far.
func (f *FakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}
