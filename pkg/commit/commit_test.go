package commit

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/locusflow/locusflow/internal/logger"
	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/streams"
)

// memStore records Put calls for assertions.
type memStore struct {
	puts map[int64]map[string]model.Value
	err  error
}

func (s *memStore) Put(_ context.Context, locusID int64, props map[string]model.Value) error {
	if s.err != nil {
		return s.err
	}
	if s.puts == nil {
		s.puts = make(map[int64]map[string]model.Value)
	}
	s.puts[locusID] = props
	return nil
}

func (s *memStore) Close() error { return nil }

// memPublisher records deliveries.
type memPublisher struct {
	delivered []string
	err       error
}

func (p *memPublisher) Publish(_ context.Context, stream string, _ *filter.Report) error {
	if p.err != nil {
		return p.err
	}
	p.delivered = append(p.delivered, stream)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func makeReport(streams []string, props map[string]model.Value, err error) *filter.Report {
	return &filter.Report{
		InvocationID:  "inv-1",
		LocusID:       7,
		FilterName:    "f",
		NewProperties: props,
		NewStreams:    streams,
		Duration:      time.Millisecond,
		Err:           err,
	}
}

func TestCommit(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	c := New(streams.NewRegistry("a", "b"), store, pub, logger.Nop(), nil)

	report := makeReport([]string{"a", "b"},
		map[string]model.Value{"score": model.FloatValue(0.9)}, nil)

	if err := c.Commit(context.Background(), report); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if !store.puts[7]["score"].Equal(model.FloatValue(0.9)) {
		t.Errorf("stored props = %v", store.puts)
	}
	if len(pub.delivered) != 2 {
		t.Errorf("delivered = %v", pub.delivered)
	}
}

func TestCommit_RejectsFailedReport(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	c := New(streams.NewRegistry("a"), store, pub, logger.Nop(), nil)

	report := makeReport([]string{"a"},
		map[string]model.Value{"x": model.IntValue(1)}, stderrors.New("faulted"))

	err := c.Commit(context.Background(), report)
	if !errors.IsCode(err, errors.CodeCommitFailed) {
		t.Errorf("err = %v, want CodeCommitFailed", err)
	}
	if len(store.puts) != 0 || len(pub.delivered) != 0 {
		t.Error("failed report must have no effects")
	}
}

func TestCommit_ValidatesStreamsBeforeAnyEffect(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	c := New(streams.NewRegistry("a"), store, pub, logger.Nop(), nil)

	// "ghost" was accepted at build time against a different registry;
	// commit-time validation must catch it before any write.
	report := makeReport([]string{"a", "ghost"},
		map[string]model.Value{"x": model.IntValue(1)}, nil)

	err := c.Commit(context.Background(), report)
	if !errors.IsCode(err, errors.CodeUnknownStream) {
		t.Errorf("err = %v, want CodeUnknownStream", err)
	}
	if len(store.puts) != 0 {
		t.Error("properties written despite invalid stream")
	}
	if len(pub.delivered) != 0 {
		t.Error("delivery happened despite invalid stream")
	}
}

func TestCommit_PartialFailureCollected(t *testing.T) {
	store := &memStore{err: stderrors.New("redis down")}
	pub := &memPublisher{}
	c := New(streams.NewRegistry("a"), store, pub, logger.Nop(), nil)

	report := makeReport([]string{"a"},
		map[string]model.Value{"x": model.IntValue(1)}, nil)

	err := c.Commit(context.Background(), report)
	if !errors.IsCode(err, errors.CodeCommitFailed) {
		t.Errorf("err = %v, want CodeCommitFailed", err)
	}
	// Stream delivery still proceeds when only the store fails.
	if len(pub.delivered) != 1 {
		t.Errorf("delivered = %v", pub.delivered)
	}
}

func TestCommit_NilCollaborators(t *testing.T) {
	c := New(streams.NewRegistry("a"), nil, nil, logger.Nop(), nil)

	report := makeReport([]string{"a"},
		map[string]model.Value{"x": model.IntValue(1)}, nil)

	if err := c.Commit(context.Background(), report); err != nil {
		t.Errorf("commit with nil store and publisher should succeed: %v", err)
	}
}

func TestCommitAll(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	c := New(streams.NewRegistry("a"), store, pub, logger.Nop(), nil)

	reports := []*filter.Report{
		makeReport([]string{"a"}, nil, nil),
		makeReport([]string{"bad"}, nil, nil),
		makeReport(nil, map[string]model.Value{"y": model.IntValue(2)}, nil),
	}

	errs := c.CommitAll(context.Background(), reports)
	if len(errs) != 3 {
		t.Fatalf("got %d errors for 3 reports", len(errs))
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected failures: %v", errs)
	}
	if errs[1] == nil {
		t.Error("invalid stream should fail its own report only")
	}
}
