package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/docshare/docsync/internal/record"
)

// Fake is an in-memory Store for tests. It serves canned rows, records
// every call, and counts channel opens and cancels so tests can assert
// subscription lifecycles and teardown ordering.
type Fake struct {
	mu sync.Mutex

	// Records served by FetchAll, keyed by domain.
	records map[record.Domain][]Record

	// Injectable failures.
	FetchErr map[record.Domain]error
	WriteErr error
	BatchErr error
	SubErr   error

	// Call accounting.
	FetchCalls map[record.Domain]int
	Written    []Op
	Batches    [][]Op

	// Subscription accounting. Calls logs "open:<domain>:<owner>" and
	// "cancel:<domain>:<owner>" in invocation order.
	Calls []string
	subs  map[string]*fakeSub
}

type fakeSub struct {
	key     string
	handler SnapshotHandler
	active  bool
}

// NewFake creates an empty fake remote store.
func NewFake() *Fake {
	return &Fake{
		records:    make(map[record.Domain][]Record),
		FetchErr:   make(map[record.Domain]error),
		FetchCalls: make(map[record.Domain]int),
		subs:       make(map[string]*fakeSub),
	}
}

// Seed replaces the rows served for a domain.
func (f *Fake) Seed(domain record.Domain, records ...Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[domain] = records
}

// FetchAll implements Store.FetchAll.
func (f *Fake) FetchAll(ctx context.Context, domain record.Domain, filter Filter) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FetchCalls[domain]++
	if err := f.FetchErr[domain]; err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range f.records[domain] {
		if filter.Owner != "" {
			owner, _ := record.StringField(rec.Fields, "owner_id")
			if owner != filter.Owner {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Write implements Store.Write.
func (f *Fake) Write(ctx context.Context, domain record.Domain, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.Written = append(f.Written, Op{Domain: domain, ID: rec.ID, Fields: rec.Fields})
	replaced := false
	for i, existing := range f.records[domain] {
		if existing.ID == rec.ID {
			f.records[domain][i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		f.records[domain] = append(f.records[domain], rec)
	}
	return nil
}

// UpdateFields implements Store.UpdateFields.
func (f *Fake) UpdateFields(ctx context.Context, domain record.Domain, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.Written = append(f.Written, Op{Domain: domain, ID: id, Fields: fields})
	for i, existing := range f.records[domain] {
		if existing.ID == id {
			if existing.Fields == nil {
				existing.Fields = make(map[string]any)
			}
			for k, v := range fields {
				existing.Fields[k] = v
			}
			f.records[domain][i] = existing
			return nil
		}
	}
	return &ServiceError{Code: 404, Message: fmt.Sprintf("no %s row %q", domain, id)}
}

// Delete implements Store.Delete.
func (f *Fake) Delete(ctx context.Context, domain record.Domain, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.Written = append(f.Written, Op{Domain: domain, ID: id, Delete: true})
	rows := f.records[domain]
	for i, existing := range rows {
		if existing.ID == id {
			f.records[domain] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	return nil
}

// BatchWrite implements Store.BatchWrite.
func (f *Fake) BatchWrite(ctx context.Context, ops []Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Batches = append(f.Batches, ops)
	if f.BatchErr != nil {
		return f.BatchErr
	}

	for _, op := range ops {
		if op.Delete {
			rows := f.records[op.Domain]
			for i, existing := range rows {
				if existing.ID == op.ID {
					f.records[op.Domain] = append(rows[:i], rows[i+1:]...)
					break
				}
			}
			continue
		}
		merged := false
		for i, existing := range f.records[op.Domain] {
			if existing.ID == op.ID {
				if existing.Fields == nil {
					existing.Fields = make(map[string]any)
				}
				for k, v := range op.Fields {
					existing.Fields[k] = v
				}
				f.records[op.Domain][i] = existing
				merged = true
				break
			}
		}
		if !merged {
			f.records[op.Domain] = append(f.records[op.Domain], Record{ID: op.ID, Fields: op.Fields})
		}
	}
	return nil
}

// Subscribe implements Store.Subscribe.
func (f *Fake) Subscribe(ctx context.Context, domain record.Domain, filter Filter, h SnapshotHandler) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubErr != nil {
		return nil, f.SubErr
	}

	key := subKey(domain, filter.Owner)
	sub := &fakeSub{key: key, handler: h, active: true}
	f.subs[key] = sub
	f.Calls = append(f.Calls, "open:"+key)

	return NewSubscription(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.active = false
		if f.subs[key] == sub {
			delete(f.subs, key)
		}
		f.Calls = append(f.Calls, "cancel:"+key)
	}), nil
}

// Push delivers a snapshot to the active subscription for (domain,
// owner), if any. Returns whether a handler was invoked.
func (f *Fake) Push(domain record.Domain, owner string, records []Record) bool {
	f.mu.Lock()
	sub, ok := f.subs[subKey(domain, owner)]
	f.mu.Unlock()

	if !ok || !sub.active {
		return false
	}
	sub.handler(records)
	return true
}

// OpenSubscriptions returns the number of currently active channels.
func (f *Fake) OpenSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// CallLog returns a copy of the open/cancel ordering log.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// Fetches returns the number of FetchAll calls for a domain.
func (f *Fake) Fetches(domain record.Domain) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FetchCalls[domain]
}

// Rows returns a copy of the rows currently held for a domain.
func (f *Fake) Rows(domain record.Domain) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records[domain]))
	copy(out, f.records[domain])
	return out
}

func subKey(domain record.Domain, owner string) string {
	return string(domain) + ":" + owner
}
