// Package gatewaytest provides an in-memory integration gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jordanlanch/contactsync/pkg/gateway"
)

// Call records one action run against the fake
type Call struct {
	Key     string
	Action  string
	Payload any
}

// Fake implements gateway.Factory and gateway.Client
type Fake struct {
	mu          sync.Mutex
	connections []gateway.Connection
	connErr     error
	initErr     error
	errs        map[string]error
	failTimes   map[string]int
	delays      map[string]time.Duration
	outputs     map[string]any
	calls       []Call
	auths       []gateway.Auth
	seq         int
}

// New returns a fake with one active connection per key, in order
func New(keys ...string) *Fake {
	f := &Fake{
		errs:      make(map[string]error),
		failTimes: make(map[string]int),
		delays:    make(map[string]time.Duration),
		outputs:   make(map[string]any),
	}
	for _, key := range keys {
		f.connections = append(f.connections, gateway.Connection{
			ID:          "conn-" + key,
			Name:        key,
			Integration: gateway.ConnectionIntegration{ID: "int-" + key, Key: key, Name: key},
		})
	}
	return f
}

// AddConnection appends an arbitrary connection
func (f *Fake) AddConnection(conn gateway.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, conn)
}

// FailInit makes Client return a *gateway.ClientError wrapping err
func (f *Fake) FailInit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initErr = err
}

// FailConnections makes Connections return err
func (f *Fake) FailConnections(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connErr = err
}

// FailOn makes every run of action on key fail with err
func (f *Fake) FailOn(key, action string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key+"/"+action] = err
}

// FailTimes makes the first n runs of action on key fail with err
func (f *Fake) FailTimes(key, action string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key+"/"+action] = err
	f.failTimes[key+"/"+action] = n
}

// Delay makes every run on key block for d or until the context ends
func (f *Fake) Delay(key string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[key] = d
}

// SetOutput fixes the output returned by action on key
func (f *Fake) SetOutput(key, action string, output any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[key+"/"+action] = output
}

// Client returns the fake itself
func (f *Fake) Client(ctx context.Context, auth gateway.Auth) (gateway.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths = append(f.auths, auth)
	if f.initErr != nil {
		return nil, gateway.NewClientError(f.initErr)
	}
	return f, nil
}

// Connections lists the configured connections
func (f *Fake) Connections(ctx context.Context) ([]gateway.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return nil, f.connErr
	}
	return append([]gateway.Connection(nil), f.connections...), nil
}

// RunAction records the call and returns the configured result
func (f *Fake) RunAction(ctx context.Context, key, action string, payload any) (*gateway.ActionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Key: key, Action: action, Payload: payload})
	delay := f.delays[key]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := key + "/" + action
	if err, ok := f.errs[id]; ok {
		if n, limited := f.failTimes[id]; !limited || n > 0 {
			if limited {
				f.failTimes[id] = n - 1
			}
			return nil, err
		}
	}

	if out, ok := f.outputs[id]; ok {
		return &gateway.ActionResult{Output: out}, nil
	}

	if action == gateway.ActionCreateContacts {
		f.seq++
		return &gateway.ActionResult{Output: map[string]any{"id": fmt.Sprintf("%s-ext-%d", key, f.seq)}}, nil
	}
	return &gateway.ActionResult{Output: map[string]any{}}, nil
}

// Calls returns every recorded action run
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns the recorded runs against key
func (f *Fake) CallsFor(key string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// Auths returns the credentials clients were requested for
func (f *Fake) Auths() []gateway.Auth {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Auth(nil), f.auths...)
}
