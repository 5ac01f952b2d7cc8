package main

import (
	"context"
	"errors"
	"fmt"
)

type fakeInstance struct {
	connectErr error
	failAt     int
	connects   int
	fetches    int
	closed     int
	queries    []string
}

func (f *fakeInstance) Connect(_ context.Context) (Connection, error) {
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeConnection{instance: f}, nil
}

type fakeConnection struct {
	instance *fakeInstance
}

func (c *fakeConnection) FetchAndDrain(_ context.Context, query string) (int64, error) {
	c.instance.fetches++
	if c.instance.fetches == c.instance.failAt {
		return 0, errors.New("fetch failed")
	}
	c.instance.queries = append(c.instance.queries, query)
	return 42, nil
}

func (c *fakeConnection) Close() error {
	c.instance.closed++
	return nil
}

type fakeRunner struct {
	name        string
	unsupported DbType
	instance    *fakeInstance
	calls       *[]string
	onInit      func()
}

func (r *fakeRunner) Name() string { return r.name }
func (r *fakeRunner) Init(database Database) (Instance, error) {
	if r.calls != nil {
		*r.calls = append(*r.calls, fmt.Sprintf("%v/%v", r.name, database.Name))
	}
	if r.onInit != nil {
		r.onInit()
	}
	if database.DbType == r.unsupported {
		return nil, ErrUnsupported
	}
	if r.instance == nil {
		r.instance = &fakeInstance{}
	}
	return r.instance, nil
}
