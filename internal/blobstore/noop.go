package blobstore

import "context"

var _ Store = NoopStore{}

// NoopStore satisfies Store when tenant object storage is disabled.
type NoopStore struct{}

func (NoopStore) EnsureContainer(context.Context, string) error { return nil }
func (NoopStore) DeleteContainer(context.Context, string) error { return nil }
