// Copyright 2026 The mlsgov Authors
// SPDX-License-Identifier: Apache-2.0

package keypackage

import (
	"errors"
	"sync"

	"github.com/mlsgov/platform/lib/identity"
)

// ErrCapacity is returned by Upload when a user's KeyPackage queue is
// already at maxPerUser.
var ErrCapacity = errors.New("keypackage: pool at capacity for this user")

// userQueue is a per-user FIFO of uploaded KeyPackages, guarded by its
// own mutex so retrieval for one user never contends with uploads for
// another (the Delivery Service's per-user-slot locking discipline —
// see lib/dsstate).
type userQueue struct {
	mu       sync.Mutex
	packages []KeyPackage
}

// Pool is the Delivery Service's per-user KeyPackage store. Upload is
// unauthenticated at the DS — authenticity is checked downstream by
// the inviting client against the Authentication Service's credential
// record.
type Pool struct {
	maxPerUser int

	mu     sync.RWMutex
	queues map[identity.UserID]*userQueue
}

// NewPool creates an empty Pool. maxPerUser bounds how many
// KeyPackages a single user may have queued at once (DSConfig's
// max_key_packages_per_user); zero or negative means unbounded.
func NewPool(maxPerUser int) *Pool {
	return &Pool{
		maxPerUser: maxPerUser,
		queues:     make(map[identity.UserID]*userQueue),
	}
}

// queueFor returns the userQueue for owner, creating it if absent.
func (p *Pool) queueFor(owner identity.UserID) *userQueue {
	p.mu.RLock()
	queue, ok := p.queues[owner]
	p.mu.RUnlock()
	if ok {
		return queue
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if queue, ok := p.queues[owner]; ok {
		return queue
	}
	queue = &userQueue{}
	p.queues[owner] = queue
	return queue
}

// Upload appends pkgs to owner's queue. Returns ErrCapacity without
// appending any package if doing so would exceed maxPerUser.
func (p *Pool) Upload(owner identity.UserID, pkgs []KeyPackage) error {
	queue := p.queueFor(owner)

	queue.mu.Lock()
	defer queue.mu.Unlock()

	if p.maxPerUser > 0 && len(queue.packages)+len(pkgs) > p.maxPerUser {
		return ErrCapacity
	}
	queue.packages = append(queue.packages, pkgs...)
	return nil
}

// Retrieve pops the front KeyPackage from owner's queue. Returns
// ok=false if the queue is empty — the caller must back off and
// retry (error kind: Capacity).
//
// Because the entry is removed from the queue before being returned,
// and no other code path can re-insert a popped entry, a KeyPackage
// can never be retrieved twice from the same Pool.
func (p *Pool) Retrieve(owner identity.UserID) (pkg KeyPackage, ok bool) {
	queue := p.queueFor(owner)

	queue.mu.Lock()
	defer queue.mu.Unlock()

	if len(queue.packages) == 0 {
		return KeyPackage{}, false
	}
	pkg = queue.packages[0]
	queue.packages = queue.packages[1:]
	return pkg, true
}

// Len returns the number of KeyPackages currently queued for owner.
func (p *Pool) Len(owner identity.UserID) int {
	queue := p.queueFor(owner)
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.packages)
}
