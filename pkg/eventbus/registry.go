package eventbus

import "reflect"

// subscriber is one entry in a per-tag handler list.
type subscriber struct {
	id       uint64
	identity any // nil means never a duplicate
	handler  Handler
	async    bool
}

// registry holds per-tag sync and async handler lists in registration order.
// Callers hold Bus.mu.
type registry struct {
	sync  map[string][]*subscriber
	async map[string][]*subscriber
}

func newRegistry() *registry {
	return &registry{
		sync:  make(map[string][]*subscriber),
		async: make(map[string][]*subscriber),
	}
}

func (r *registry) lists(async bool) map[string][]*subscriber {
	if async {
		return r.async
	}
	return r.sync
}

// handlerIdentity returns what duplicate detection compares.
// Explicit keys win; pointer handlers compare by address; anything else
// (closures, HandlerFunc values) has no identity.
func handlerIdentity(h Handler, key any) any {
	if key != nil {
		return keyIdentity{key}
	}
	if t := reflect.TypeOf(h); t != nil && t.Kind() == reflect.Pointer {
		return h
	}
	return nil
}

type keyIdentity struct{ key any }

// add appends s unless a subscriber with the same identity exists and
// force is false. It returns the subscriber that ends up registered.
func (r *registry) add(tag string, s *subscriber, force bool) (*subscriber, bool) {
	lists := r.lists(s.async)
	if !force && s.identity != nil {
		for _, existing := range lists[tag] {
			if existing.identity == s.identity {
				return existing, false
			}
		}
	}
	lists[tag] = append(lists[tag], s)
	return s, true
}

// remove deletes the subscriber with id from tag's list.
func (r *registry) remove(tag string, id uint64, async bool) bool {
	lists := r.lists(async)
	subs := lists[tag]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]*subscriber, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(lists, tag)
		} else {
			lists[tag] = next
		}
		return true
	}
	return false
}

// snapshot returns copies of tag's lists so dispatch can run unlocked.
func (r *registry) snapshot(tag string) (syncSubs, asyncSubs []*subscriber) {
	syncSubs = append([]*subscriber(nil), r.sync[tag]...)
	asyncSubs = append([]*subscriber(nil), r.async[tag]...)
	return syncSubs, asyncSubs
}

func (r *registry) count() int {
	n := 0
	for _, subs := range r.sync {
		n += len(subs)
	}
	for _, subs := range r.async {
		n += len(subs)
	}
	return n
}

func (r *registry) counts(async bool) map[string]int {
	out := make(map[string]int)
	for tag, subs := range r.lists(async) {
		out[tag] = len(subs)
	}
	return out
}

func (r *registry) reset() {
	r.sync = make(map[string][]*subscriber)
	r.async = make(map[string][]*subscriber)
}
